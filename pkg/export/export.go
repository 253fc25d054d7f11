// Package export writes the risk matrix and report to files: an SVG and a PNG
// heatmap of the grid plus a Markdown report.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/riskboard/pkg/dashboard"

	"golang.org/x/sync/errgroup"
)

// Default file names written by WriteAll.
const (
	SVGFile      = "risk-matrix.svg"
	PNGFile      = "risk-matrix.png"
	MarkdownFile = "risk-report.md"
)

// Options bundles the per-format options for WriteAll.
type Options struct {
	Heatmap  HeatmapOptions
	Markdown MarkdownOptions
}

// WriteAll writes the SVG, PNG and Markdown exports of view into dir
// concurrently and returns the written paths in that order.
func WriteAll(ctx context.Context, dir string, view dashboard.View, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	paths := []string{
		filepath.Join(dir, SVGFile),
		filepath.Join(dir, PNGFile),
		filepath.Join(dir, MarkdownFile),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := WriteSVG(&buf, view.Grid, opts.Heatmap); err != nil {
			return fmt.Errorf("svg: %w", err)
		}
		return writeFileAtomic(paths[0], buf.Bytes())
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := WritePNG(paths[1], view.Grid, opts.Heatmap); err != nil {
			return fmt.Errorf("png: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeFileAtomic(paths[2], []byte(GenerateMarkdown(view, opts.Markdown)))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
