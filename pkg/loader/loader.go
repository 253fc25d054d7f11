// Package loader reads risks from JSON Lines files, one risk object per
// line, for seeding a backend with `rb --import`.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// DefaultMaxBufferSize is the default buffer size for the reader (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures the behavior of ParseRisks.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed JSON).
	// If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// BufferSize sets the maximum line size (in bytes) to read at once.
	// Lines longer than this are skipped with a warning.
	// If 0, uses DefaultMaxBufferSize (10MB).
	BufferSize int

	// RiskFilter optionally filters parsed risks. Return true to include.
	RiskFilter func(*model.Risk) bool
}

// LoadRisksFromFile reads risks from a JSONL file.
func LoadRisksFromFile(path string, opts ParseOptions) ([]model.Risk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open risks file: %w", err)
	}
	defer file.Close()

	return ParseRisks(file, opts)
}

// ParseRisks parses JSONL content. Blank lines are ignored; malformed,
// invalid and duplicate records are skipped with a warning.
func ParseRisks(r io.Reader, opts ParseOptions) ([]model.Risk, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)

	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
		}
	}

	var risks []model.Risk
	seen := make(map[string]int)
	lineNum := 0
	for {
		lineNum++
		// ReadLine returns a single line, not including the end-of-line bytes.
		// If the line was too long for the buffer then isPrefix is set and the
		// beginning of the line is returned.
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading risks stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var risk model.Risk
		if err := json.Unmarshal(line, &risk); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}
		normalize(&risk)
		if err := validate(risk); err != nil {
			warn(fmt.Sprintf("skipping invalid risk on line %d: %v", lineNum, err))
			continue
		}
		if first, dup := seen[risk.ID]; dup {
			warn(fmt.Sprintf("skipping duplicate id %s on line %d (first seen on line %d)", risk.ID, lineNum, first))
			continue
		}
		if opts.RiskFilter != nil && !opts.RiskFilter(&risk) {
			continue
		}
		seen[risk.ID] = lineNum
		risks = append(risks, risk)
	}

	return risks, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}

func normalize(r *model.Risk) {
	r.ID = strings.TrimSpace(r.ID)
	r.Level = model.Level(strings.ToLower(strings.TrimSpace(string(r.Level))))
	r.Status = model.Status(strings.ToLower(strings.TrimSpace(string(r.Status))))
}

var (
	errMissingID    = errors.New("missing id")
	errMissingTitle = errors.New("missing title")
)

func validate(r model.Risk) error {
	switch {
	case r.ID == "":
		return errMissingID
	case strings.TrimSpace(r.Title) == "":
		return errMissingTitle
	case r.Level != "" && !r.Level.IsValid():
		return fmt.Errorf("unknown risk level %q", r.Level)
	case r.Status != "" && !r.Status.IsValid():
		return fmt.Errorf("unknown status %q", r.Status)
	}
	for name, v := range map[string]*int{"probability": r.Probability, "impact": r.Impact, "priority_order": r.PriorityOrder} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}
	return nil
}
