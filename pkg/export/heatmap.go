package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/riskboard/pkg/matrix"
	"github.com/vanderheijden86/riskboard/pkg/model"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// HeatmapOptions controls heatmap rendering.
type HeatmapOptions struct {
	Title    string // Rendered in the header; defaults to "Risk matrix"
	CellSize int    // Pixel size of one cell; defaults to 96
	MaxIDs   int    // Risk ids listed per cell; defaults to 3
}

func (o HeatmapOptions) withDefaults() HeatmapOptions {
	if o.Title == "" {
		o.Title = "Risk matrix"
	}
	if o.CellSize <= 0 {
		o.CellSize = 96
	}
	if o.MaxIDs <= 0 {
		o.MaxIDs = 3
	}
	return o
}

const (
	margin     = 16
	headerH    = 64
	axisW      = 48
	axisH      = 40
	legendH    = 32
	lineHeight = 14
)

var (
	colorLow      = color.RGBA{0xc8, 0xe6, 0xc9, 0xff}
	colorMedium   = color.RGBA{0xff, 0xf5, 0x9d, 0xff}
	colorHigh     = color.RGBA{0xff, 0xcc, 0x80, 0xff}
	colorCritical = color.RGBA{0xef, 0x9a, 0x9a, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

// SeverityColor returns the fill used for a severity band.
func SeverityColor(l model.Level) color.RGBA {
	switch l {
	case model.LevelCritical:
		return colorCritical
	case model.LevelHigh:
		return colorHigh
	case model.LevelMedium:
		return colorMedium
	default:
		return colorLow
	}
}

// heatCell is a cell with its pixel origin.
type heatCell struct {
	matrix.Cell
	X, Y int
	IDs  []string
	More int
}

type heatLayout struct {
	Width, Height int
	CellSize      int
	Title         string
	Subtitle      string
	Cells         []heatCell
	RowLabels     []axisLabel
	ColLabels     []axisLabel
}

type axisLabel struct {
	X, Y int
	Text string
}

// buildHeatLayout positions every cell: probability descending top to bottom,
// impact ascending left to right.
func buildHeatLayout(g matrix.Grid, opts HeatmapOptions) heatLayout {
	n := g.Size()
	cs := opts.CellSize
	l := heatLayout{
		Width:    margin*2 + axisW + n*cs,
		Height:   margin*2 + headerH + n*cs + axisH + legendH,
		CellSize: cs,
		Title:    opts.Title,
		Subtitle: fmt.Sprintf("%d placed risks on a %d×%d grid", g.Count(), n, n),
	}
	originX := margin + axisW
	originY := margin + headerH

	for idx, c := range g.Cells() {
		row, col := idx/n, idx%n
		hc := heatCell{Cell: c, X: originX + col*cs, Y: originY + row*cs}
		for k, r := range c.Risks {
			if k >= opts.MaxIDs {
				hc.More = len(c.Risks) - k
				break
			}
			hc.IDs = append(hc.IDs, r.ID)
		}
		l.Cells = append(l.Cells, hc)
	}
	for row := 0; row < n; row++ {
		l.RowLabels = append(l.RowLabels, axisLabel{
			X:    margin + 8,
			Y:    originY + row*cs + cs/2,
			Text: fmt.Sprintf("P%d", n-row),
		})
	}
	for col := 0; col < n; col++ {
		l.ColLabels = append(l.ColLabels, axisLabel{
			X:    originX + col*cs + cs/2 - 8,
			Y:    originY + n*cs + 20,
			Text: fmt.Sprintf("I%d", col+1),
		})
	}
	return l
}

func (c heatCell) lines(cellSize int) []string {
	maxChars := (cellSize - 16) / 7
	out := []string{fmt.Sprintf("%d risk(s)", c.Len())}
	for _, id := range c.IDs {
		out = append(out, truncate(id, maxChars))
	}
	if c.More > 0 {
		out = append(out, fmt.Sprintf("+%d more", c.More))
	}
	return out
}

// WriteSVG renders the grid as an SVG heatmap.
func WriteSVG(w io.Writer, g matrix.Grid, opts HeatmapOptions) error {
	if g.Size() < 1 {
		return fmt.Errorf("grid is empty")
	}
	opts = opts.withDefaults()
	l := buildHeatLayout(g, opts)

	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(margin, margin, l.Width-2*margin, headerH-16, 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(margin+16, margin+22, l.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(margin+16, margin+40, l.Subtitle, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	for _, c := range l.Cells {
		canvas.Rect(c.X, c.Y, l.CellSize, l.CellSize,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(SeverityColor(c.Severity)), css(colorStroke)))
		canvas.Text(c.X+8, c.Y+18, fmt.Sprintf("%d", c.Score),
			fmt.Sprintf("fill:%s;font-size:14px;font-family:monospace;font-weight:bold", css(colorText)))
		for k, line := range c.lines(l.CellSize) {
			canvas.Text(c.X+8, c.Y+36+k*lineHeight, line,
				fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
		}
	}
	for _, a := range append(l.RowLabels, l.ColLabels...) {
		canvas.Text(a.X, a.Y, a.Text, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorText)))
	}

	x, y := margin+axisW, l.Height-margin-legendH/2
	for _, lvl := range model.Levels() {
		canvas.Roundrect(x, y-8, 14, 14, 3, 3, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(SeverityColor(lvl)), css(colorStroke)))
		canvas.Text(x+20, y+4, string(lvl), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
		x += 96
	}
	canvas.End()
	return nil
}

// WritePNG renders the grid as a PNG heatmap at path.
func WritePNG(path string, g matrix.Grid, opts HeatmapOptions) error {
	if g.Size() < 1 {
		return fmt.Errorf("grid is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	opts = opts.withDefaults()
	l := buildHeatLayout(g, opts)

	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(margin, margin, float64(l.Width-2*margin), headerH-16, 10)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(l.Title, margin+16, margin+18, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(l.Subtitle, margin+16, margin+36, 0, 0.5)

	cs := float64(l.CellSize)
	for _, c := range l.Cells {
		x, y := float64(c.X), float64(c.Y)
		dc.SetColor(SeverityColor(c.Severity))
		dc.DrawRectangle(x, y, cs, cs)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1)
		dc.DrawRectangle(x, y, cs, cs)
		dc.Stroke()

		dc.SetColor(colorText)
		dc.DrawStringAnchored(fmt.Sprintf("%d", c.Score), x+8, y+14, 0, 0.5)
		dc.SetColor(colorSubtle)
		for k, line := range c.lines(l.CellSize) {
			dc.DrawStringAnchored(line, x+8, y+32+float64(k*lineHeight), 0, 0.5)
		}
	}
	dc.SetColor(colorText)
	for _, a := range append(l.RowLabels, l.ColLabels...) {
		dc.DrawStringAnchored(a.Text, float64(a.X), float64(a.Y), 0, 0.5)
	}

	x, y := float64(margin+axisW), float64(l.Height-margin-legendH/2)
	for _, lvl := range model.Levels() {
		dc.SetColor(SeverityColor(lvl))
		dc.DrawRoundedRectangle(x, y-7, 14, 14, 3)
		dc.Fill()
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(string(lvl), x+20, y, 0, 0.5)
		x += 96
	}

	return dc.SavePNG(path)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
