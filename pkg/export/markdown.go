package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vanderheijden86/riskboard/pkg/dashboard"
	"github.com/vanderheijden86/riskboard/pkg/matrix"
	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/stats"
)

// MarkdownOptions controls the report header.
type MarkdownOptions struct {
	Title string
	Now   time.Time // zero = time.Now()
}

// WriteMarkdown writes a report of the view: the grid as a table, the backlog
// in priority order and the distributions.
func WriteMarkdown(w io.Writer, view dashboard.View, opts MarkdownOptions) error {
	_, err := io.WriteString(w, GenerateMarkdown(view, opts))
	return err
}

// GenerateMarkdown renders the report as a string.
func GenerateMarkdown(view dashboard.View, opts MarkdownOptions) string {
	if opts.Title == "" {
		opts.Title = "Risk report"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", opts.Title))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", opts.Now.Format(time.RFC1123)))
	if !view.Filter.IsEmpty() {
		sb.WriteString(fmt.Sprintf("Filter: `%s`\n\n", view.Filter.Summary()))
	}

	s := view.Stats
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **Total** | %d |\n", s.Total))
	sb.WriteString(fmt.Sprintf("| On grid | %d |\n", s.Placed))
	sb.WriteString(fmt.Sprintf("| Backlog | %d |\n", s.Backlog))
	if s.Scores.Placed > 0 {
		sb.WriteString(fmt.Sprintf("| Mean score | %.1f |\n", s.Scores.Mean))
		sb.WriteString(fmt.Sprintf("| Median score | %.1f |\n", s.Scores.Median))
	}
	sb.WriteString("\n")

	writeGrid(&sb, view.Grid)
	writeBacklog(&sb, view.Backlog)

	sb.WriteString("## Distributions\n\n")
	writeCounts(&sb, "By level", s.ByLevel)
	writeCounts(&sb, "By status", s.ByStatus)
	writeCounts(&sb, "By category", s.ByCategory)
	writeCounts(&sb, "By month", s.ByMonth)
	return sb.String()
}

// SaveMarkdownToFile writes the report to filename.
func SaveMarkdownToFile(view dashboard.View, opts MarkdownOptions, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteMarkdown(f, view, opts); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func writeGrid(sb *strings.Builder, g matrix.Grid) {
	n := g.Size()
	if n < 1 {
		return
	}
	sb.WriteString("## Matrix\n\n")
	sb.WriteString("Cells show `score · count` with severity; rows are probability, columns impact.\n\n")

	sb.WriteString("| P \\ I |")
	for i := 1; i <= n; i++ {
		sb.WriteString(fmt.Sprintf(" %d |", i))
	}
	sb.WriteString("\n|---|")
	for i := 1; i <= n; i++ {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for p := n; p >= 1; p-- {
		sb.WriteString(fmt.Sprintf("| **%d** |", p))
		for i := 1; i <= n; i++ {
			c, _ := g.Cell(p, i)
			sb.WriteString(fmt.Sprintf(" %s %d · %d |", severityIcon(c.Severity), c.Score, c.Len()))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	var placed []matrix.Cell
	for _, c := range g.Cells() {
		if c.Len() > 0 {
			placed = append(placed, c)
		}
	}
	if len(placed) == 0 {
		return
	}
	sb.WriteString("| Cell | Severity | Risks |\n|------|----------|-------|\n")
	for _, c := range placed {
		ids := make([]string, 0, c.Len())
		for _, r := range c.Risks {
			ids = append(ids, fmt.Sprintf("`%s`", escapeCell(r.ID)))
		}
		sb.WriteString(fmt.Sprintf("| P%d×I%d | %s %s | %s |\n",
			c.Probability, c.Impact, severityIcon(c.Severity), c.Severity, strings.Join(ids, ", ")))
	}
	sb.WriteString("\n")
}

func writeBacklog(sb *strings.Builder, backlog []model.Risk) {
	sb.WriteString("## Backlog\n\n")
	if len(backlog) == 0 {
		sb.WriteString("*Backlog is empty.*\n\n")
		return
	}
	sb.WriteString("| # | ID | Title | Level | Status | Created |\n|---|----|-------|-------|--------|---------|\n")
	for idx, r := range backlog {
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Format("2006-01-02")
		}
		sb.WriteString(fmt.Sprintf("| %d | `%s` | %s | %s | %s | %s |\n",
			idx+1, escapeCell(r.ID), escapeCell(truncate(r.Title, 60)), r.Level, r.Status, created))
	}
	sb.WriteString("\n")
}

func writeCounts(sb *strings.Builder, title string, counts []stats.Count) {
	if len(counts) == 0 {
		return
	}
	total := stats.Total(counts)
	sb.WriteString(fmt.Sprintf("### %s\n\n", title))
	sb.WriteString("| Key | Count | Share |\n|-----|-------|-------|\n")
	for _, c := range counts {
		share := 0.0
		if total > 0 {
			share = float64(c.Count) / float64(total)
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", escapeCell(c.Key), c.Count, barChart(share)))
	}
	sb.WriteString("\n")
}

func severityIcon(l model.Level) string {
	switch l {
	case model.LevelCritical:
		return "🟥"
	case model.LevelHigh:
		return "🟧"
	case model.LevelMedium:
		return "🟨"
	default:
		return "🟩"
	}
}

// escapeCell keeps user text from breaking table rows.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "|", "\\|")
}

// barChart creates a mini ASCII bar chart for a 0-1 value
func barChart(value float64) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value * 4)
	switch filled {
	case 0:
		return "░░░░"
	case 1:
		return "█░░░"
	case 2:
		return "██░░"
	case 3:
		return "███░"
	default:
		return "████"
	}
}
