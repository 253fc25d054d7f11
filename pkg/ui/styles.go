package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// Spacing constants for consistent layout (in characters)
const (
	SpaceXS = 1
	SpaceSM = 2
)

// Adaptive colors for light and dark terminals. Light mode colors are tuned
// for a contrast ratio of at least 4.5:1.
var (
	ColorText    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}

	ColorLevelCritical = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorLevelHigh     = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorLevelMedium   = lipgloss.AdaptiveColor{Light: "#808000", Dark: "#F1FA8C"}
	ColorLevelLow      = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
)

// RenderLevelBadge returns a compact, colored level label.
func RenderLevelBadge(t Theme, l model.Level) string {
	var fg lipgloss.AdaptiveColor
	label := "----"
	switch l {
	case model.LevelCritical:
		fg, label = ColorLevelCritical, "CRIT"
	case model.LevelHigh:
		fg, label = ColorLevelHigh, "HIGH"
	case model.LevelMedium:
		fg, label = ColorLevelMedium, "MED "
	case model.LevelLow:
		fg, label = ColorLevelLow, "LOW "
	default:
		fg = ColorMuted
	}
	return t.Renderer.NewStyle().Foreground(fg).Bold(true).Render(label)
}

// RenderStatusBadge returns the status as a short colored label.
func RenderStatusBadge(t Theme, s model.Status) string {
	label := strings.ToUpper(string(s))
	if label == "" {
		label = "UNSET"
	}
	if len(label) > 5 {
		label = label[:5]
	}
	return t.Renderer.NewStyle().Foreground(t.GetStatusColor(s)).Render(padRight(label, 5))
}

// bar renders a horizontal bar of width cells for value out of max.
func bar(value, max, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if max > 0 {
		filled = value * width / max
	}
	if value > 0 && filled == 0 {
		filled = 1
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline renders one rune per value scaled to the maximum.
func sparkline(values []int) string {
	max := 0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	var sb strings.Builder
	for _, v := range values {
		idx := 0
		if max > 0 {
			idx = v * (len(sparkRunes) - 1) / max
		}
		sb.WriteRune(sparkRunes[idx])
	}
	return sb.String()
}
