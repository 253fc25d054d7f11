package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Severity bands, used as cell backgrounds and level badges
	Low      lipgloss.AdaptiveColor
	Medium   lipgloss.AdaptiveColor
	High     lipgloss.AdaptiveColor
	Critical lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style
	Panel    lipgloss.Style
	Focused  lipgloss.Style

	MutedText     lipgloss.Style
	SecondaryText lipgloss.Style
	PrimaryBold   lipgloss.Style
	ErrorText     lipgloss.Style
	WarnText      lipgloss.Style
	CellText      lipgloss.Style // dark text on severity backgrounds
	Marker        lipgloss.Style // drop target while a risk is picked up
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Low:      lipgloss.AdaptiveColor{Light: "#C8E6C9", Dark: "#2E7D32"},
		Medium:   lipgloss.AdaptiveColor{Light: "#FFF59D", Dark: "#9E9D24"},
		High:     lipgloss.AdaptiveColor{Light: "#FFCC80", Dark: "#EF6C00"},
		Critical: lipgloss.AdaptiveColor{Light: "#EF9A9A", Dark: "#C62828"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Foreground(t.Primary).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border)
	t.Focused = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.SecondaryText = r.NewStyle().Foreground(t.Secondary)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.ErrorText = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.WarnText = r.NewStyle().Foreground(ColorWarning)
	t.CellText = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"})
	t.Marker = r.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Background(t.Primary).
		Bold(true)

	return t
}

// SeverityColor returns the background of a severity band.
func (t Theme) SeverityColor(l model.Level) lipgloss.AdaptiveColor {
	switch l {
	case model.LevelCritical:
		return t.Critical
	case model.LevelHigh:
		return t.High
	case model.LevelMedium:
		return t.Medium
	default:
		return t.Low
	}
}

// ansiSeverity maps severity bands to the basic palette.
var ansiSeverity = map[model.Level]lipgloss.ANSIColor{
	model.LevelLow:      2,
	model.LevelMedium:   3,
	model.LevelHigh:     5,
	model.LevelCritical: 1,
}

// SeverityBg returns the grid cell background for a severity band. Below
// 256 colors the basic ANSI colors are used instead of a down-converted hex,
// which tends to collapse medium and high into the same shade.
func (t Theme) SeverityBg(l model.Level) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		if c, ok := ansiSeverity[l]; ok {
			return c
		}
		return ansiSeverity[model.LevelLow]
	}
	return t.SeverityColor(l)
}

// GetStatusColor returns the foreground for a lifecycle status.
func (t Theme) GetStatusColor(s model.Status) lipgloss.AdaptiveColor {
	switch s {
	case model.StatusIdentified:
		return ColorInfo
	case model.StatusAssessed:
		return t.Primary
	case model.StatusTreating:
		return ColorWarning
	case model.StatusMonitoring:
		return ColorSuccess
	case model.StatusClosed, model.StatusAvoided, model.StatusTransferred:
		return t.Muted
	default:
		return t.Subtext
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(nil))
}
