package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// PresetPickerModel is the saved-filter picker overlay.
type PresetPickerModel struct {
	presets       []model.SavedFilter
	selectedIndex int
	width         int
	height        int
	theme         Theme
}

// NewPresetPickerModel creates a picker over presets.
func NewPresetPickerModel(presets []model.SavedFilter, theme Theme) PresetPickerModel {
	return PresetPickerModel{
		presets: presets,
		theme:   theme,
	}
}

// SetSize updates the picker dimensions
func (m *PresetPickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MoveUp moves selection up
func (m *PresetPickerModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// MoveDown moves selection down
func (m *PresetPickerModel) MoveDown() {
	if m.selectedIndex < len(m.presets)-1 {
		m.selectedIndex++
	}
}

// SelectedPreset returns the currently selected preset
func (m *PresetPickerModel) SelectedPreset() *model.SavedFilter {
	if len(m.presets) == 0 || m.selectedIndex >= len(m.presets) {
		return nil
	}
	return &m.presets[m.selectedIndex]
}

// RemoveSelected drops the selected preset from the list.
func (m *PresetPickerModel) RemoveSelected() {
	if m.SelectedPreset() == nil {
		return
	}
	m.presets = append(m.presets[:m.selectedIndex], m.presets[m.selectedIndex+1:]...)
	if m.selectedIndex >= len(m.presets) && m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// PresetCount returns the number of presets
func (m *PresetPickerModel) PresetCount() int {
	return len(m.presets)
}

// View renders the picker overlay
func (m *PresetPickerModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}

	t := m.theme

	boxWidth := 50
	if m.width < 60 {
		boxWidth = m.width - 10
	}
	if boxWidth < 30 {
		boxWidth = 30
	}

	var lines []string
	titleStyle := t.Renderer.NewStyle().
		Foreground(t.Primary).
		Bold(true)
	lines = append(lines, titleStyle.Render("Filter presets"))
	lines = append(lines, "")

	if len(m.presets) == 0 {
		lines = append(lines, t.MutedText.Render("No presets. Press S on the dashboard to save one."))
	}
	for i, p := range m.presets {
		isSelected := i == m.selectedIndex

		nameStyle := t.Renderer.NewStyle().Foreground(t.Base.GetForeground())
		prefix := "  "
		if isSelected {
			nameStyle = nameStyle.Foreground(t.Primary).Bold(true)
			prefix = "▸ "
		}
		name := prefix + p.Name
		if p.Builtin {
			name += " (built-in)"
		}
		lines = append(lines, nameStyle.Render(name))

		descStyle := t.Renderer.NewStyle().
			Foreground(t.Secondary).
			Italic(true)
		lines = append(lines, descStyle.Render("    "+truncateRunesHelper(p.Filter.Summary(), boxWidth-8, "…")))
	}

	lines = append(lines, "")
	footerStyle := t.Renderer.NewStyle().
		Foreground(t.Secondary).
		Italic(true)
	lines = append(lines, footerStyle.Render("j/k: navigate • enter: apply • d: delete • esc: cancel"))

	boxStyle := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(boxWidth)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		boxStyle.Render(strings.Join(lines, "\n")),
	)
}

// FormatPresetInfo returns the header label for an active preset.
func FormatPresetInfo(name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf("Preset: %s", name)
}
