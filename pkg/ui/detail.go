package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// syncDetail re-renders the detail pane when the selected risk or the pane
// size changed.
func (m *Model) syncDetail() {
	l := m.layout()
	in := l.detail.inner()
	if in.H <= 0 {
		return
	}
	sel := m.session.Selected()

	key := fmt.Sprintf("%dx%d", in.W, in.H)
	if sel != nil {
		key += "|" + sel.ID + "|" + sel.PositionString() + "|" + sel.UpdatedAt.String()
	}
	if key == m.detailKey {
		return
	}
	m.detailKey = key

	if m.viewport.Width != in.W || m.viewport.Height != in.H {
		m.viewport.Width = in.W
		m.viewport.Height = in.H
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(in.W-4, 20)),
		)
	}

	if sel == nil {
		m.viewport.SetContent(m.theme.MutedText.Render("No risk selected. enter selects, space picks up."))
		return
	}
	md := detailMarkdown(*sel, m.session.GridSize())
	if m.renderer == nil {
		m.viewport.SetContent(md)
		return
	}
	rendered, err := m.renderer.Render(md)
	if err != nil {
		m.viewport.SetContent(fmt.Sprintf("Error rendering markdown: %v", err))
		return
	}
	m.viewport.SetContent(strings.Trim(rendered, "\n"))
	m.viewport.GotoTop()
}

// detailMarkdown renders one risk for the detail pane.
func detailMarkdown(r model.Risk, n int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", r.Title))
	score := "–"
	if r.OnGrid(n) {
		score = fmt.Sprintf("%d", r.Score())
	}
	category := r.Category
	if category == "" {
		category = "–"
	}
	sb.WriteString("| ID | Level | Status | Category | Position | Score |\n|---|---|---|---|---|---|\n")
	sb.WriteString(fmt.Sprintf("| **%s** | %s | %s | %s | %s | %s |\n\n",
		r.ID, r.Level, r.Status, category, r.PositionString(), score))
	if r.Description != "" {
		sb.WriteString("### Description\n")
		sb.WriteString(r.Description + "\n\n")
	}
	if !r.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("*Created %s (%s)*", r.CreatedAt.Format("2006-01-02"), FormatTimeRel(r.CreatedAt)))
		if !r.UpdatedAt.IsZero() {
			sb.WriteString(fmt.Sprintf(" · *updated %s*", FormatTimeRel(r.UpdatedAt)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
