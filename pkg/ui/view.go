package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/riskboard/pkg/dashboard"
	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/stats"
)

func (m Model) layout() layout {
	return computeLayout(m.session.GridSize(), m.width, m.height)
}

func (m Model) View() string {
	switch m.mode {
	case modePresets:
		return m.picker.View()
	case modeSavePreset:
		if m.saveForm != nil {
			box := m.theme.Renderer.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(m.theme.Primary).
				Padding(1, 2).
				Render(m.saveForm.View())
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
		}
	}

	l := m.layout()
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderGrid(l), " ", m.renderBacklog(l))
	if l.stats.W > 0 {
		top = lipgloss.JoinHorizontal(lipgloss.Top, top, " ", m.renderStats(l))
	}

	sections := []string{
		m.renderHeader(),
		m.renderStatusLine(),
		m.renderFilterBar(),
		top,
	}
	if l.detail.H > 0 {
		sections = append(sections, m.renderDetail(l))
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) panel(r rect, focused bool, content []string) string {
	in := r.inner()
	for len(content) < in.H {
		content = append(content, "")
	}
	content = content[:in.H]
	clip := m.theme.Renderer.NewStyle().MaxWidth(in.W)
	for idx, line := range content {
		if lipgloss.Width(line) > in.W {
			content[idx] = clip.Render(line)
		}
	}
	style := m.theme.Panel
	if focused {
		style = m.theme.Focused
	}
	return style.Width(in.W).Height(in.H).Render(strings.Join(content, "\n"))
}

func (m Model) renderHeader() string {
	v := m.session.View()
	title := m.theme.Header.Render("riskboard")
	info := fmt.Sprintf(" %d risks · %d on grid · %d in backlog", v.Stats.Total, v.Stats.Placed, v.Stats.Backlog)
	if m.activePreset != "" {
		info += " · " + FormatPresetInfo(m.activePreset)
	}
	if n := m.session.Controller().Pending(); n > 0 {
		info += fmt.Sprintf(" · saving %d…", n)
	}
	return title + m.theme.SecondaryText.Render(truncate(info, m.width-lipgloss.Width(title)))
}

// renderStatusLine shows, in priority order: the session banner, a
// transient message, a divergence warning, or the move hint.
func (m Model) renderStatusLine() string {
	b := m.session.Banner()
	switch {
	case b.IsError():
		return m.theme.ErrorText.Render(truncate("✗ "+bannerText(b)+" · r to reload", m.width))
	case m.statusMsg != "":
		if m.statusIsError {
			return m.theme.ErrorText.Render(truncate(m.statusMsg, m.width))
		}
		return m.theme.PrimaryBold.Render(truncate(m.statusMsg, m.width))
	case m.session.Divergence() != nil:
		d := m.session.Divergence()
		return m.theme.WarnText.Render(truncate(fmt.Sprintf("⚠ view differs from backend: %d missing, %d extra, %d moved · r to reload",
			len(d.MissingLocally), len(d.MissingPersisted), len(d.PositionMismatch)), m.width))
	case b.Kind == dashboard.BannerInfo:
		return m.theme.SecondaryText.Render(truncate(b.Message, m.width))
	}
	return ""
}

func bannerText(b dashboard.Banner) string {
	if b.Message != "" {
		return b.Message
	}
	if b.Err != nil {
		return b.Err.Error()
	}
	return b.Kind.String()
}

func (m Model) renderFilterBar() string {
	if m.mode == modeSearch {
		return m.search.View()
	}
	f := m.session.Filters().Current()
	line := "Filter: " + f.Summary()
	if m.session.Filters().Dirty() {
		line += " (not applied)"
	}
	return m.theme.MutedText.Render(truncate(line, m.width))
}

func (m Model) renderGrid(l layout) string {
	t := m.theme
	v := m.session.View()
	n := l.n
	armed, isArmed := m.session.Controller().Armed()
	selID := m.session.Selection().ID()

	title := "Risk matrix"
	if isArmed {
		title = "Drop " + armed.ID + " on a cell"
	}
	lines := []string{t.PrimaryBold.Render(fit(title, l.grid.inner().W))}

	var head strings.Builder
	head.WriteString(strings.Repeat(" ", rowLabelW))
	for i := 1; i <= n; i++ {
		head.WriteString(center(fmt.Sprintf("I%d", i), cellW))
	}
	lines = append(lines, t.MutedText.Render(head.String()))

	for p := n; p >= 1; p-- {
		var top, bottom strings.Builder
		top.WriteString(t.MutedText.Render(fit(fmt.Sprintf(" P%d", p), rowLabelW)))
		bottom.WriteString(strings.Repeat(" ", rowLabelW))
		for i := 1; i <= n; i++ {
			c, _ := v.Grid.Cell(p, i)
			score := fmt.Sprintf("%d", c.Score)
			count := ""
			if c.Len() > 0 {
				count = fmt.Sprintf("●%d", c.Len())
			}
			for _, r := range c.Risks {
				if r.ID == selID {
					count = "◆" + strings.TrimPrefix(count, "●")
				}
			}

			style := t.CellText.Background(t.SeverityBg(c.Severity))
			cursor := p == m.curP && i == m.curI && (m.focus == focusGrid || isArmed)
			switch {
			case cursor && isArmed:
				style = t.Marker
				score = "▼" + score
			case cursor:
				style = style.Bold(true).Underline(true).Reverse(true)
			}
			top.WriteString(style.Render(center(score, cellW)))
			bottom.WriteString(style.Render(center(count, cellW)))
		}
		lines = append(lines, top.String(), bottom.String())
	}
	return m.panel(l.grid, m.focus == focusGrid, lines)
}

func (m *Model) ensureBacklogVisible() {
	rows := m.layout().backlogRows()
	if rows <= 0 {
		return
	}
	if m.backlogCursor < m.backlogScroll {
		m.backlogScroll = m.backlogCursor
	}
	if m.backlogCursor >= m.backlogScroll+rows {
		m.backlogScroll = m.backlogCursor - rows + 1
	}
	m.backlogScroll = max(m.backlogScroll, 0)
}

func (m Model) renderBacklog(l layout) string {
	t := m.theme
	bl := m.session.View().Backlog
	w := l.backlog.inner().W
	armed, isArmed := m.session.Controller().Armed()
	selID := m.session.Selection().ID()

	title := fmt.Sprintf("Backlog (%d)", len(bl))
	if isArmed && armed.OnGrid(l.n) {
		title += " · b: drop here"
	}
	lines := []string{t.PrimaryBold.Render(fit(title, w))}
	if len(bl) == 0 {
		lines = append(lines, t.MutedText.Render("(empty)"))
	}

	rows := l.backlogRows()
	for idx := m.backlogScroll; idx < len(bl) && idx < m.backlogScroll+rows; idx++ {
		r := bl[idx]
		marker := " "
		switch {
		case isArmed && r.ID == armed.ID:
			marker = "⇢"
		case m.session.Controller().IsPending(r.ID):
			marker = "…"
		case r.ID == selID:
			marker = "◆"
		}
		prefix := fmt.Sprintf("%s%3d ", marker, idx+1)
		rest := fmt.Sprintf("%s %s", r.ID, r.Title)
		line := prefix + RenderLevelBadge(t, r.Level) + " " + truncate(rest, w-len([]rune(prefix))-5)
		if m.focus == focusBacklog && idx == m.backlogCursor {
			line = t.Selected.Render(fit(prefix+levelLabel(r.Level)+" "+rest, w))
		}
		lines = append(lines, line)
	}
	return m.panel(l.backlog, m.focus == focusBacklog, lines)
}

func levelLabel(l model.Level) string {
	switch l {
	case model.LevelCritical:
		return "CRIT"
	case model.LevelHigh:
		return "HIGH"
	case model.LevelMedium:
		return "MED "
	case model.LevelLow:
		return "LOW "
	}
	return "----"
}

func (m Model) renderStats(l layout) string {
	t := m.theme
	s := m.session.View().Stats
	w := l.stats.inner().W

	lines := []string{
		t.PrimaryBold.Render("Distribution"),
		fmt.Sprintf("score mean %.1f · median %.1f", s.Scores.Mean, s.Scores.Median),
	}
	section := func(title string, counts []stats.Count, limit int) {
		if len(counts) == 0 {
			return
		}
		lines = append(lines, t.SecondaryText.Render(title))
		maxCount := stats.Max(counts)
		for idx, c := range counts {
			if idx >= limit {
				break
			}
			label := fit(c.Key, 11)
			num := fmt.Sprintf("%3d", c.Count)
			lines = append(lines, label+" "+bar(c.Count, maxCount, w-len(num)-13)+" "+num)
		}
	}
	section("by level", s.ByLevel, 4)
	section("by status", s.ByStatus, 4)
	section("by category", s.ByCategory, 3)

	if len(s.ByMonth) > 0 {
		months := s.ByMonth
		if len(months) > w-2 {
			months = months[len(months)-(w-2):]
		}
		values := make([]int, len(months))
		for idx, c := range months {
			values[idx] = c.Count
		}
		lines = append(lines, t.SecondaryText.Render(fmt.Sprintf("created %s…%s", months[0].Key, months[len(months)-1].Key)))
		lines = append(lines, sparkline(values))
	}
	return m.panel(l.stats, false, lines)
}

func (m Model) renderDetail(l layout) string {
	return m.panel(l.detail, false, strings.Split(m.viewport.View(), "\n"))
}

func (m Model) renderFooter() string {
	if _, armed := m.session.Controller().Armed(); armed {
		return m.theme.MutedText.Render(truncate("arrows: aim • enter: drop • b: backlog • tab: switch • esc: cancel", m.width))
	}
	var parts []string
	for _, b := range m.keys.footerBindings() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.MutedText.Render(truncate(strings.Join(parts, " • "), m.width))
}
