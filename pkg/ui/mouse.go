package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/riskboard/pkg/debug"
)

// handleMouse implements drag and drop: a left press on a backlog row or a
// grid cell holding risks picks one up, the release decides where it goes.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNormal {
		return m, nil
	}
	l := m.layout()

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			return m.mousePress(l, msg.X, msg.Y), nil
		case tea.MouseButtonWheelUp:
			if l.backlog.contains(msg.X, msg.Y) {
				m.backlogScroll = max(m.backlogScroll-1, 0)
			} else if l.detail.contains(msg.X, msg.Y) {
				m.viewport.ScrollUp(1)
			}
		case tea.MouseButtonWheelDown:
			if l.backlog.contains(msg.X, msg.Y) {
				maxScroll := max(len(m.session.View().Backlog)-l.backlogRows(), 0)
				m.backlogScroll = min(m.backlogScroll+1, maxScroll)
			} else if l.detail.contains(msg.X, msg.Y) {
				m.viewport.ScrollDown(1)
			}
		}
		return m, nil

	case tea.MouseActionMotion:
		if m.dragging {
			if p, i, ok := l.cellAt(msg.X, msg.Y); ok {
				m.focus = focusGrid
				m.curP, m.curI = p, i
			} else if l.backlog.contains(msg.X, msg.Y) {
				m.focus = focusBacklog
			}
		}
		return m, nil

	case tea.MouseActionRelease:
		if !m.dragging {
			return m, nil
		}
		m.dragging = false
		p, i, onCell := l.cellAt(msg.X, msg.Y)
		debug.Attrs("mouse release", "x", msg.X, "y", msg.Y, "cell", onCell, "p", p, "i", i,
			"backlog", l.backlog.contains(msg.X, msg.Y))
		// A refused drop leaves the risk armed; the drag ends with the
		// release either way.
		defer m.session.Controller().Cancel()
		if onCell {
			return m.dropOnCell(p, i)
		}
		if l.backlog.contains(msg.X, msg.Y) {
			if from, ok := m.armedBacklogIndex(); ok {
				return m.dragWithinBacklog(l, from, msg.X, msg.Y)
			}
			return m.dropOnBacklog()
		}
		m.setStatus("move cancelled", false)
		return m, nil
	}
	return m, nil
}

// armedBacklogIndex returns the backlog position of the armed risk.
func (m Model) armedBacklogIndex() (int, bool) {
	armed, ok := m.session.Controller().Armed()
	if !ok {
		return 0, false
	}
	for idx, r := range m.session.View().Backlog {
		if r.ID == armed.ID {
			return idx, true
		}
	}
	return 0, false
}

// dragWithinBacklog reorders a backlog row dropped on another row. A release
// below the last row moves it to the end.
func (m Model) dragWithinBacklog(l layout, from, x, y int) (tea.Model, tea.Cmd) {
	m.session.Controller().Cancel()
	last := len(m.session.View().Backlog) - 1
	to := last
	if row, ok := l.backlogRowAt(x, y); ok {
		to = min(m.backlogScroll+row, last)
	}
	m.focus = focusBacklog
	if from == to {
		m.backlogCursor = from
		return m, nil
	}
	return m.reorderBacklog(from, to)
}

func (m Model) mousePress(l layout, x, y int) Model {
	if _, armed := m.session.Controller().Armed(); armed {
		return m
	}
	if p, i, ok := l.cellAt(x, y); ok {
		m.focus = focusGrid
		m.curP, m.curI = p, i
		m.cellPick = 0
		if r, ok := m.focusedCellRisk(); ok && m.pickUp(r.ID) {
			m.dragging = true
		}
		return m
	}
	if row, ok := l.backlogRowAt(x, y); ok {
		idx := m.backlogScroll + row
		if idx >= len(m.session.View().Backlog) {
			return m
		}
		m.focus = focusBacklog
		m.backlogCursor = idx
		r, _ := m.focusedBacklogRisk()
		if m.pickUp(r.ID) {
			// pickUp moves focus to the grid for keyboard aiming; a drag
			// follows the pointer instead.
			m.focus = focusBacklog
			m.dragging = true
		}
	}
	return m
}
