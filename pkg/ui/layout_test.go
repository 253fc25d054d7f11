package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/riskboard/pkg/testutil"
)

func TestComputeLayout(t *testing.T) {
	l := computeLayout(5, 120, 40)
	if l.grid != (rect{X: 0, Y: 3, W: 41, H: 14}) {
		t.Errorf("unexpected grid rect %+v", l.grid)
	}
	if l.backlog.X != 42 || l.backlog.W != 41 {
		t.Errorf("unexpected backlog rect %+v", l.backlog)
	}
	if l.stats.W != statsW+2 {
		t.Errorf("expected stats panel, got %+v", l.stats)
	}
	if l.detail.Y != 17 || l.detail.H != 22 {
		t.Errorf("unexpected detail rect %+v", l.detail)
	}

	small := computeLayout(5, 80, 20)
	if small.stats.W != 0 {
		t.Error("expected no stats panel at 80 columns")
	}
	if small.detail.H != 0 {
		t.Error("expected no detail pane at 20 rows")
	}
	if small.backlog.W < minBacklogW+2 {
		t.Errorf("backlog narrower than minimum: %d", small.backlog.W)
	}
}

func TestCellAt(t *testing.T) {
	l := computeLayout(5, 120, 40)
	tests := []struct {
		x, y   int
		p, i   int
		inside bool
	}{
		{5, 6, 5, 1, true},
		{11, 7, 5, 1, true},
		{12, 6, 5, 2, true},
		{26, 10, 3, 4, true},
		{39, 15, 1, 5, true},
		{4, 6, 0, 0, false},  // row labels
		{5, 5, 0, 0, false},  // impact labels
		{40, 6, 0, 0, false}, // border
		{5, 16, 0, 0, false},
	}
	for _, tt := range tests {
		p, i, ok := l.cellAt(tt.x, tt.y)
		if ok != tt.inside || p != tt.p || i != tt.i {
			t.Errorf("cellAt(%d,%d) = %d,%d,%v; want %d,%d,%v", tt.x, tt.y, p, i, ok, tt.p, tt.i, tt.inside)
		}
	}
}

func TestBacklogRowAt(t *testing.T) {
	l := computeLayout(5, 120, 40)
	if l.backlogRows() != 11 {
		t.Errorf("expected 11 visible rows, got %d", l.backlogRows())
	}
	if _, ok := l.backlogRowAt(45, 4); ok {
		t.Error("title line is not a row")
	}
	if row, ok := l.backlogRowAt(45, 5); !ok || row != 0 {
		t.Errorf("expected row 0, got %d %v", row, ok)
	}
	if row, ok := l.backlogRowAt(45, 15); !ok || row != 10 {
		t.Errorf("expected row 10, got %d %v", row, ok)
	}
	if _, ok := l.backlogRowAt(10, 5); ok {
		t.Error("grid position is not a backlog row")
	}
}

func mouse(action tea.MouseAction, button tea.MouseButton, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: button}
}

func TestMouseDragBacklogToCell(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, mouse(tea.MouseActionPress, tea.MouseButtonLeft, 45, 5))
	if armed, ok := m.Session().Controller().Armed(); !ok || armed.ID != "3" {
		t.Fatalf("expected 3 armed by the press, got %+v %v", armed, ok)
	}
	m, _ = update(t, m, mouse(tea.MouseActionMotion, tea.MouseButtonLeft, 12, 14))
	if p, i := m.Cursor(); p != 1 || i != 2 {
		t.Errorf("expected drag to track cell 1,2, got %d,%d", p, i)
	}
	m, cmd := update(t, m, mouse(tea.MouseActionRelease, tea.MouseButtonNone, 12, 14))
	testutil.AssertPosition(t, m.Session().Risks(), "3", 1, 2)
	m = settle(t, m, cmd)
	testutil.AssertIDs(t, m.Session().View().Backlog, "2")
}

func TestMouseDragCellToBacklog(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, mouse(tea.MouseActionPress, tea.MouseButtonLeft, 26, 10))
	if armed, ok := m.Session().Controller().Armed(); !ok || armed.ID != "1" {
		t.Fatalf("expected 1 armed, got %+v %v", armed, ok)
	}
	m, cmd := update(t, m, mouse(tea.MouseActionRelease, tea.MouseButtonNone, 50, 8))
	if cmd == nil {
		t.Fatal("expected a persistence call")
	}
	testutil.AssertIDs(t, m.Session().View().Backlog, "3", "2", "1")
}

func TestMouseDragReordersBacklog(t *testing.T) {
	m, h := newTestModel(t)
	m, _ = update(t, m, mouse(tea.MouseActionPress, tea.MouseButtonLeft, 45, 5))
	if armed, ok := m.Session().Controller().Armed(); !ok || armed.ID != "3" {
		t.Fatalf("expected 3 armed by the press, got %+v %v", armed, ok)
	}
	m, _ = update(t, m, mouse(tea.MouseActionMotion, tea.MouseButtonLeft, 45, 6))
	m, cmd := update(t, m, mouse(tea.MouseActionRelease, tea.MouseButtonNone, 45, 6))
	if cmd == nil {
		t.Fatal("expected a reorder to be persisted")
	}
	if _, ok := m.Session().Controller().Armed(); ok {
		t.Error("expected the drag to end disarmed")
	}
	testutil.AssertIDs(t, m.Session().View().Backlog, "2", "3")
	if m.FocusState() != "backlog" || m.BacklogCursor() != 1 {
		t.Errorf("expected backlog focus on row 1, got %s/%d", m.FocusState(), m.BacklogCursor())
	}

	m = settle(t, m, cmd)
	stored := h.store.Snapshot()
	testutil.AssertOrder(t, stored, "2", 1)
	testutil.AssertOrder(t, stored, "3", 2)
	if msg, isErr := m.StatusMessage(); isErr || !strings.Contains(msg, "backlog saved") {
		t.Errorf("unexpected status %q (error=%v)", msg, isErr)
	}
}

func TestMouseClickOnBacklogRowDoesNotWrite(t *testing.T) {
	m, h := newTestModel(t)
	m, _ = update(t, m, mouse(tea.MouseActionPress, tea.MouseButtonLeft, 45, 6))
	m, cmd := update(t, m, mouse(tea.MouseActionRelease, tea.MouseButtonNone, 45, 6))
	if cmd != nil {
		t.Error("a click without movement must not write")
	}
	if _, ok := m.Session().Controller().Armed(); ok {
		t.Error("expected the click to leave nothing armed")
	}
	if got := m.Session().Selection().ID(); got != "2" {
		t.Errorf("expected the click to select 2, got %q", got)
	}
	if h.store.UpdateCount() != 0 {
		t.Error("expected no writes")
	}
}

func TestMouseReleaseOutsideCancels(t *testing.T) {
	m, h := newTestModel(t)
	m, _ = update(t, m, mouse(tea.MouseActionPress, tea.MouseButtonLeft, 26, 10))
	m, cmd := update(t, m, mouse(tea.MouseActionRelease, tea.MouseButtonNone, 0, 0))
	if cmd != nil {
		t.Error("expected no persistence call")
	}
	if _, ok := m.Session().Controller().Armed(); ok {
		t.Error("expected the drag to be cancelled")
	}
	if h.store.UpdateCount() != 0 {
		t.Error("expected no writes")
	}
}

func TestMouseClickSelects(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, mouse(tea.MouseActionPress, tea.MouseButtonLeft, 26, 10))
	m, cmd := update(t, m, mouse(tea.MouseActionRelease, tea.MouseButtonNone, 26, 10))
	if cmd != nil {
		t.Error("a click without movement must not write")
	}
	if got := m.Session().Selection().ID(); got != "1" {
		t.Errorf("expected the click to select 1, got %q", got)
	}
}

func TestMousePressOnEmptyCell(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, mouse(tea.MouseActionPress, tea.MouseButtonLeft, 5, 6))
	if _, ok := m.Session().Controller().Armed(); ok {
		t.Error("an empty cell has nothing to pick up")
	}
	if p, i := m.Cursor(); p != 5 || i != 1 {
		t.Errorf("expected the click to move the cursor, got %d,%d", p, i)
	}
}
