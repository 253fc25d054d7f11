package ui

// Screen geometry. View and the mouse hit tests both derive positions from
// layout, so what is drawn is what is clicked.
const (
	headerLines = 3 // title bar, status line, filter bar
	footerLines = 1
	rowLabelW   = 4
	cellW       = 7
	cellH       = 2
	gridTop     = 2 // panel title and impact labels
	minBacklogW = 24
	statsW      = 34
)

type rect struct {
	X, Y, W, H int // outer bounds including border
}

func (r rect) contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// inner returns the content box inside the border.
func (r rect) inner() rect {
	return rect{X: r.X + 1, Y: r.Y + 1, W: max(r.W-2, 0), H: max(r.H-2, 0)}
}

type layout struct {
	n       int
	grid    rect
	backlog rect
	stats   rect // zero width when there is no room
	detail  rect // zero height when there is no room
}

func computeLayout(n, width, height int) layout {
	l := layout{n: n}
	innerGridW := rowLabelW + n*cellW
	innerGridH := gridTop + n*cellH
	l.grid = rect{X: 0, Y: headerLines, W: innerGridW + 2, H: innerGridH + 2}

	rest := width - l.grid.W - 1
	statsOuter := 0
	if rest >= minBacklogW+2+1+statsW+2 {
		statsOuter = statsW + 2
	}
	backlogOuter := rest
	if statsOuter > 0 {
		backlogOuter = rest - statsOuter - 1
	}
	if backlogOuter < minBacklogW+2 {
		backlogOuter = minBacklogW + 2
	}
	l.backlog = rect{X: l.grid.W + 1, Y: headerLines, W: backlogOuter, H: l.grid.H}
	if statsOuter > 0 {
		l.stats = rect{X: l.backlog.X + l.backlog.W + 1, Y: headerLines, W: statsOuter, H: l.grid.H}
	}

	detailY := headerLines + l.grid.H
	detailH := height - detailY - footerLines
	if detailH >= 4 {
		l.detail = rect{X: 0, Y: detailY, W: width, H: detailH}
	}
	return l
}

// cellAt maps a screen position to grid coordinates.
func (l layout) cellAt(x, y int) (p, i int, ok bool) {
	in := l.grid.inner()
	x0 := in.X + rowLabelW
	y0 := in.Y + gridTop
	if x < x0 || y < y0 || x >= x0+l.n*cellW || y >= y0+l.n*cellH {
		return 0, 0, false
	}
	col := (x - x0) / cellW
	row := (y - y0) / cellH
	return l.n - row, col + 1, true
}

// backlogRows is the number of visible backlog rows.
func (l layout) backlogRows() int {
	return max(l.backlog.inner().H-1, 0)
}

// backlogRowAt maps a screen position to a visible backlog row offset.
func (l layout) backlogRowAt(x, y int) (int, bool) {
	in := l.backlog.inner()
	if !in.contains(x, y) {
		return 0, false
	}
	row := y - in.Y - 1
	if row < 0 || row >= l.backlogRows() {
		return 0, false
	}
	return row, true
}
