// Package matrix places risks onto the probability×impact grid.
//
// Bucketize is pure: it never mutates its input, it is idempotent, and within
// a cell risks keep the order in which they appear in the input slice.
package matrix

import (
	"github.com/vanderheijden86/riskboard/pkg/metrics"
	"github.com/vanderheijden86/riskboard/pkg/model"
)

// Severity thresholds on the cell score (probability × impact). The same
// table is used by every view and export.
const (
	CriticalThreshold = 20
	HighThreshold     = 12
	MediumThreshold   = 6
)

// SeverityForScore maps a cell score to its severity band.
func SeverityForScore(score int) model.Level {
	switch {
	case score >= CriticalThreshold:
		return model.LevelCritical
	case score >= HighThreshold:
		return model.LevelHigh
	case score >= MediumThreshold:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

// Cell is one grid bucket.
type Cell struct {
	Probability int
	Impact      int
	Score       int
	Severity    model.Level
	Risks       []model.Risk
}

// Len returns the number of risks in the cell.
func (c Cell) Len() int {
	return len(c.Risks)
}

// Grid is an N×N set of cells indexed by (probability, impact).
type Grid struct {
	size   int
	cells  []Cell // row-major: index (p-1)*size + (i-1)
	index  map[string][2]int
	placed int
}

// Bucketize assigns every on-grid risk to the cell matching its coordinates.
// Risks with unset or out-of-range coordinates are left out; they belong to
// the backlog. A size below 1 yields an empty grid.
func Bucketize(risks []model.Risk, size int) Grid {
	defer metrics.Timer(metrics.Bucketize)()

	if size < 1 {
		return Grid{index: map[string][2]int{}}
	}

	g := Grid{
		size:  size,
		cells: make([]Cell, size*size),
		index: make(map[string][2]int),
	}
	for p := 1; p <= size; p++ {
		for i := 1; i <= size; i++ {
			score := p * i
			g.cells[g.offset(p, i)] = Cell{
				Probability: p,
				Impact:      i,
				Score:       score,
				Severity:    SeverityForScore(score),
			}
		}
	}

	for _, r := range risks {
		p, i, ok := r.Position(size)
		if !ok {
			continue
		}
		c := &g.cells[g.offset(p, i)]
		c.Risks = append(c.Risks, r)
		g.index[r.ID] = [2]int{p, i}
		g.placed++
	}
	return g
}

func (g Grid) offset(p, i int) int {
	return (p-1)*g.size + (i - 1)
}

// Size returns N.
func (g Grid) Size() int {
	return g.size
}

// Cell returns the bucket at (p, i). ok is false when the coordinates fall
// outside the grid.
func (g Grid) Cell(p, i int) (Cell, bool) {
	if p < 1 || i < 1 || p > g.size || i > g.size {
		return Cell{}, false
	}
	return g.cells[g.offset(p, i)], true
}

// Cells returns every cell in display order: probability descending (top row
// is the most likely), impact ascending within a row.
func (g Grid) Cells() []Cell {
	out := make([]Cell, 0, len(g.cells))
	for p := g.size; p >= 1; p-- {
		for i := 1; i <= g.size; i++ {
			out = append(out, g.cells[g.offset(p, i)])
		}
	}
	return out
}

// Count returns the number of risks placed on the grid.
func (g Grid) Count() int {
	return g.placed
}

// Contains reports whether the risk with the given id is on the grid.
func (g Grid) Contains(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Locate returns the coordinates of the risk with the given id.
func (g Grid) Locate(id string) (p, i int, ok bool) {
	pos, ok := g.index[id]
	if !ok {
		return 0, 0, false
	}
	return pos[0], pos[1], true
}

// BySeverity counts placed risks per severity band of the cell they sit in.
func (g Grid) BySeverity() map[model.Level]int {
	counts := make(map[model.Level]int, 4)
	for _, c := range g.cells {
		counts[c.Severity] += len(c.Risks)
	}
	return counts
}

// Scores returns the cell score of every placed risk, one entry per risk.
func (g Grid) Scores() []float64 {
	scores := make([]float64, 0, g.placed)
	for _, c := range g.cells {
		for range c.Risks {
			scores = append(scores, float64(c.Score))
		}
	}
	return scores
}
