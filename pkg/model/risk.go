// Package model defines the risk record and the filter values shared by the
// positioning engine, the data service and the dashboard.
package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultGridSize is the probability/impact scale of the primary dashboard.
const DefaultGridSize = 5

// Level is the assessed risk level. It is stored independently of the grid
// score and may be set by a separate assessment workflow.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Levels returns every level from least to most severe.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh, LevelCritical}
}

// IsValid reports whether l is one of the known levels.
func (l Level) IsValid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelCritical:
		return true
	}
	return false
}

// Rank orders levels from 0 (low) to 3 (critical). Unknown levels rank -1.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	case LevelCritical:
		return 3
	}
	return -1
}

// Status is the lifecycle state of a risk. The engine treats it as
// informational only; transitions are not enforced here.
type Status string

const (
	StatusIdentified  Status = "identified"
	StatusAssessed    Status = "assessed"
	StatusTreating    Status = "treating"
	StatusMonitoring  Status = "monitoring"
	StatusAccepted    Status = "accepted"
	StatusTransferred Status = "transferred"
	StatusAvoided     Status = "avoided"
	StatusClosed      Status = "closed"
)

// Statuses returns the lifecycle statuses in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusIdentified,
		StatusAssessed,
		StatusTreating,
		StatusMonitoring,
		StatusAccepted,
		StatusTransferred,
		StatusAvoided,
		StatusClosed,
	}
}

// IsValid reports whether s is one of the lifecycle statuses.
func (s Status) IsValid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Risk is the unit positioned on the probability×impact grid.
type Risk struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Probability *int   `json:"probability,omitempty"`
	Impact      *int   `json:"impact,omitempty"`
	Level       Level  `json:"risk_level,omitempty"`
	Status      Status `json:"status,omitempty"`
	// PriorityOrder is only meaningful while the risk sits in the backlog.
	PriorityOrder *int      `json:"priority_order,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// OnGrid reports whether the risk has both coordinates set and inside [1, n].
func (r Risk) OnGrid(n int) bool {
	if r.Probability == nil || r.Impact == nil {
		return false
	}
	return inRange(*r.Probability, n) && inRange(*r.Impact, n)
}

// Position returns the grid coordinates. ok is false when the risk is not on a
// grid of size n.
func (r Risk) Position(n int) (p, i int, ok bool) {
	if !r.OnGrid(n) {
		return 0, 0, false
	}
	return *r.Probability, *r.Impact, true
}

// Score returns probability × impact, or 0 when either is unset.
func (r Risk) Score() int {
	if r.Probability == nil || r.Impact == nil {
		return 0
	}
	return *r.Probability * *r.Impact
}

// Clone returns a deep copy; the pointer fields are not shared.
func (r Risk) Clone() Risk {
	c := r
	c.Probability = cloneInt(r.Probability)
	c.Impact = cloneInt(r.Impact)
	c.PriorityOrder = cloneInt(r.PriorityOrder)
	return c
}

// SamePosition reports whether a and b have identical probability, impact and
// priority order.
func SamePosition(a, b Risk) bool {
	return equalInt(a.Probability, b.Probability) &&
		equalInt(a.Impact, b.Impact) &&
		equalInt(a.PriorityOrder, b.PriorityOrder)
}

// PositionString renders the coordinates for logs and tooltips.
func (r Risk) PositionString() string {
	if r.Probability == nil || r.Impact == nil {
		if r.PriorityOrder != nil {
			return fmt.Sprintf("backlog #%d", *r.PriorityOrder)
		}
		return "backlog"
	}
	return fmt.Sprintf("P%d×I%d", *r.Probability, *r.Impact)
}

// MatchesSearch reports whether query is a case-insensitive substring of the
// title or description. An empty query matches everything.
func (r Risk) MatchesSearch(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.Title), q) ||
		strings.Contains(strings.ToLower(r.Description), q)
}

// FindByID returns the index of the risk with the given id, or -1.
func FindByID(risks []Risk, id string) int {
	for idx := range risks {
		if risks[idx].ID == id {
			return idx
		}
	}
	return -1
}

// CloneAll deep-copies a working set.
func CloneAll(risks []Risk) []Risk {
	if risks == nil {
		return nil
	}
	out := make([]Risk, len(risks))
	for idx, r := range risks {
		out[idx] = r.Clone()
	}
	return out
}

func inRange(v, n int) bool {
	return v >= 1 && v <= n
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
