package model

import "strings"

// Filter holds the dashboard filter values. Empty fields do not constrain the
// working set.
type Filter struct {
	Search   string `json:"search,omitempty" yaml:"search,omitempty"`
	Status   string `json:"status,omitempty" yaml:"status,omitempty"`
	Level    string `json:"level,omitempty" yaml:"level,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// IsEmpty reports whether no field is set.
func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

// Matches applies the query semantics of the data service to a single risk:
// substring on title/description for Search, exact match for Status and
// Level, substring on Category. Matching is case-insensitive.
func (f Filter) Matches(r Risk) bool {
	if !r.MatchesSearch(f.Search) {
		return false
	}
	if f.Status != "" && !strings.EqualFold(string(r.Status), f.Status) {
		return false
	}
	if f.Level != "" && !strings.EqualFold(string(r.Level), f.Level) {
		return false
	}
	if f.Category != "" && !strings.Contains(strings.ToLower(r.Category), strings.ToLower(f.Category)) {
		return false
	}
	return true
}

// Summary renders the active fields as "key=value" pairs for status lines.
func (f Filter) Summary() string {
	var parts []string
	if f.Search != "" {
		parts = append(parts, "search="+f.Search)
	}
	if f.Status != "" {
		parts = append(parts, "status="+f.Status)
	}
	if f.Level != "" {
		parts = append(parts, "level="+f.Level)
	}
	if f.Category != "" {
		parts = append(parts, "category="+f.Category)
	}
	if len(parts) == 0 {
		return "all risks"
	}
	return strings.Join(parts, " ")
}

// SavedFilter is a named snapshot of filter values.
type SavedFilter struct {
	Name   string `json:"name" yaml:"name"`
	Filter Filter `json:"filter" yaml:"filter"`
	// Builtin marks presets shipped with the application. They cannot be
	// deleted, but a user preset with the same name shadows them.
	Builtin bool `json:"-" yaml:"-"`
}

// Patch is a partial position update. A field is written only when its Set
// flag is true; a nil value with Set=true clears the column.
type Patch struct {
	Probability      *int
	Impact           *int
	PriorityOrder    *int
	SetProbability   bool
	SetImpact        bool
	SetPriorityOrder bool
}

// PositionPatch builds the patch that moves r to its current coordinates and
// priority order. Relocations always write all three columns.
func PositionPatch(r Risk) Patch {
	return Patch{
		Probability:      cloneInt(r.Probability),
		Impact:           cloneInt(r.Impact),
		PriorityOrder:    cloneInt(r.PriorityOrder),
		SetProbability:   true,
		SetImpact:        true,
		SetPriorityOrder: true,
	}
}

// OrderPatch builds a patch that only writes the priority order.
func OrderPatch(order *int) Patch {
	return Patch{PriorityOrder: cloneInt(order), SetPriorityOrder: true}
}

// IsEmpty reports whether the patch writes nothing.
func (p Patch) IsEmpty() bool {
	return !p.SetProbability && !p.SetImpact && !p.SetPriorityOrder
}

// ApplyTo writes the patched fields onto r.
func (p Patch) ApplyTo(r *Risk) {
	if p.SetProbability {
		r.Probability = cloneInt(p.Probability)
	}
	if p.SetImpact {
		r.Impact = cloneInt(p.Impact)
	}
	if p.SetPriorityOrder {
		r.PriorityOrder = cloneInt(p.PriorityOrder)
	}
}

// OrderUpdate is one row of a bulk backlog reorder.
type OrderUpdate struct {
	ID            string `json:"id"`
	PriorityOrder int    `json:"priority_order"`
}
