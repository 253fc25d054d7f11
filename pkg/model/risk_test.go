package model

import (
	"testing"
	"time"
)

func TestOnGrid(t *testing.T) {
	tests := []struct {
		name string
		risk Risk
		n    int
		want bool
	}{
		{"both set in range", Risk{Probability: IntPtr(3), Impact: IntPtr(4)}, 5, true},
		{"corner low", Risk{Probability: IntPtr(1), Impact: IntPtr(1)}, 5, true},
		{"corner high", Risk{Probability: IntPtr(5), Impact: IntPtr(5)}, 5, true},
		{"probability unset", Risk{Impact: IntPtr(2)}, 5, false},
		{"impact unset", Risk{Probability: IntPtr(2)}, 5, false},
		{"zero probability", Risk{Probability: IntPtr(0), Impact: IntPtr(2)}, 5, false},
		{"impact above n", Risk{Probability: IntPtr(2), Impact: IntPtr(6)}, 5, false},
		{"smaller grid", Risk{Probability: IntPtr(4), Impact: IntPtr(1)}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.risk.OnGrid(tt.n); got != tt.want {
				t.Errorf("OnGrid(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestCloneDoesNotShareCoordinates(t *testing.T) {
	r := Risk{ID: "r1", Probability: IntPtr(2), Impact: IntPtr(3), PriorityOrder: IntPtr(7)}
	c := r.Clone()
	*c.Probability = 5
	*c.PriorityOrder = 1

	if *r.Probability != 2 {
		t.Errorf("original probability mutated: %d", *r.Probability)
	}
	if *r.PriorityOrder != 7 {
		t.Errorf("original priority order mutated: %d", *r.PriorityOrder)
	}
}

func TestFilterMatches(t *testing.T) {
	r := Risk{
		ID:          "r1",
		Title:       "Vendor outage",
		Description: "Payment processor unavailable",
		Category:    "Third-Party Operational",
		Level:       LevelHigh,
		Status:      StatusTreating,
		CreatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"title substring", Filter{Search: "OUTAGE"}, true},
		{"description substring", Filter{Search: "processor"}, true},
		{"search miss", Filter{Search: "phishing"}, false},
		{"status exact", Filter{Status: "treating"}, true},
		{"status prefix is not exact", Filter{Status: "treat"}, false},
		{"level exact", Filter{Level: "high"}, true},
		{"level miss", Filter{Level: "low"}, false},
		{"category substring", Filter{Category: "party"}, true},
		{"combined", Filter{Search: "vendor", Level: "high", Category: "operational"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(r); got != tt.want {
				t.Errorf("Matches(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestPatchApplyTo(t *testing.T) {
	r := Risk{Probability: IntPtr(2), Impact: IntPtr(2), PriorityOrder: nil}

	OrderPatch(IntPtr(4)).ApplyTo(&r)
	if r.PriorityOrder == nil || *r.PriorityOrder != 4 {
		t.Fatalf("expected priority order 4, got %v", r.PriorityOrder)
	}
	if *r.Probability != 2 {
		t.Errorf("order patch must not touch probability")
	}

	Patch{SetProbability: true, SetImpact: true}.ApplyTo(&r)
	if r.Probability != nil || r.Impact != nil {
		t.Errorf("expected coordinates cleared, got %v/%v", r.Probability, r.Impact)
	}
}

func TestSamePosition(t *testing.T) {
	a := Risk{Probability: IntPtr(1), Impact: IntPtr(2)}
	b := Risk{Probability: IntPtr(1), Impact: IntPtr(2)}
	if !SamePosition(a, b) {
		t.Error("expected equal positions")
	}
	b.PriorityOrder = IntPtr(1)
	if SamePosition(a, b) {
		t.Error("expected different positions when priority order differs")
	}
}
