package testutil

import (
	"testing"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// AssertNoDuplicateIDs verifies all risk IDs are unique.
func AssertNoDuplicateIDs(t testing.TB, risks []model.Risk) {
	t.Helper()
	seen := make(map[string]bool)
	for _, r := range risks {
		if seen[r.ID] {
			t.Errorf("duplicate risk ID: %s", r.ID)
		}
		seen[r.ID] = true
	}
}

// IDs returns the IDs of risks in order.
func IDs(risks []model.Risk) []string {
	ids := make([]string, len(risks))
	for i, r := range risks {
		ids[i] = r.ID
	}
	return ids
}

// AssertIDs verifies the exact ID sequence.
func AssertIDs(t testing.TB, risks []model.Risk, want ...string) {
	t.Helper()
	got := IDs(risks)
	if len(got) != len(want) {
		t.Fatalf("expected IDs %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected IDs %v, got %v", want, got)
		}
	}
}

// AssertPosition verifies the coordinates of the risk with the given id.
// Pass 0 for p and i to assert that the risk is unplaced.
func AssertPosition(t testing.TB, risks []model.Risk, id string, p, i int) {
	t.Helper()
	idx := model.FindByID(risks, id)
	if idx < 0 {
		t.Fatalf("risk %s not found", id)
	}
	r := risks[idx]
	if p == 0 && i == 0 {
		if r.Probability != nil || r.Impact != nil {
			t.Errorf("expected %s unplaced, got %s", id, r.PositionString())
		}
		return
	}
	if r.Probability == nil || r.Impact == nil || *r.Probability != p || *r.Impact != i {
		t.Errorf("expected %s at P%d×I%d, got %s", id, p, i, r.PositionString())
	}
}

// AssertOrder verifies the priority order of the risk with the given id.
func AssertOrder(t testing.TB, risks []model.Risk, id string, order int) {
	t.Helper()
	idx := model.FindByID(risks, id)
	if idx < 0 {
		t.Fatalf("risk %s not found", id)
	}
	got := risks[idx].PriorityOrder
	if got == nil || *got != order {
		t.Errorf("expected %s priority order %d, got %v", id, order, got)
	}
}
