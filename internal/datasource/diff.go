package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// WorkingSetDiff describes how the local projection of the working set
// differs from what the backend holds.
type WorkingSetDiff struct {
	// MissingLocally contains ids present in the backend but not locally
	MissingLocally []string `json:"missing_locally,omitempty"`
	// MissingPersisted contains ids present locally but not in the backend
	MissingPersisted []string `json:"missing_persisted,omitempty"`
	// PositionMismatch lists risks whose coordinates or order differ
	PositionMismatch []PositionDifference `json:"position_mismatch,omitempty"`
	CountLocal       int                  `json:"count_local"`
	CountPersisted   int                  `json:"count_persisted"`
}

// PositionDifference is a position mismatch for a single risk.
type PositionDifference struct {
	ID        string `json:"id"`
	Local     string `json:"local"`
	Persisted string `json:"persisted"`
}

// HasInconsistencies returns true if the two sets differ.
func (d WorkingSetDiff) HasInconsistencies() bool {
	return len(d.MissingLocally) > 0 || len(d.MissingPersisted) > 0 || len(d.PositionMismatch) > 0
}

// Summary returns a human-readable summary of the differences.
func (d WorkingSetDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("local view matches backend (%d risks)", d.CountLocal)
	}

	var b strings.Builder
	b.WriteString("local view differs from backend:\n")
	if d.CountLocal != d.CountPersisted {
		fmt.Fprintf(&b, "  - count mismatch: %d local vs %d persisted\n", d.CountLocal, d.CountPersisted)
	}
	writeIDs := func(label string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "  - %d %s\n", len(ids), label)
		if len(ids) <= 5 {
			for _, id := range ids {
				fmt.Fprintf(&b, "    - %s\n", id)
			}
		}
	}
	writeIDs("risks only in backend", d.MissingLocally)
	writeIDs("risks only in local view", d.MissingPersisted)
	if len(d.PositionMismatch) > 0 {
		fmt.Fprintf(&b, "  - %d risks at different positions\n", len(d.PositionMismatch))
		if len(d.PositionMismatch) <= 5 {
			for _, m := range d.PositionMismatch {
				fmt.Fprintf(&b, "    - %s: %s vs %s\n", m.ID, m.Local, m.Persisted)
			}
		}
	}
	return b.String()
}

// Diff compares a local working set with a freshly loaded one. Results are
// sorted by id.
func Diff(local, persisted []model.Risk) WorkingSetDiff {
	localByID := make(map[string]model.Risk, len(local))
	for _, r := range local {
		localByID[r.ID] = r
	}
	persistedByID := make(map[string]model.Risk, len(persisted))
	for _, r := range persisted {
		persistedByID[r.ID] = r
	}

	diff := WorkingSetDiff{
		CountLocal:     len(localByID),
		CountPersisted: len(persistedByID),
	}
	for id := range localByID {
		if _, ok := persistedByID[id]; !ok {
			diff.MissingPersisted = append(diff.MissingPersisted, id)
		}
	}
	for id, p := range persistedByID {
		l, ok := localByID[id]
		if !ok {
			diff.MissingLocally = append(diff.MissingLocally, id)
			continue
		}
		if !model.SamePosition(l, p) {
			diff.PositionMismatch = append(diff.PositionMismatch, PositionDifference{
				ID:        id,
				Local:     l.PositionString(),
				Persisted: p.PositionString(),
			})
		}
	}

	sort.Strings(diff.MissingLocally)
	sort.Strings(diff.MissingPersisted)
	sort.Slice(diff.PositionMismatch, func(a, b int) bool {
		return diff.PositionMismatch[a].ID < diff.PositionMismatch[b].ID
	})
	return diff
}
