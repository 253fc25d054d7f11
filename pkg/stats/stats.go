// Package stats derives the dashboard analytics from the filtered working set.
// Every function is pure except that a Snapshot records the wall-clock time it
// was computed at. The dashboard recomputes a Snapshot whenever the working
// set changes.
package stats

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/riskboard/pkg/matrix"
	"github.com/vanderheijden86/riskboard/pkg/metrics"
	"github.com/vanderheijden86/riskboard/pkg/model"
)

const (
	// Uncategorized labels risks with an empty category.
	Uncategorized = "uncategorized"
	// UnknownMonth labels risks with no creation time.
	UnknownMonth = "unknown"
)

// Count is one bar of a distribution.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Total sums the counts.
func Total(counts []Count) int {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return total
}

// Max returns the largest count, or 0.
func Max(counts []Count) int {
	highest := 0
	for _, c := range counts {
		if c.Count > highest {
			highest = c.Count
		}
	}
	return highest
}

// ByLevel counts risks per assessed level. All four levels are always present
// in low→critical order. Risks with an unknown level are not counted.
func ByLevel(risks []model.Risk) []Count {
	levels := model.Levels()
	counts := make([]Count, len(levels))
	for idx, l := range levels {
		counts[idx].Key = string(l)
	}
	for _, r := range risks {
		if rank := r.Level.Rank(); rank >= 0 {
			counts[rank].Count++
		}
	}
	return counts
}

// ByStatus counts risks per lifecycle status. Only observed statuses are
// returned, in lifecycle order; unknown statuses follow, sorted by name.
func ByStatus(risks []model.Risk) []Count {
	seen := make(map[model.Status]int)
	for _, r := range risks {
		seen[r.Status]++
	}

	counts := make([]Count, 0, len(seen))
	for _, s := range model.Statuses() {
		if n, ok := seen[s]; ok {
			counts = append(counts, Count{Key: string(s), Count: n})
			delete(seen, s)
		}
	}
	var extra []Count
	for s, n := range seen {
		key := string(s)
		if key == "" {
			key = "unset"
		}
		extra = append(extra, Count{Key: key, Count: n})
	}
	sort.Slice(extra, func(a, b int) bool { return extra[a].Key < extra[b].Key })
	return append(counts, extra...)
}

// ByCategory counts risks per category, most frequent first with ties broken
// by name. An empty category counts as Uncategorized.
func ByCategory(risks []model.Risk) []Count {
	seen := make(map[string]int)
	for _, r := range risks {
		key := r.Category
		if key == "" {
			key = Uncategorized
		}
		seen[key]++
	}
	counts := make([]Count, 0, len(seen))
	for k, n := range seen {
		counts = append(counts, Count{Key: k, Count: n})
	}
	sort.Slice(counts, func(a, b int) bool {
		if counts[a].Count != counts[b].Count {
			return counts[a].Count > counts[b].Count
		}
		return counts[a].Key < counts[b].Key
	})
	return counts
}

// MonthlyTrend bins risks by the UTC month of their creation time ("2025-03").
// Keys ascend; risks without a creation time are grouped under UnknownMonth,
// which sorts last. Months with no risks are not filled in.
func MonthlyTrend(risks []model.Risk) []Count {
	seen := make(map[string]int)
	unknown := 0
	for _, r := range risks {
		if r.CreatedAt.IsZero() {
			unknown++
			continue
		}
		seen[r.CreatedAt.UTC().Format("2006-01")]++
	}
	counts := make([]Count, 0, len(seen)+1)
	for k, n := range seen {
		counts = append(counts, Count{Key: k, Count: n})
	}
	sort.Slice(counts, func(a, b int) bool { return counts[a].Key < counts[b].Key })
	if unknown > 0 {
		counts = append(counts, Count{Key: UnknownMonth, Count: unknown})
	}
	return counts
}

// Summary describes the cell scores of the placed risks.
type Summary struct {
	Placed int     `json:"placed"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// ScoreSummary summarises the cell scores of every risk on the grid. An empty
// grid yields a zero Summary.
func ScoreSummary(g matrix.Grid) Summary {
	scores := g.Scores()
	if len(scores) == 0 {
		return Summary{}
	}
	sort.Float64s(scores)
	return Summary{
		Placed: len(scores),
		Mean:   stat.Mean(scores, nil),
		StdDev: stat.PopStdDev(scores, nil),
		Median: stat.Quantile(0.5, stat.Empirical, scores, nil),
		Max:    scores[len(scores)-1],
	}
}

// Snapshot bundles every analytic for one working set.
type Snapshot struct {
	Total      int       `json:"total"`
	Placed     int       `json:"placed"`
	Backlog    int       `json:"backlog"`
	ByLevel    []Count   `json:"by_level"`
	ByStatus   []Count   `json:"by_status"`
	ByCategory []Count   `json:"by_category"`
	ByMonth    []Count   `json:"by_month"`
	Severity   []Count   `json:"by_severity"`
	Scores     Summary   `json:"scores"`
	ComputedAt time.Time `json:"computed_at"`
}

// Compute derives a Snapshot for risks on a grid of size n.
func Compute(risks []model.Risk, n int) Snapshot {
	return FromGrid(risks, matrix.Bucketize(risks, n))
}

// FromGrid derives a Snapshot when the caller already holds the grid. Only
// ComputedAt depends on when it is called.
func FromGrid(risks []model.Risk, g matrix.Grid) Snapshot {
	defer metrics.Timer(metrics.StatsCompute)()

	bySeverity := g.BySeverity()
	severity := make([]Count, 0, 4)
	for _, l := range model.Levels() {
		severity = append(severity, Count{Key: string(l), Count: bySeverity[l]})
	}
	return Snapshot{
		Total:      len(risks),
		Placed:     g.Count(),
		Backlog:    len(risks) - g.Count(),
		ByLevel:    ByLevel(risks),
		ByStatus:   ByStatus(risks),
		ByCategory: ByCategory(risks),
		ByMonth:    MonthlyTrend(risks),
		Severity:   severity,
		Scores:     ScoreSummary(g),
		ComputedAt: time.Now(),
	}
}
