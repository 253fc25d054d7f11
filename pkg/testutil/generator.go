// Package testutil provides deterministic risk fixtures and rapid generators
// for engine tests.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed         int64     // Random seed for determinism (0 = use current time)
	IDPrefix     string    // Prefix for risk IDs (default: "RISK")
	BaseTime     time.Time // Base time for timestamps (default: fixed time)
	GridSize     int       // Coordinate range (default: model.DefaultGridSize)
	PlacedRatio  float64   // Fraction of risks placed on the grid (default 0.5)
	OrderedRatio float64   // Fraction of backlog risks with a priority order (default 0.8)
	Categories   []string  // Category pool (nil = a small default pool)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:         42,
		IDPrefix:     "RISK",
		BaseTime:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		GridSize:     model.DefaultGridSize,
		PlacedRatio:  0.5,
		OrderedRatio: 0.8,
		Categories:   []string{"operational", "compliance", "security", "financial", "vendor"},
	}
}

// Generator creates risk fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = def.BaseTime
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = def.IDPrefix
	}
	if cfg.GridSize <= 0 {
		cfg.GridSize = def.GridSize
	}
	if cfg.PlacedRatio <= 0 {
		cfg.PlacedRatio = def.PlacedRatio
	}
	if cfg.OrderedRatio <= 0 {
		cfg.OrderedRatio = def.OrderedRatio
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = def.Categories
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Risks generates count risks with unique IDs. Creation times step back one
// day per risk from BaseTime so trend buckets span several months.
func (g *Generator) Risks(count int) []model.Risk {
	levels := model.Levels()
	statuses := model.Statuses()
	risks := make([]model.Risk, 0, count)
	for n := 0; n < count; n++ {
		r := model.Risk{
			ID:          fmt.Sprintf("%s-%d", g.cfg.IDPrefix, n+1),
			Title:       fmt.Sprintf("Risk %d", n+1),
			Description: fmt.Sprintf("Generated risk number %d", n+1),
			Category:    g.cfg.Categories[g.rng.Intn(len(g.cfg.Categories))],
			Level:       levels[g.rng.Intn(len(levels))],
			Status:      statuses[g.rng.Intn(len(statuses))],
			CreatedAt:   g.cfg.BaseTime.AddDate(0, 0, -n),
		}
		if g.rng.Float64() < g.cfg.PlacedRatio {
			r.Probability = model.IntPtr(1 + g.rng.Intn(g.cfg.GridSize))
			r.Impact = model.IntPtr(1 + g.rng.Intn(g.cfg.GridSize))
		} else if g.rng.Float64() < g.cfg.OrderedRatio {
			r.PriorityOrder = model.IntPtr(1 + g.rng.Intn(count+1))
		}
		risks = append(risks, r)
	}
	return risks
}

// Backlog generates count off-grid risks with priority orders 1..count in
// input order.
func (g *Generator) Backlog(count int) []model.Risk {
	risks := make([]model.Risk, 0, count)
	for n := 0; n < count; n++ {
		risks = append(risks, model.Risk{
			ID:            fmt.Sprintf("%s-B%d", g.cfg.IDPrefix, n+1),
			Title:         fmt.Sprintf("Backlog risk %d", n+1),
			Level:         model.LevelMedium,
			Status:        model.StatusIdentified,
			PriorityOrder: model.IntPtr(n + 1),
			CreatedAt:     g.cfg.BaseTime.Add(time.Duration(n) * time.Hour),
		})
	}
	return risks
}

// ============================================================================
// rapid generators
// ============================================================================

// coordinate draws an unset, in-range or out-of-range coordinate.
func coordinate(t *rapid.T, label string, n int) *int {
	switch rapid.IntRange(0, 3).Draw(t, label+"_kind") {
	case 0:
		return nil
	case 1:
		// Out of range on either side.
		return model.IntPtr(rapid.SampledFrom([]int{-1, 0, n + 1, n + 7}).Draw(t, label+"_out"))
	default:
		return model.IntPtr(rapid.IntRange(1, n).Draw(t, label))
	}
}

// RiskSet draws a working set of up to maxLen risks with unique IDs for a grid
// of size n. Coordinates may be unset or out of range, priority orders may be
// missing or collide, and creation times may tie.
func RiskSet(n, maxLen int) *rapid.Generator[[]model.Risk] {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return rapid.Custom(func(t *rapid.T) []model.Risk {
		count := rapid.IntRange(0, maxLen).Draw(t, "count")
		risks := make([]model.Risk, 0, count)
		for k := 0; k < count; k++ {
			r := model.Risk{
				ID:          fmt.Sprintf("r%d", k),
				Title:       fmt.Sprintf("risk %d", k),
				Category:    rapid.SampledFrom([]string{"", "ops", "security", "legal"}).Draw(t, "category"),
				Level:       rapid.SampledFrom(model.Levels()).Draw(t, "level"),
				Status:      rapid.SampledFrom(model.Statuses()).Draw(t, "status"),
				Probability: coordinate(t, "probability", n),
				Impact:      coordinate(t, "impact", n),
				CreatedAt:   base.AddDate(0, 0, rapid.IntRange(0, 400).Draw(t, "age_days")),
			}
			if rapid.Bool().Draw(t, "has_order") {
				r.PriorityOrder = model.IntPtr(rapid.IntRange(-2, 10).Draw(t, "order"))
			}
			risks = append(risks, r)
		}
		return risks
	})
}

// BacklogSet draws between minLen and maxLen off-grid risks with unique IDs.
func BacklogSet(minLen, maxLen int) *rapid.Generator[[]model.Risk] {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return rapid.Custom(func(t *rapid.T) []model.Risk {
		count := rapid.IntRange(minLen, maxLen).Draw(t, "count")
		risks := make([]model.Risk, 0, count)
		for k := 0; k < count; k++ {
			r := model.Risk{
				ID:        fmt.Sprintf("b%d", k),
				CreatedAt: base.Add(time.Duration(rapid.IntRange(0, 48).Draw(t, "hour")) * time.Hour),
			}
			if rapid.Bool().Draw(t, "has_order") {
				r.PriorityOrder = model.IntPtr(rapid.IntRange(1, 6).Draw(t, "order"))
			}
			risks = append(risks, r)
		}
		return risks
	})
}
