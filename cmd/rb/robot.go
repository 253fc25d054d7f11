package main

import (
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/riskboard/pkg/dashboard"
	"github.com/vanderheijden86/riskboard/pkg/metrics"
	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/stats"
	"github.com/vanderheijden86/riskboard/pkg/testutil"
	"github.com/vanderheijden86/riskboard/pkg/version"
)

type robotCell struct {
	Probability int      `json:"probability"`
	Impact      int      `json:"impact"`
	Score       int      `json:"score"`
	Severity    string   `json:"severity"`
	RiskIDs     []string `json:"risk_ids"`
}

type robotOutput struct {
	Version     string              `json:"version"`
	GeneratedAt time.Time           `json:"generated_at"`
	GridSize    int                 `json:"grid_size"`
	Filter      model.Filter        `json:"filter"`
	Cells       []robotCell         `json:"cells"`
	Backlog     []model.Risk        `json:"backlog"`
	Stats       stats.Snapshot      `json:"stats"`
	Timings     []metrics.OpSummary `json:"timings"`
}

// writeRobotJSON prints the non-empty cells, the backlog, the statistics and
// the timings of the operations that ran in this process.
func writeRobotJSON(w io.Writer, view dashboard.View) error {
	out := robotOutput{
		Version:     version.Version,
		GeneratedAt: time.Now().UTC(),
		GridSize:    view.GridSize,
		Filter:      view.Filter,
		Cells:       []robotCell{},
		Backlog:     view.Backlog,
		Stats:       view.Stats,
		Timings:     metrics.Summaries(),
	}
	if out.Backlog == nil {
		out.Backlog = []model.Risk{}
	}
	for _, c := range view.Grid.Cells() {
		if c.Len() == 0 {
			continue
		}
		ids := make([]string, 0, c.Len())
		for _, r := range c.Risks {
			ids = append(ids, r.ID)
		}
		out.Cells = append(out.Cells, robotCell{
			Probability: c.Probability,
			Impact:      c.Impact,
			Score:       c.Score,
			Severity:    string(c.Severity),
			RiskIDs:     ids,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// demoRisks generates a reproducible sample portfolio.
func demoRisks(count, gridSize int) []model.Risk {
	cfg := testutil.DefaultConfig()
	cfg.IDPrefix = "DEMO"
	cfg.GridSize = gridSize
	cfg.BaseTime = time.Now().UTC().Truncate(24 * time.Hour)
	return testutil.New(cfg).Risks(count)
}
