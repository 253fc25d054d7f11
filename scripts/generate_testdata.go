//go:build ignore

// generate_testdata.go creates risk registers for rb --import.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/risks/small.jsonl   (50 risks, 5×5 grid)
//	testdata/risks/medium.jsonl  (500 risks, 5×5 grid)
//	testdata/risks/large.jsonl   (5000 risks, 10×10 grid)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/testutil"
)

type datasetSpec struct {
	name     string
	size     int
	gridSize int
	placed   float64
}

var datasets = []datasetSpec{
	{"small", 50, 5, 0.6},
	{"medium", 500, 5, 0.5},
	{"large", 5000, 10, 0.3},
}

func main() {
	outputDir := "testdata/risks"
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d risks)...\n", ds.name, ds.size)

		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.size) // Reproducible per-size
		cfg.IDPrefix = "R"
		cfg.GridSize = ds.gridSize
		cfg.PlacedRatio = ds.placed

		risks := testutil.New(cfg).Risks(ds.size)
		addRealisticContent(risks)
		jsonl := testutil.ToJSONL(risks)

		outputPath := filepath.Join(outputDir, ds.name+".jsonl")
		if err := os.WriteFile(outputPath, []byte(jsonl), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d bytes)\n", outputPath, len(jsonl))
	}

	fmt.Println("\nDone! Risk registers created in", outputDir)
}

func addRealisticContent(risks []model.Risk) {
	titles := []string{
		"Ransomware on file servers",
		"Loss of key engineer",
		"Cloud region outage",
		"Supplier insolvency",
		"GDPR breach notification missed",
		"Payment provider lock-in",
		"Unpatched VPN appliance",
		"Currency exposure on contracts",
	}
	descriptions := []string{
		"Threat scenario.\n\n## Controls\n- Offline backups\n- EDR on servers",
		"Single point of failure.\n\n## Mitigation\n1. Document runbooks\n2. Pair on releases",
		"Third-party dependency.\n\n## Exit plan\n- [ ] Second supplier\n- [ ] Contract review",
	}
	for i := range risks {
		risks[i].Title = fmt.Sprintf("%s #%d", titles[i%len(titles)], i)
		risks[i].Description = descriptions[i%len(descriptions)]
	}
}
