package main_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

type robotPayload struct {
	GridSize int `json:"grid_size"`
	Cells    []struct {
		Probability int      `json:"probability"`
		Impact      int      `json:"impact"`
		Severity    string   `json:"severity"`
		RiskIDs     []string `json:"risk_ids"`
	} `json:"cells"`
	Backlog []struct {
		ID            string `json:"id"`
		PriorityOrder *int   `json:"priority_order"`
	} `json:"backlog"`
}

func robotJSON(t *testing.T, e rbEnv, args ...string) robotPayload {
	t.Helper()
	out := e.run(t, append(args, "--robot-json")...)
	var p robotPayload
	if err := json.Unmarshal(out, &p); err != nil {
		t.Fatalf("robot output is not JSON: %v\n%s", err, out)
	}
	return p
}

func TestRobotJSONAfterImport(t *testing.T) {
	e := newEnv(t)
	path := e.writeFile(t, "risks.jsonl", strings.Join([]string{
		`{"id":"R-1","title":"Ransomware","probability":5,"impact":5,"risk_level":"critical"}`,
		`{"id":"R-2","title":"Vendor lock-in","priority_order":2}`,
		`{"id":"R-3","title":"Key person","priority_order":1}`,
		`{"id":"R-4","title":"Off grid","probability":9,"impact":1}`,
	}, "\n"))

	p := robotJSON(t, e, "--import", path)
	if p.GridSize != 5 {
		t.Errorf("expected grid size 5, got %d", p.GridSize)
	}
	if len(p.Cells) != 1 || p.Cells[0].Probability != 5 || p.Cells[0].Impact != 5 {
		t.Fatalf("expected one occupied cell at 5×5, got %+v", p.Cells)
	}
	if p.Cells[0].Severity != "critical" {
		t.Errorf("expected critical severity at 5×5, got %q", p.Cells[0].Severity)
	}
	var backlog []string
	for _, r := range p.Backlog {
		backlog = append(backlog, r.ID)
	}
	if strings.Join(backlog, ",") != "R-3,R-2,R-4" {
		t.Errorf("expected backlog R-3,R-2,R-4, got %v", backlog)
	}
}

func TestImportIsIdempotentAcrossRuns(t *testing.T) {
	e := newEnv(t)
	path := e.writeFile(t, "risks.jsonl", `{"id":"R-1","title":"Ransomware","probability":2,"impact":3}`)

	robotJSON(t, e, "--import", path)
	p := robotJSON(t, e, "--import", path)
	if len(p.Cells) != 1 || len(p.Cells[0].RiskIDs) != 1 {
		t.Fatalf("expected R-1 once, got %+v", p.Cells)
	}
}

func TestDemoGridSizeFlag(t *testing.T) {
	e := newEnv(t)
	p := robotJSON(t, e, "--demo", "25", "--grid-size", "7")
	if p.GridSize != 7 {
		t.Fatalf("expected grid size 7, got %d", p.GridSize)
	}
	total := len(p.Backlog)
	for _, c := range p.Cells {
		if c.Probability < 1 || c.Probability > 7 || c.Impact < 1 || c.Impact > 7 {
			t.Errorf("cell out of range: %+v", c)
		}
		total += len(c.RiskIDs)
	}
	if total != 25 {
		t.Errorf("expected 25 risks across grid and backlog, got %d", total)
	}
}

func TestReportAndExport(t *testing.T) {
	e := newEnv(t)
	report := string(e.run(t, "--demo", "12", "--report"))
	if !strings.Contains(report, "| **Total** | 12 |") {
		t.Errorf("report missing total row:\n%s", report)
	}

	outDir := filepath.Join(e.dir, "out")
	listing := strings.Fields(string(e.run(t, "--export", outDir)))
	if len(listing) != 3 {
		t.Fatalf("expected three exported files, got %v", listing)
	}
	for _, p := range listing {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Errorf("export %s missing or empty: %v", p, err)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	e := newEnv(t)
	out := string(e.run(t, "--version"))
	if !strings.HasPrefix(out, "rb ") {
		t.Errorf("unexpected version output %q", out)
	}
}
