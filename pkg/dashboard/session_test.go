package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vanderheijden86/riskboard/internal/datasource"
	"github.com/vanderheijden86/riskboard/pkg/filters"
	"github.com/vanderheijden86/riskboard/pkg/localstore"
	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/relocation"
	"github.com/vanderheijden86/riskboard/pkg/testutil"
)

// flakyService lets tests fail queries and make updates land but report an
// error, as a timed out request would.
type flakyService struct {
	*datasource.MemoryStore
	queryErr     error
	writeThenErr error
}

func (f *flakyService) Query(ctx context.Context, flt model.Filter) ([]model.Risk, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.MemoryStore.Query(ctx, flt)
}

func (f *flakyService) UpdateRisk(ctx context.Context, id string, p model.Patch) error {
	if err := f.MemoryStore.UpdateRisk(ctx, id, p); err != nil {
		return err
	}
	return f.writeThenErr
}

var t0 = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func scenario() []model.Risk {
	return []model.Risk{
		{ID: "1", Title: "Ransomware", Probability: model.IntPtr(3), Impact: model.IntPtr(4), Level: model.LevelHigh, CreatedAt: t0},
		{ID: "2", Title: "Key person", PriorityOrder: model.IntPtr(2), Level: model.LevelLow, CreatedAt: t0.Add(time.Hour)},
		{ID: "3", Title: "Vendor lock-in", PriorityOrder: model.IntPtr(1), Level: model.LevelMedium, CreatedAt: t0.Add(2 * time.Hour)},
	}
}

func newSession(t *testing.T, svc datasource.Service) *Session {
	t.Helper()
	s, err := NewSession(svc, localstore.NewMemoryStore(), Options{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return s
}

func TestSessionScenario(t *testing.T) {
	s := newSession(t, datasource.NewMemoryStore(scenario()...))
	v := s.View()

	c, _ := v.Grid.Cell(3, 4)
	testutil.AssertIDs(t, c.Risks, "1")
	if c.Score != 12 {
		t.Errorf("expected score 12, got %d", c.Score)
	}
	testutil.AssertIDs(t, v.Backlog, "3", "2")
	if v.Stats.Total != 3 || v.Stats.Placed != 1 || v.Stats.Backlog != 2 {
		t.Errorf("unexpected stats %+v", v.Stats)
	}
}

func TestLoadErrorKeepsStaleSet(t *testing.T) {
	svc := &flakyService{MemoryStore: datasource.NewMemoryStore(scenario()...)}
	s := newSession(t, svc)

	svc.queryErr = errors.New("connection refused")
	_ = s.Filters().SetField(filters.FieldSearch, "vendor")
	if err := s.Reload(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if len(s.Risks()) != 3 {
		t.Errorf("expected stale working set of 3, got %d", len(s.Risks()))
	}
	if s.Banner().Kind != BannerLoad || s.LastError() == nil {
		t.Errorf("expected load banner, got %+v", s.Banner())
	}

	svc.queryErr = nil
	if err := s.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, s.Risks(), "3")
	if s.Banner().Kind != BannerNone {
		t.Errorf("expected banner cleared after a good reload, got %+v", s.Banner())
	}
}

func TestFailedMoveRevertsAndReportsDivergence(t *testing.T) {
	svc := &flakyService{MemoryStore: datasource.NewMemoryStore(scenario()...)}
	s := newSession(t, svc)
	ctx := context.Background()

	if err := s.PickUp("2"); err != nil {
		t.Fatal(err)
	}
	commit, err := s.DropOnCell(5, 5)
	if err != nil || commit == nil {
		t.Fatalf("DropOnCell: %v %v", commit, err)
	}
	if !s.View().Grid.Contains("2") {
		t.Fatal("expected optimistic move to show on the grid")
	}
	if s.Selection().ID() != "2" {
		t.Errorf("expected moved risk selected, got %q", s.Selection().ID())
	}

	svc.writeThenErr = errors.New("timeout")
	res := relocation.Persist(ctx, svc, *commit)
	if got := s.Apply(res); got != relocation.OutcomeReverted {
		t.Fatalf("expected reverted, got %s", got)
	}
	if s.View().Grid.Contains("2") {
		t.Error("expected move undone locally")
	}
	if s.Banner().Kind != BannerRelocation {
		t.Errorf("expected relocation banner, got %+v", s.Banner())
	}

	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	d := s.Divergence()
	if d == nil || len(d.PositionMismatch) != 1 || d.PositionMismatch[0].ID != "2" {
		t.Fatalf("expected divergence on risk 2, got %+v", d)
	}
	if !s.View().Grid.Contains("2") {
		t.Error("expected reload to adopt the backend position")
	}
}

func TestReorderThroughSession(t *testing.T) {
	svc := datasource.NewMemoryStore(scenario()...)
	s := newSession(t, svc)

	commit, err := s.Reorder(0, 1)
	if err != nil || commit == nil {
		t.Fatalf("Reorder: %v %v", commit, err)
	}
	testutil.AssertIDs(t, s.View().Backlog, "2", "3")

	res := s.Controller().PersistReorder(context.Background(), svc, commit)
	if got := s.ApplyReorder(res); got != relocation.OutcomeCommitted {
		t.Fatalf("expected committed, got %s (%v)", got, res.Err)
	}
	if err := s.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, s.View().Backlog, "2", "3")
}

func TestMissingPresetSetsBanner(t *testing.T) {
	s := newSession(t, datasource.NewMemoryStore(scenario()...))
	_ = s.Filters().SetField(filters.FieldLevel, "low")
	before := s.Filters().Current()

	err := s.LoadPreset(context.Background(), "missing")
	if !errors.Is(err, filters.ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
	if s.Filters().Current() != before {
		t.Errorf("filter changed: %+v", s.Filters().Current())
	}
	if s.Banner().Kind != BannerPreset {
		t.Errorf("expected preset banner, got %+v", s.Banner())
	}
}

func TestReloadClearsVanishedSelection(t *testing.T) {
	svc := datasource.NewMemoryStore(scenario()...)
	s := newSession(t, svc)
	s.Selection().Select("1")
	if s.Selected() == nil {
		t.Fatal("expected selection")
	}

	svc.Delete("1")
	if err := s.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Selection().ID() != "" || s.Selected() != nil {
		t.Errorf("expected selection cleared, got %q", s.Selection().ID())
	}
}

func TestFilterReloadDeferredWhileMovePending(t *testing.T) {
	svc := datasource.NewMemoryStore(scenario()...)
	s := newSession(t, svc)
	ctx := context.Background()

	if err := s.PickUp("1"); err != nil {
		t.Fatal(err)
	}
	commit, err := s.DropOnCell(4, 4)
	if err != nil || commit == nil {
		t.Fatalf("DropOnCell: %v %v", commit, err)
	}

	if err := s.Filters().SetField(filters.FieldLevel, string(model.LevelHigh)); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if !s.ReloadDeferred() || len(s.Risks()) != 3 || !s.View().Filter.IsEmpty() {
		t.Fatalf("expected the filtered reload to wait, got %d risks under %q", len(s.Risks()), s.View().Filter.Summary())
	}
	testutil.AssertPosition(t, s.Risks(), "1", 4, 4)

	if got := s.Apply(relocation.Persist(ctx, svc, *commit)); got != relocation.OutcomeCommitted {
		t.Fatalf("expected committed, got %s", got)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if s.ReloadDeferred() {
		t.Error("expected the reload to run once nothing is pending")
	}
	testutil.AssertIDs(t, s.Risks(), "1")
	testutil.AssertPosition(t, s.Risks(), "1", 4, 4)
	if s.View().Filter.Level != string(model.LevelHigh) {
		t.Errorf("expected the view to carry the new filter, got %q", s.View().Filter.Summary())
	}
}
