package relocation_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/vanderheijden86/riskboard/internal/datasource"
	"github.com/vanderheijden86/riskboard/pkg/backlog"
	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/relocation"
	"github.com/vanderheijden86/riskboard/pkg/testutil"
)

// mutatorOnly hides the batch facility of the wrapped store.
type mutatorOnly struct {
	s *datasource.MemoryStore
}

func (m mutatorOnly) UpdateRisk(ctx context.Context, id string, p model.Patch) error {
	return m.s.UpdateRisk(ctx, id, p)
}

func threeItemBacklog() []model.Risk {
	return []model.Risk{
		{ID: "A", PriorityOrder: model.IntPtr(1)},
		{ID: "B", PriorityOrder: model.IntPtr(2)},
		{ID: "C", PriorityOrder: model.IntPtr(3)},
	}
}

func reorderAToEnd(t *testing.T, c *relocation.Controller, ws []model.Risk) *relocation.ReorderCommit {
	t.Helper()
	commit, err := c.Reorder(ws, backlog.Order(ws, 5), 0, 2)
	if err != nil || commit == nil {
		t.Fatalf("Reorder: %v %v", commit, err)
	}
	return commit
}

func TestReorderAppliesOptimistically(t *testing.T) {
	ws := threeItemBacklog()
	c := relocation.New(5)
	commit := reorderAToEnd(t, c, ws)

	testutil.AssertIDs(t, backlog.Order(ws, 5), "B", "C", "A")
	if commit.MovedID != "A" || len(commit.Updates) != 3 {
		t.Errorf("unexpected commit %+v", commit)
	}
	if *commit.Prior["A"] != 1 || *commit.Prior["C"] != 3 {
		t.Errorf("unexpected prior orders %v", commit.Prior)
	}

	if none, err := c.Reorder(ws, backlog.Order(ws, 5), 1, 1); none != nil || err != nil {
		t.Errorf("expected same-index reorder to be a no-op, got %+v %v", none, err)
	}
	if _, err := c.Reorder(ws, backlog.Order(ws, 5), 0, 9); !errors.Is(err, backlog.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestPersistReorderBatch(t *testing.T) {
	ws := threeItemBacklog()
	svc := datasource.NewMemoryStore(threeItemBacklog()...)
	c := relocation.New(5)
	commit := reorderAToEnd(t, c, ws)

	res := c.PersistReorder(context.Background(), svc, commit)
	if res.Err != nil || res.Path != relocation.PathBatch {
		t.Fatalf("expected batch success, got %+v", res)
	}
	if svc.UpdateCount() != 0 {
		t.Errorf("batch path must not issue single updates, got %d", svc.UpdateCount())
	}
	if got := c.ResolveReorder(ws, res); got != relocation.OutcomeCommitted {
		t.Errorf("expected committed, got %s", got)
	}
	testutil.AssertIDs(t, backlog.Order(svc.Snapshot(), 5), "B", "C", "A")
}

func TestPersistReorderFallsBackWhenUnsupported(t *testing.T) {
	for name, svcFor := range map[string]func(*datasource.MemoryStore) datasource.Mutator{
		"unsupported": func(s *datasource.MemoryStore) datasource.Mutator {
			s.SetBatchSupported(false)
			return s
		},
		"batch error": func(s *datasource.MemoryStore) datasource.Mutator {
			s.SetBatchError(errors.New("deadlock"))
			return s
		},
		"no interface": func(s *datasource.MemoryStore) datasource.Mutator {
			return mutatorOnly{s}
		},
	} {
		t.Run(name, func(t *testing.T) {
			ws := threeItemBacklog()
			store := datasource.NewMemoryStore(threeItemBacklog()...)
			c := relocation.New(5)
			commit := reorderAToEnd(t, c, ws)

			res := c.PersistReorder(context.Background(), svcFor(store), commit)
			if res.Err != nil || res.Path != relocation.PathSequential {
				t.Fatalf("expected sequential success, got %+v", res)
			}
			if store.UpdateCount() != 3 {
				t.Errorf("expected 3 single updates, got %d", store.UpdateCount())
			}
			testutil.AssertIDs(t, backlog.Order(store.Snapshot(), 5), "B", "C", "A")
		})
	}
}

func TestSequentialFailureCompensates(t *testing.T) {
	ws := threeItemBacklog()
	store := datasource.NewMemoryStore(threeItemBacklog()...)
	store.SetBatchSupported(false)
	boom := errors.New("row locked")
	store.SetUpdateHook(func(id string, p model.Patch) error {
		// Fail the third row's write; compensation writes restore A and B.
		if id == "A" && p.PriorityOrder != nil && *p.PriorityOrder == 3 {
			return boom
		}
		return nil
	})

	c := relocation.New(5)
	commit := reorderAToEnd(t, c, ws)
	res := c.PersistReorder(context.Background(), store, commit)

	var rerr *relocation.ReorderError
	if !errors.As(res.Err, &rerr) || rerr.Phase != "write" || rerr.ID != "A" || !errors.Is(res.Err, boom) {
		t.Fatalf("expected write error at A, got %v", res.Err)
	}
	if !res.Compensated || res.CompensationErr != nil {
		t.Fatalf("expected clean compensation, got %+v", res)
	}

	stored := store.Snapshot()
	testutil.AssertOrder(t, stored, "A", 1)
	testutil.AssertOrder(t, stored, "B", 2)
	testutil.AssertOrder(t, stored, "C", 3)

	if got := c.ResolveReorder(ws, res); got != relocation.OutcomeReverted {
		t.Fatalf("expected reverted, got %s", got)
	}
	testutil.AssertIDs(t, backlog.Order(ws, 5), "A", "B", "C")
}

func TestCompensationFailureIsReported(t *testing.T) {
	ws := threeItemBacklog()
	store := datasource.NewMemoryStore(threeItemBacklog()...)
	store.SetBatchSupported(false)
	writes := 0
	store.SetUpdateHook(func(string, model.Patch) error {
		writes++
		if writes >= 2 {
			return errors.New("connection lost")
		}
		return nil
	})

	c := relocation.New(5)
	res := c.PersistReorder(context.Background(), store, reorderAToEnd(t, c, ws))
	if res.Err == nil || res.CompensationErr == nil || res.Compensated {
		t.Fatalf("expected failed compensation, got %+v", res)
	}
}

func TestStaleReorderIsDiscarded(t *testing.T) {
	ws := threeItemBacklog()
	c := relocation.New(5)
	first := reorderAToEnd(t, c, ws) // B C A
	second, err := c.Reorder(ws, backlog.Order(ws, 5), 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertIDs(t, backlog.Order(ws, 5), "C", "B", "A")

	if got := c.ResolveReorder(ws, relocation.ReorderResult{Commit: first, Err: errors.New("late")}); got != relocation.OutcomeStale {
		t.Fatalf("expected stale, got %s", got)
	}
	if got := c.ResolveReorder(ws, relocation.ReorderResult{Commit: second}); got != relocation.OutcomeCommitted {
		t.Fatalf("expected committed, got %s", got)
	}
	testutil.AssertIDs(t, backlog.Order(ws, 5), "C", "B", "A")
}

func TestBatchFailureLogsThroughControllerLogger(t *testing.T) {
	var buf bytes.Buffer
	c := relocation.New(5, relocation.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	ws := threeItemBacklog()
	store := datasource.NewMemoryStore(threeItemBacklog()...)
	store.SetBatchError(errors.New("deadlock"))

	res := c.PersistReorder(context.Background(), store, reorderAToEnd(t, c, ws))
	if res.Err != nil || res.Path != relocation.PathSequential {
		t.Fatalf("expected sequential success, got %+v", res)
	}
	if !strings.Contains(buf.String(), "bulk reorder failed") || !strings.Contains(buf.String(), "deadlock") {
		t.Errorf("expected the batch failure in the controller log, got %q", buf.String())
	}
}
