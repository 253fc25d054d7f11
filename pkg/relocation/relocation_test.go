package relocation_test

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/riskboard/internal/datasource"
	"github.com/vanderheijden86/riskboard/pkg/backlog"
	"github.com/vanderheijden86/riskboard/pkg/matrix"
	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/relocation"
	"github.com/vanderheijden86/riskboard/pkg/testutil"
)

func workingSet() []model.Risk {
	return []model.Risk{
		{ID: "g1", Probability: model.IntPtr(3), Impact: model.IntPtr(4), Level: model.LevelHigh},
		{ID: "b1", PriorityOrder: model.IntPtr(2)},
		{ID: "b2", PriorityOrder: model.IntPtr(1)},
	}
}

func TestStateTransitions(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)
	if c.State() != relocation.StateIdle {
		t.Fatalf("expected idle, got %s", c.State())
	}
	if _, err := c.DropOnCell(ws, 1, 1); !errors.Is(err, relocation.ErrNotArmed) {
		t.Errorf("expected ErrNotArmed, got %v", err)
	}

	if err := c.PickUp(ws[1]); err != nil {
		t.Fatalf("PickUp: %v", err)
	}
	if c.State() != relocation.StateArmed {
		t.Fatalf("expected armed, got %s", c.State())
	}
	if err := c.PickUp(ws[0]); !errors.Is(err, relocation.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	if !c.Cancel() || c.State() != relocation.StateIdle {
		t.Errorf("expected cancel to return to idle")
	}
	testutil.AssertPosition(t, ws, "b1", 0, 0)

	_ = c.PickUp(ws[1])
	commit, err := c.DropOnCell(ws, 2, 5)
	if err != nil || commit == nil {
		t.Fatalf("DropOnCell: %v %v", commit, err)
	}
	if c.State() != relocation.StateCommitting || !c.IsPending("b1") {
		t.Errorf("expected committing, got %s", c.State())
	}
	c.Resolve(ws, relocation.Result{Commit: *commit})
	if c.State() != relocation.StateIdle {
		t.Errorf("expected idle after resolve, got %s", c.State())
	}
}

func TestDropOnCellIsOptimistic(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)
	_ = c.PickUp(ws[1])

	commit, err := c.DropOnCell(ws, 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertPosition(t, ws, "b1", 5, 2)
	if commit.RiskID != "b1" || commit.Token != 1 {
		t.Errorf("unexpected commit %+v", commit)
	}
	if !commit.Patch.SetProbability || *commit.Patch.Probability != 5 || *commit.Patch.Impact != 2 {
		t.Errorf("unexpected patch %+v", commit.Patch)
	}
	if commit.Snapshot.Probability != nil || *commit.Snapshot.PriorityOrder != 2 {
		t.Errorf("snapshot should hold the pre-move record, got %s", commit.Snapshot.PositionString())
	}

	g := matrix.Bucketize(ws, 5)
	if !g.Contains("b1") {
		t.Error("dropped risk missing from grid")
	}
	for _, r := range backlog.Order(ws, 5) {
		if r.ID == "b1" {
			t.Error("dropped risk still in backlog")
		}
	}
}

func TestDropOnInvalidCellKeepsArmed(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)
	_ = c.PickUp(ws[0])
	for _, cell := range [][2]int{{0, 1}, {6, 1}, {1, 6}} {
		if _, err := c.DropOnCell(ws, cell[0], cell[1]); !errors.Is(err, relocation.ErrInvalidTarget) {
			t.Errorf("P%d×I%d: expected ErrInvalidTarget, got %v", cell[0], cell[1], err)
		}
	}
	if c.State() != relocation.StateArmed {
		t.Error("expected risk to stay armed after an invalid drop")
	}
	testutil.AssertPosition(t, ws, "g1", 3, 4)
}

func TestDropOnSameCellIsNoop(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)
	_ = c.PickUp(ws[0])
	commit, err := c.DropOnCell(ws, 3, 4)
	if err != nil || commit != nil {
		t.Fatalf("expected no commit, got %+v %v", commit, err)
	}
	if c.State() != relocation.StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}

func TestDropOnBacklog(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)
	_ = c.PickUp(ws[0])

	commit, err := c.DropOnBacklog(ws)
	if err != nil || commit == nil {
		t.Fatalf("DropOnBacklog: %v %v", commit, err)
	}
	testutil.AssertPosition(t, ws, "g1", 0, 0)
	testutil.AssertOrder(t, ws, "g1", 3)
	testutil.AssertIDs(t, backlog.Order(ws, 5), "b2", "b1", "g1")

	// Repeating the drop changes nothing.
	_ = c.PickUp(ws[0])
	again, err := c.DropOnBacklog(ws)
	if err != nil || again != nil {
		t.Errorf("expected repeated drop to be a no-op, got %+v %v", again, err)
	}
	testutil.AssertOrder(t, ws, "g1", 3)
}

func TestDropVanishedRisk(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)
	_ = c.PickUp(model.Risk{ID: "gone"})
	if _, err := c.DropOnBacklog(ws); !errors.Is(err, relocation.ErrVanished) {
		t.Errorf("expected ErrVanished, got %v", err)
	}
	if c.State() != relocation.StateIdle {
		t.Error("expected idle after a vanished drop")
	}
}

func TestFailedPersistRestoresSnapshot(t *testing.T) {
	ws := workingSet()
	svc := datasource.NewMemoryStore(workingSet()...)
	boom := errors.New("backend down")
	svc.SetUpdateHook(func(string, model.Patch) error { return boom })

	c := relocation.New(5)
	_ = c.PickUp(ws[1])
	commit, _ := c.DropOnCell(ws, 1, 1)

	res := relocation.Persist(context.Background(), svc, *commit)
	if !errors.Is(res.Err, boom) {
		t.Fatalf("expected backend error, got %v", res.Err)
	}
	if got := c.Resolve(ws, res); got != relocation.OutcomeReverted {
		t.Fatalf("expected reverted, got %s", got)
	}
	testutil.AssertPosition(t, ws, "b1", 0, 0)
	testutil.AssertOrder(t, ws, "b1", 2)
}

func TestSuccessfulPersistKeepsMove(t *testing.T) {
	ws := workingSet()
	svc := datasource.NewMemoryStore(workingSet()...)
	c := relocation.New(5)
	_ = c.PickUp(ws[1])
	commit, _ := c.DropOnCell(ws, 4, 4)

	res := relocation.Persist(context.Background(), svc, *commit)
	if got := c.Resolve(ws, res); got != relocation.OutcomeCommitted {
		t.Fatalf("expected committed, got %s (%v)", got, res.Err)
	}
	testutil.AssertPosition(t, ws, "b1", 4, 4)
	stored, _ := svc.Get(context.Background(), "b1")
	if stored.PositionString() != "P4×I4" {
		t.Errorf("expected persisted P4×I4, got %s", stored.PositionString())
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)

	_ = c.PickUp(ws[1])
	first, _ := c.DropOnCell(ws, 1, 1)
	_ = c.PickUp(ws[1])
	second, _ := c.DropOnCell(ws, 2, 2)
	if second.Token <= first.Token {
		t.Fatalf("tokens must grow: %d then %d", first.Token, second.Token)
	}

	// The second call resolves first and succeeds; the first then fails.
	if got := c.Resolve(ws, relocation.Result{Commit: *second}); got != relocation.OutcomeCommitted {
		t.Fatalf("expected committed, got %s", got)
	}
	if got := c.Resolve(ws, relocation.Result{Commit: *first, Err: errors.New("late failure")}); got != relocation.OutcomeStale {
		t.Fatalf("expected stale, got %s", got)
	}
	testutil.AssertPosition(t, ws, "b1", 2, 2)
	if c.Pending() != 0 {
		t.Errorf("expected nothing pending, got %d", c.Pending())
	}
}

func TestTokensArePerRecord(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)
	_ = c.PickUp(ws[1])
	a, _ := c.DropOnCell(ws, 1, 1)
	_ = c.PickUp(ws[2])
	b, _ := c.DropOnCell(ws, 1, 2)

	if got := c.Resolve(ws, relocation.Result{Commit: *a, Err: errors.New("fail")}); got != relocation.OutcomeReverted {
		t.Errorf("a move of another record must not make this one stale, got %s", got)
	}
	if got := c.Resolve(ws, relocation.Result{Commit: *b}); got != relocation.OutcomeCommitted {
		t.Errorf("expected committed, got %s", got)
	}
}

func TestRepeatedDropIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ws := testutil.RiskSet(5, 15).Draw(t, "risks")
		if len(ws) == 0 {
			return
		}
		idx := rapid.IntRange(0, len(ws)-1).Draw(t, "idx")
		toBacklog := rapid.Bool().Draw(t, "to_backlog")
		p := rapid.IntRange(1, 5).Draw(t, "p")
		i := rapid.IntRange(1, 5).Draw(t, "i")

		c := relocation.New(5)
		drop := func() *relocation.Commit {
			if err := c.PickUp(ws[idx]); err != nil {
				t.Fatalf("PickUp: %v", err)
			}
			var (
				commit *relocation.Commit
				err    error
			)
			if toBacklog {
				commit, err = c.DropOnBacklog(ws)
			} else {
				commit, err = c.DropOnCell(ws, p, i)
			}
			if err != nil {
				t.Fatalf("drop: %v", err)
			}
			return commit
		}

		drop()
		after := model.CloneAll(ws)
		if second := drop(); second != nil {
			t.Fatalf("second identical drop produced a commit: %+v", second)
		}
		for k := range ws {
			if !model.SamePosition(ws[k], after[k]) {
				t.Fatalf("second drop changed %s: %s vs %s", ws[k].ID, ws[k].PositionString(), after[k].PositionString())
			}
		}

		if toBacklog {
			if ws[idx].OnGrid(5) {
				t.Fatalf("%s still on grid", ws[idx].ID)
			}
		} else if pp, ii, ok := ws[idx].Position(5); !ok || pp != p || ii != i {
			t.Fatalf("%s at %s, want P%d×I%d", ws[idx].ID, ws[idx].PositionString(), p, i)
		}
	})
}

func assertUniqueOrders(t *testing.T, ws []model.Risk, n int) {
	t.Helper()
	seen := make(map[int]string)
	for _, r := range backlog.Order(ws, n) {
		if r.PriorityOrder == nil {
			continue
		}
		if other, dup := seen[*r.PriorityOrder]; dup {
			t.Fatalf("%s and %s share priority order %d", other, r.ID, *r.PriorityOrder)
		}
		seen[*r.PriorityOrder] = r.ID
	}
}

func TestReorderRefusedWhileBacklogMovePending(t *testing.T) {
	ws := []model.Risk{
		{ID: "A", PriorityOrder: model.IntPtr(1)},
		{ID: "B", PriorityOrder: model.IntPtr(2)},
		{ID: "C", PriorityOrder: model.IntPtr(3)},
	}
	c := relocation.New(5)
	_ = c.PickUp(ws[0])
	move, err := c.DropOnCell(ws, 2, 2)
	if err != nil || move == nil {
		t.Fatalf("DropOnCell: %v %v", move, err)
	}
	if !c.BacklogBusy() {
		t.Fatal("expected the backlog to be busy while A's move is pending")
	}

	if _, err := c.Reorder(ws, backlog.Order(ws, 5), 0, 1); !errors.Is(err, relocation.ErrBacklogBusy) {
		t.Fatalf("expected ErrBacklogBusy, got %v", err)
	}
	testutil.AssertIDs(t, backlog.Order(ws, 5), "B", "C")

	if got := c.Resolve(ws, relocation.Result{Commit: *move, Err: errors.New("backend down")}); got != relocation.OutcomeReverted {
		t.Fatalf("expected reverted, got %s", got)
	}
	testutil.AssertOrder(t, ws, "A", 1)
	testutil.AssertOrder(t, ws, "B", 2)
	testutil.AssertOrder(t, ws, "C", 3)
	assertUniqueOrders(t, ws, 5)

	if c.BacklogBusy() {
		t.Fatal("expected the backlog to be free once the move resolved")
	}
	if commit, err := c.Reorder(ws, backlog.Order(ws, 5), 0, 1); err != nil || commit == nil {
		t.Errorf("expected reorder to go through, got %+v %v", commit, err)
	}
}

func TestBacklogDropRefusedWhileReorderPending(t *testing.T) {
	ws := workingSet()
	c := relocation.New(5)
	reorder, err := c.Reorder(ws, backlog.Order(ws, 5), 0, 1)
	if err != nil || reorder == nil {
		t.Fatalf("Reorder: %v %v", reorder, err)
	}

	_ = c.PickUp(ws[0])
	if _, err := c.DropOnBacklog(ws); !errors.Is(err, relocation.ErrBacklogBusy) {
		t.Fatalf("expected ErrBacklogBusy, got %v", err)
	}
	if _, armed := c.Armed(); !armed {
		t.Fatal("a refused drop keeps the risk picked up")
	}
	// Moving between cells leaves the backlog alone.
	if commit, err := c.DropOnCell(ws, 1, 1); err != nil || commit == nil {
		t.Fatalf("DropOnCell: %v %v", commit, err)
	}

	_ = c.PickUp(ws[1])
	if _, err := c.DropOnCell(ws, 5, 5); !errors.Is(err, relocation.ErrBacklogBusy) {
		t.Fatalf("expected ErrBacklogBusy for a backlog risk, got %v", err)
	}
	c.Cancel()

	c.ResolveReorder(ws, relocation.ReorderResult{Commit: reorder})
	_ = c.PickUp(ws[1])
	if commit, err := c.DropOnCell(ws, 5, 5); err != nil || commit == nil {
		t.Errorf("expected the drop once the reorder resolved, got %+v %v", commit, err)
	}
}

func TestDropOnBacklogSkipsOrdersHeldByPendingMoves(t *testing.T) {
	ws := []model.Risk{
		{ID: "g", Probability: model.IntPtr(1), Impact: model.IntPtr(1)},
		{ID: "A", PriorityOrder: model.IntPtr(1)},
		{ID: "C", PriorityOrder: model.IntPtr(3)},
	}
	c := relocation.New(5)
	_ = c.PickUp(ws[2])
	out, _ := c.DropOnCell(ws, 4, 4)

	_ = c.PickUp(ws[0])
	in, err := c.DropOnBacklog(ws)
	if err != nil || in == nil {
		t.Fatalf("DropOnBacklog: %v %v", in, err)
	}
	testutil.AssertOrder(t, ws, "g", 4)

	c.Resolve(ws, relocation.Result{Commit: *out, Err: errors.New("backend down")})
	testutil.AssertOrder(t, ws, "C", 3)
	assertUniqueOrders(t, ws, 5)
	c.Resolve(ws, relocation.Result{Commit: *in})
	if c.BacklogBusy() || c.Pending() != 0 {
		t.Errorf("expected nothing pending, got %d", c.Pending())
	}
}
