package relocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vanderheijden86/riskboard/internal/datasource"
	"github.com/vanderheijden86/riskboard/pkg/backlog"
	"github.com/vanderheijden86/riskboard/pkg/metrics"
	"github.com/vanderheijden86/riskboard/pkg/model"
)

// Path names how a reorder was persisted.
type Path string

const (
	PathBatch      Path = "batch"
	PathSequential Path = "sequential"
)

// ReorderCommit describes a backlog reorder awaiting persistence.
type ReorderCommit struct {
	Token   Token
	MovedID string
	Updates []model.OrderUpdate
	// Prior holds each row's priority order before the reorder.
	Prior map[string]*int
}

// ReorderError reports the row and phase at which a sequential reorder
// failed.
type ReorderError struct {
	Phase string // "stage" or "write"
	ID    string
	Err   error
}

func (e *ReorderError) Error() string {
	return fmt.Sprintf("reorder %s failed at %s: %v", e.Phase, e.ID, e.Err)
}

func (e *ReorderError) Unwrap() error {
	return e.Err
}

// ReorderResult is the response to a ReorderCommit.
type ReorderResult struct {
	Commit *ReorderCommit
	Path   Path
	Err    error
	// Compensated is true when rows written before a failure were restored.
	Compensated bool
	// CompensationErr joins the errors of restoring writes that failed.
	CompensationErr error
}

// Reorder moves the backlog item at from to position to, renumbers the whole
// backlog, and applies the new orders to ws. list is the backlog as
// displayed (see backlog.Order). Moving an item onto itself returns a nil
// commit. While a move into or out of the backlog awaits its result the
// reorder is refused with ErrBacklogBusy.
func (c *Controller) Reorder(ws, list []model.Risk, from, to int) (*ReorderCommit, error) {
	moved, err := backlog.MoveItem(list, from, to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, nil
	}
	if c.backlogMoves > 0 {
		return nil, ErrBacklogBusy
	}

	prior := make(map[string]*int, len(list))
	for _, r := range list {
		idx := model.FindByID(ws, r.ID)
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w", r.ID, ErrVanished)
		}
		prior[r.ID] = cloneInt(ws[idx].PriorityOrder)
	}
	for _, r := range moved {
		ws[model.FindByID(ws, r.ID)].PriorityOrder = cloneInt(r.PriorityOrder)
	}

	c.reorderSeq++
	c.reorders++
	commit := &ReorderCommit{
		Token:   c.reorderSeq,
		MovedID: list[from].ID,
		Updates: backlog.Updates(moved),
		Prior:   prior,
	}
	c.logger.Debug("backlog reordered", "id", commit.MovedID, "from", from, "to", to, "rows", len(commit.Updates))
	return commit, nil
}

// PersistReorder writes a reorder. It tries an atomic bulk write first. When
// the backend has none, or it fails, it falls back to staging every row and
// writing them one at a time; on a failed write the rows already written are
// restored to their prior order.
func (c *Controller) PersistReorder(ctx context.Context, svc datasource.Mutator, commit *ReorderCommit) ReorderResult {
	defer metrics.Timer(metrics.BulkReorder)()

	res := reorder(ctx, svc, commit, c.logger)
	result := "ok"
	if res.Err != nil {
		result = "failed"
	}
	metrics.ReordersTotal.WithLabelValues(string(res.Path), result).Inc()
	return res
}

func reorder(ctx context.Context, svc datasource.Mutator, commit *ReorderCommit, logger *slog.Logger) ReorderResult {
	if br, ok := svc.(datasource.BatchReorderer); ok {
		err := br.BulkReorder(ctx, commit.Updates)
		if err == nil {
			return ReorderResult{Commit: commit, Path: PathBatch}
		}
		if !errors.Is(err, datasource.ErrBatchUnsupported) {
			// Batch writes are atomic, so nothing was written.
			logger.Warn("bulk reorder failed, writing rows one by one", "err", err)
		}
	}

	res := ReorderResult{Commit: commit, Path: PathSequential}

	// Stage: every row must have a known prior order before anything is
	// written, otherwise it could not be restored.
	seen := make(map[string]bool, len(commit.Updates))
	for _, u := range commit.Updates {
		if _, ok := commit.Prior[u.ID]; !ok || seen[u.ID] {
			res.Err = &ReorderError{Phase: "stage", ID: u.ID, Err: ErrInvalidTarget}
			return res
		}
		seen[u.ID] = true
	}

	// Write.
	written := make([]string, 0, len(commit.Updates))
	for _, u := range commit.Updates {
		err := svc.UpdateRisk(ctx, u.ID, model.OrderPatch(model.IntPtr(u.PriorityOrder)))
		if err == nil {
			written = append(written, u.ID)
			continue
		}
		res.Err = &ReorderError{Phase: "write", ID: u.ID, Err: err}

		// Compensate in reverse write order.
		var errs []error
		for k := len(written) - 1; k >= 0; k-- {
			id := written[k]
			if cerr := svc.UpdateRisk(ctx, id, model.OrderPatch(commit.Prior[id])); cerr != nil {
				errs = append(errs, fmt.Errorf("restoring %s: %w", id, cerr))
			}
		}
		res.CompensationErr = errors.Join(errs...)
		res.Compensated = len(written) > 0 && res.CompensationErr == nil
		return res
	}
	return res
}

// ResolveReorder applies a reorder result to ws. On failure every row still
// holding its optimistic order gets its prior order back; rows changed by a
// later move are left alone.
func (c *Controller) ResolveReorder(ws []model.Risk, res ReorderResult) Outcome {
	if c.reorders > 0 {
		c.reorders--
	}

	outcome := OutcomeCommitted
	switch {
	case res.Commit == nil || res.Commit.Token != c.reorderSeq:
		outcome = OutcomeStale
	case res.Err != nil:
		outcome = OutcomeReverted
		for _, u := range res.Commit.Updates {
			idx := model.FindByID(ws, u.ID)
			if idx < 0 {
				continue
			}
			cur := ws[idx].PriorityOrder
			if ws[idx].OnGrid(c.gridSize) || cur == nil || *cur != u.PriorityOrder {
				continue
			}
			ws[idx].PriorityOrder = cloneInt(res.Commit.Prior[u.ID])
		}
		c.logger.Warn("backlog reorder failed, restored previous order",
			"path", res.Path, "compensated", res.Compensated, "err", res.Err)
	}
	return outcome
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
