// Package relocation moves risks between grid cells and the backlog.
//
// A move is applied to the working set immediately and persisted in the
// background. Every move carries a per-record token; when the persistence
// result comes back, Resolve discards it if a newer move of the same record
// was issued since, and otherwise either keeps the move or restores the
// record to the snapshot taken just before it.
//
// Moves into or out of the backlog and backlog reorders exclude each other
// while their results are outstanding, so a restored record never takes a
// priority order another backlog record holds.
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

var (
	// ErrBusy is returned by PickUp while another risk is armed.
	ErrBusy = errors.New("another risk is already picked up")
	// ErrNotArmed is returned by a drop without a picked up risk.
	ErrNotArmed = errors.New("no risk is picked up")
	// ErrInvalidTarget is returned for a drop outside the grid.
	ErrInvalidTarget = errors.New("drop target is outside the grid")
	// ErrVanished is returned when the armed risk left the working set.
	ErrVanished = errors.New("risk is no longer in the working set")
	// ErrBacklogBusy is returned for a backlog reorder while a move into or
	// out of the backlog awaits its result, and for such a move while a
	// reorder does.
	ErrBacklogBusy = errors.New("backlog change awaiting its result")
)

// State of the controller.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Token orders the moves of one record. Tokens only grow.
type Token uint64

// Outcome of resolving a persistence result.
type Outcome int

const (
	// OutcomeCommitted means the move was persisted and stays.
	OutcomeCommitted Outcome = iota
	// OutcomeReverted means persistence failed and the record was restored.
	OutcomeReverted
	// OutcomeStale means a newer move superseded this result; it was ignored.
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReverted:
		return "reverted"
	case OutcomeStale:
		return "stale"
	default:
		return "committed"
	}
}

// Commit describes the single persistence call of a move.
type Commit struct {
	Token    Token
	RiskID   string
	Patch    model.Patch
	Snapshot model.Risk // record before the move
	Target   string     // human-readable destination
}

// Result is the response to a Commit.
type Result struct {
	Commit Commit
	Err    error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller is the relocation state machine for one dashboard session. It
// is not safe for concurrent use. Persist and PersistReorder are the only
// calls meant to run off the UI goroutine; PersistReorder reads nothing but
// the logger, which is fixed by New.
type Controller struct {
	gridSize     int
	armed        *model.Risk
	tokens       map[string]Token
	inFlight     map[string]int
	backlogMoves int
	// held maps a record moved out of the backlog to the priority order it
	// gets back if the move fails.
	held       map[string]int
	reorderSeq Token
	reorders   int
	logger     *slog.Logger
}

// New returns an idle controller for a grid of size n.
func New(n int, opts ...Option) *Controller {
	c := &Controller{
		gridSize: n,
		tokens:   make(map[string]Token),
		inFlight: make(map[string]int),
		held:     make(map[string]int),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GridSize returns N.
func (c *Controller) GridSize() int {
	return c.gridSize
}

// State reports Armed while a risk is picked up, Committing while moves are
// awaiting their result, and Idle otherwise.
func (c *Controller) State() State {
	switch {
	case c.armed != nil:
		return StateArmed
	case c.Pending() > 0:
		return StateCommitting
	}
	return StateIdle
}

// Pending returns the number of moves and reorders awaiting a result.
func (c *Controller) Pending() int {
	n := c.reorders
	for _, v := range c.inFlight {
		n += v
	}
	return n
}

// IsPending reports whether a move of id awaits its result.
func (c *Controller) IsPending(id string) bool {
	return c.inFlight[id] > 0
}

// BacklogBusy reports whether a move into or out of the backlog, or a
// backlog reorder, awaits its result.
func (c *Controller) BacklogBusy() bool {
	return c.backlogMoves > 0 || c.reorders > 0
}

// Armed returns the picked up risk.
func (c *Controller) Armed() (model.Risk, bool) {
	if c.armed == nil {
		return model.Risk{}, false
	}
	return *c.armed, true
}

// PickUp arms r for a move.
func (c *Controller) PickUp(r model.Risk) error {
	if c.armed != nil {
		return fmt.Errorf("%s is armed: %w", c.armed.ID, ErrBusy)
	}
	armed := r.Clone()
	c.armed = &armed
	c.logger.Debug("risk picked up", "id", r.ID, "from", r.PositionString())
	return nil
}

// Cancel disarms without touching the working set. It reports whether a risk
// was armed.
func (c *Controller) Cancel() bool {
	if c.armed == nil {
		return false
	}
	c.logger.Debug("move cancelled", "id", c.armed.ID)
	c.armed = nil
	return true
}

// DropOnCell moves the armed risk to cell (p, i) in ws. An out-of-range cell
// returns ErrInvalidTarget and keeps the risk armed. Dropping a risk on the
// cell it already occupies disarms and returns a nil Commit.
func (c *Controller) DropOnCell(ws []model.Risk, p, i int) (*Commit, error) {
	if c.armed == nil {
		return nil, ErrNotArmed
	}
	if p < 1 || i < 1 || p > c.gridSize || i > c.gridSize {
		return nil, fmt.Errorf("P%d×I%d: %w", p, i, ErrInvalidTarget)
	}
	if c.reorders > 0 && c.armedInBacklog(ws) {
		return nil, fmt.Errorf("%s: %w", c.armed.ID, ErrBacklogBusy)
	}
	return c.drop(ws, func(r *model.Risk) bool {
		if cp, ci, ok := r.Position(c.gridSize); ok && cp == p && ci == i {
			return false
		}
		r.Probability = model.IntPtr(p)
		r.Impact = model.IntPtr(i)
		return true
	})
}

// DropOnBacklog moves the armed risk to the end of the backlog in ws. A risk
// already in the backlog disarms and returns a nil Commit. The new order is
// past every order in ws and every order held by a pending move out of the
// backlog.
func (c *Controller) DropOnBacklog(ws []model.Risk) (*Commit, error) {
	if c.armed == nil {
		return nil, ErrNotArmed
	}
	if c.reorders > 0 && !c.armedInBacklog(ws) {
		return nil, fmt.Errorf("%s: %w", c.armed.ID, ErrBacklogBusy)
	}
	next := backlog.NextOrder(ws, c.gridSize)
	for _, o := range c.held {
		if o >= next {
			next = o + 1
		}
	}
	return c.drop(ws, func(r *model.Risk) bool {
		if !r.OnGrid(c.gridSize) {
			return false
		}
		r.Probability = nil
		r.Impact = nil
		r.PriorityOrder = model.IntPtr(next)
		return true
	})
}

// armedInBacklog reports whether the armed risk sits in the backlog of ws. A
// vanished risk is left for drop to report.
func (c *Controller) armedInBacklog(ws []model.Risk) bool {
	idx := model.FindByID(ws, c.armed.ID)
	return idx >= 0 && !ws[idx].OnGrid(c.gridSize)
}

func (c *Controller) touchesBacklog(commit Commit) bool {
	return !commit.Snapshot.OnGrid(c.gridSize) || commit.Patch.Probability == nil || commit.Patch.Impact == nil
}

func (c *Controller) drop(ws []model.Risk, move func(*model.Risk) bool) (*Commit, error) {
	id := c.armed.ID
	c.armed = nil

	idx := model.FindByID(ws, id)
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrVanished)
	}

	snapshot := ws[idx].Clone()
	if !move(&ws[idx]) {
		c.logger.Debug("drop without change", "id", id)
		return nil, nil
	}

	c.tokens[id]++
	c.inFlight[id]++
	commit := &Commit{
		Token:    c.tokens[id],
		RiskID:   id,
		Patch:    model.PositionPatch(ws[idx]),
		Snapshot: snapshot,
		Target:   ws[idx].PositionString(),
	}
	if c.touchesBacklog(*commit) {
		c.backlogMoves++
	}
	if _, ok := c.held[id]; !ok && !snapshot.OnGrid(c.gridSize) && snapshot.PriorityOrder != nil {
		c.held[id] = *snapshot.PriorityOrder
	}
	c.logger.Debug("risk moved", "id", id, "from", snapshot.PositionString(), "to", commit.Target, "token", commit.Token)
	return commit, nil
}

// Persist issues the single mutation call for commit.
func Persist(ctx context.Context, m datasource.Mutator, commit Commit) Result {
	defer metrics.Timer(metrics.Persist)()
	err := m.UpdateRisk(ctx, commit.RiskID, commit.Patch)
	if err != nil {
		err = fmt.Errorf("moving %s to %s: %w", commit.RiskID, commit.Target, err)
	}
	return Result{Commit: commit, Err: err}
}

// Resolve applies a persistence result to ws.
func (c *Controller) Resolve(ws []model.Risk, res Result) Outcome {
	id := res.Commit.RiskID
	if c.inFlight[id] > 0 {
		c.inFlight[id]--
		if c.touchesBacklog(res.Commit) && c.backlogMoves > 0 {
			c.backlogMoves--
		}
		if c.inFlight[id] == 0 {
			delete(c.inFlight, id)
			delete(c.held, id)
		}
	}

	outcome := OutcomeCommitted
	switch {
	case res.Commit.Token != c.tokens[id]:
		outcome = OutcomeStale
	case res.Err != nil:
		outcome = OutcomeReverted
		if idx := model.FindByID(ws, id); idx >= 0 {
			ws[idx] = res.Commit.Snapshot.Clone()
		}
		c.logger.Warn("move failed, restored previous position",
			"id", id, "position", res.Commit.Snapshot.PositionString(), "err", res.Err)
	}
	metrics.RelocationsTotal.WithLabelValues(outcome.String()).Inc()
	return outcome
}
