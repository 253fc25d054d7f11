// Package dashboard wires the engine together for one dashboard session: it
// owns the working set, derives the grid, backlog and statistics from it,
// and applies persistence results coming back from the backend.
package dashboard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vanderheijden86/riskboard/internal/datasource"
	"github.com/vanderheijden86/riskboard/pkg/backlog"
	"github.com/vanderheijden86/riskboard/pkg/debug"
	"github.com/vanderheijden86/riskboard/pkg/filters"
	"github.com/vanderheijden86/riskboard/pkg/localstore"
	"github.com/vanderheijden86/riskboard/pkg/matrix"
	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/relocation"
	"github.com/vanderheijden86/riskboard/pkg/selection"
	"github.com/vanderheijden86/riskboard/pkg/stats"
)

// View is everything derived from the working set.
type View struct {
	GridSize int
	Grid     matrix.Grid
	Backlog  []model.Risk
	Stats    stats.Snapshot
	Filter   model.Filter
}

// Options configure a Session.
type Options struct {
	GridSize int
	Logger   *slog.Logger
	// Builtins replaces the shipped filter presets when non-nil.
	Builtins []model.SavedFilter
}

// Session owns the working set of one dashboard. Its methods must be called
// from a single goroutine; the persistence calls handed out by the
// controller run elsewhere and come back through Apply and ApplyReorder.
type Session struct {
	svc        datasource.Service
	loader     *Loader
	filters    *filters.Manager
	controller *relocation.Controller
	selection  selection.Panel
	logger     *slog.Logger

	gridSize   int
	risks      []model.Risk
	filter     model.Filter // filter the working set was loaded with
	view       View
	loaded     bool
	deferred   bool
	banner     Banner
	needsCheck bool
	divergence *datasource.WorkingSetDiff
}

// NewSession builds a session over svc, restoring filter state from store.
// The working set is empty until Reload.
func NewSession(svc datasource.Service, store localstore.Store, opts Options) (*Session, error) {
	if opts.GridSize <= 0 {
		opts.GridSize = model.DefaultGridSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		svc:      svc,
		loader:   NewLoader(svc),
		logger:   opts.Logger,
		gridSize: opts.GridSize,
	}
	s.controller = relocation.New(opts.GridSize, relocation.WithLogger(opts.Logger))

	fopts := []filters.Option{filters.WithReloader(s.reloadWith), filters.WithLogger(opts.Logger)}
	if opts.Builtins != nil {
		fopts = append(fopts, filters.WithBuiltins(opts.Builtins))
	}
	fm, err := filters.New(store, fopts...)
	if err != nil {
		return nil, err
	}
	s.filters = fm
	s.filter = fm.Applied()
	s.derive()
	return s, nil
}

// Service returns the backend.
func (s *Session) Service() datasource.Service { return s.svc }

// Filters returns the filter manager.
func (s *Session) Filters() *filters.Manager { return s.filters }

// Controller returns the relocation controller.
func (s *Session) Controller() *relocation.Controller { return s.controller }

// Selection returns the selection panel.
func (s *Session) Selection() *selection.Panel { return &s.selection }

// GridSize returns N.
func (s *Session) GridSize() int { return s.gridSize }

// Risks returns the working set. Callers must not modify it.
func (s *Session) Risks() []model.Risk { return s.risks }

// Loaded reports whether a load has succeeded at least once.
func (s *Session) Loaded() bool { return s.loaded }

// View returns the derived view of the working set.
func (s *Session) View() View { return s.view }

// Banner returns the current message.
func (s *Session) Banner() Banner { return s.banner }

// LastError returns the error of the current banner, if any.
func (s *Session) LastError() error {
	if !s.banner.IsError() {
		return nil
	}
	return s.banner.Err
}

// SetBanner replaces the current message.
func (s *Session) SetBanner(b Banner) { s.banner = b }

// ClearBanner drops the current message.
func (s *Session) ClearBanner() { s.banner = Banner{} }

// Divergence returns the difference between the local working set and the
// backend found by the last reload after a failed persistence, or nil.
func (s *Session) Divergence() *datasource.WorkingSetDiff { return s.divergence }

// Selected returns the selected risk, or nil.
func (s *Session) Selected() *model.Risk {
	return s.selection.Current(s.risks)
}

// ReloadDeferred reports whether a reload was requested while moves were
// pending and has not run yet.
func (s *Session) ReloadDeferred() bool { return s.deferred }

// Reload fetches the working set for the current filter. While moves or
// reorders await their result the fetch is deferred (see ReloadDeferred):
// their results must resolve against the records they were issued for.
func (s *Session) Reload(ctx context.Context) error {
	defer debug.LogEnterExit("Session.Reload")()
	return s.filters.Apply(ctx)
}

// LoadPreset restores a preset and reloads. A missing preset sets a preset
// banner and leaves the filter as it was.
func (s *Session) LoadPreset(ctx context.Context, name string) error {
	err := s.filters.LoadByName(ctx, name)
	if err != nil && errors.Is(err, filters.ErrPresetNotFound) {
		s.banner = presetBanner(err)
	}
	return err
}

// reloadWith is the filter manager's reload callback. A failed load keeps the
// previous working set on screen.
func (s *Session) reloadWith(ctx context.Context, f model.Filter) error {
	if n := s.controller.Pending(); n > 0 {
		s.deferred = true
		s.logger.Debug("reload deferred", "pending", n, "filter", f.Summary())
		return nil
	}
	s.deferred = false

	risks, err := s.loader.Load(ctx, f)
	if err != nil {
		s.banner = loadBanner(err)
		s.logger.Error("working set load failed", "filter", f.Summary(), "err", err)
		return err
	}

	if s.needsCheck && s.loaded && f == s.filter {
		d := datasource.Diff(s.risks, risks)
		if d.HasInconsistencies() {
			s.divergence = &d
			s.logger.Warn("local view diverged from backend", "summary", d.Summary())
		} else {
			s.divergence = nil
		}
	} else {
		s.divergence = nil
	}
	debug.LogIf(s.needsCheck && s.divergence == nil, "post-failure check found no divergence (%d risks)", len(risks))
	s.needsCheck = false

	s.risks = risks
	s.filter = f
	s.loaded = true
	if s.banner.Kind == BannerLoad || s.banner.Kind == BannerReorder || s.banner.Kind == BannerRelocation {
		s.banner = Banner{}
	}
	if s.selection.Reconcile(s.risks) {
		s.logger.Debug("selection cleared, risk left the working set")
	}
	if armed, ok := s.controller.Armed(); ok && model.FindByID(s.risks, armed.ID) < 0 {
		s.controller.Cancel()
	}
	s.derive()
	return nil
}

func (s *Session) derive() {
	s.view = BuildView(s.risks, s.gridSize, s.filter)
}

// BuildView derives the grid, backlog and stats for a working set.
func BuildView(risks []model.Risk, n int, f model.Filter) View {
	g := matrix.Bucketize(risks, n)
	return View{
		GridSize: n,
		Grid:     g,
		Backlog:  backlog.Order(risks, n),
		Stats:    stats.FromGrid(risks, g),
		Filter:   f,
	}
}

// PickUp arms the risk with the given id.
func (s *Session) PickUp(id string) error {
	idx := model.FindByID(s.risks, id)
	if idx < 0 {
		return relocation.ErrVanished
	}
	return s.controller.PickUp(s.risks[idx])
}

// DropOnCell moves the armed risk to (p, i). The view reflects the move
// before the returned commit is persisted.
func (s *Session) DropOnCell(p, i int) (*relocation.Commit, error) {
	commit, err := s.controller.DropOnCell(s.risks, p, i)
	s.afterDrop(commit)
	return commit, err
}

// DropOnBacklog moves the armed risk to the end of the backlog.
func (s *Session) DropOnBacklog() (*relocation.Commit, error) {
	commit, err := s.controller.DropOnBacklog(s.risks)
	s.afterDrop(commit)
	return commit, err
}

func (s *Session) afterDrop(commit *relocation.Commit) {
	if commit == nil {
		return
	}
	s.selection.Select(commit.RiskID)
	s.derive()
}

// Reorder moves the backlog item at from to position to.
func (s *Session) Reorder(from, to int) (*relocation.ReorderCommit, error) {
	commit, err := s.controller.Reorder(s.risks, s.view.Backlog, from, to)
	if commit != nil {
		s.derive()
	}
	return commit, err
}

// Apply resolves a relocation result.
func (s *Session) Apply(res relocation.Result) relocation.Outcome {
	outcome := s.controller.Resolve(s.risks, res)
	if outcome == relocation.OutcomeReverted {
		s.banner = relocationBanner(res)
		s.needsCheck = true
		s.derive()
	}
	return outcome
}

// ApplyReorder resolves a reorder result.
func (s *Session) ApplyReorder(res relocation.ReorderResult) relocation.Outcome {
	outcome := s.controller.ResolveReorder(s.risks, res)
	if outcome == relocation.OutcomeReverted {
		s.banner = reorderBanner(res)
		s.needsCheck = true
		s.derive()
	}
	return outcome
}
