// Package ui is the terminal dashboard: the probability×impact grid, the
// ordered backlog, distribution charts and a detail pane for the selected
// risk. Moves are made with the keyboard or by dragging with the mouse; the
// result of each persistence call comes back as a message.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/riskboard/pkg/dashboard"
	"github.com/vanderheijden86/riskboard/pkg/export"
	"github.com/vanderheijden86/riskboard/pkg/metrics"
	"github.com/vanderheijden86/riskboard/pkg/relocation"
	"github.com/vanderheijden86/riskboard/pkg/watcher"
)

// FileChangedMsg is sent when the database changes on disk.
type FileChangedMsg struct{}

// reloadRequestMsg asks the model to reload the working set.
type reloadRequestMsg struct{}

// relocationResultMsg carries the outcome of a move's persistence call.
type relocationResultMsg struct{ Result relocation.Result }

// reorderResultMsg carries the outcome of a backlog reorder.
type reorderResultMsg struct{ Result relocation.ReorderResult }

// exportDoneMsg reports a finished export.
type exportDoneMsg struct {
	Paths []string
	Err   error
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

func reloadCmd() tea.Msg { return reloadRequestMsg{} }

// persistCmd runs the mutation of a move off the UI goroutine.
func persistCmd(ctx context.Context, s *dashboard.Session, commit relocation.Commit) tea.Cmd {
	svc := s.Service()
	return func() tea.Msg {
		return relocationResultMsg{Result: relocation.Persist(ctx, svc, commit)}
	}
}

// persistReorderCmd writes a backlog reorder off the UI goroutine.
func persistReorderCmd(ctx context.Context, s *dashboard.Session, commit *relocation.ReorderCommit) tea.Cmd {
	svc, c := s.Service(), s.Controller()
	return func() tea.Msg {
		return reorderResultMsg{Result: c.PersistReorder(ctx, svc, commit)}
	}
}

func exportCmd(ctx context.Context, dir string, view dashboard.View) tea.Cmd {
	return func() tea.Msg {
		paths, err := export.WriteAll(ctx, dir, view, export.Options{})
		return exportDoneMsg{Paths: paths, Err: err}
	}
}

type focus int

const (
	focusGrid focus = iota
	focusBacklog
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modePresets
	modeSavePreset
)

// Options configure a Model.
type Options struct {
	// Context is passed to every backend call. Defaults to Background.
	Context context.Context
	// Watcher triggers reloads on external database changes.
	Watcher *watcher.Watcher
	// ExportDir is where "e" writes the heatmaps and report. Empty disables it.
	ExportDir string
	Logger    *slog.Logger
	// Clipboard replaces the system clipboard writer (tests).
	Clipboard func(string) error
	// Renderer replaces the default lipgloss renderer (tests).
	Renderer *lipgloss.Renderer
}

// Model is the main Bubble Tea model for rb.
type Model struct {
	session *dashboard.Session
	ctx     context.Context
	logger  *slog.Logger
	theme   Theme
	keys    KeyMap

	width  int
	height int

	focus         focus
	mode          mode
	curP, curI    int
	cellPick      int
	backlogCursor int
	backlogScroll int
	dragging      bool

	search   textinput.Model
	picker   PresetPickerModel
	saveForm *huh.Form
	saveName *string

	viewport  viewport.Model
	renderer  *glamour.TermRenderer
	detailKey string

	statusMsg     string
	statusIsError bool
	statusSeq     int
	lastLogJSON   string

	activePreset string
	categories   []string
	watcher      *watcher.Watcher
	exportDir    string
	clipboard    func(string) error
}

const (
	defaultWidth  = 120
	defaultHeight = 40
)

// NewModel builds the dashboard over an existing session.
func NewModel(s *dashboard.Session, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Renderer == nil {
		opts.Renderer = lipgloss.DefaultRenderer()
	}

	ti := textinput.New()
	ti.Placeholder = "title or description"
	ti.Prompt = "/ "
	ti.CharLimit = 200
	ti.Width = 40

	n := s.GridSize()
	m := Model{
		session:   s,
		ctx:       opts.Context,
		logger:    opts.Logger,
		theme:     DefaultTheme(opts.Renderer),
		keys:      DefaultKeyMap(),
		width:     defaultWidth,
		height:    defaultHeight,
		curP:      (n + 1) / 2,
		curI:      (n + 1) / 2,
		search:    ti,
		viewport:  viewport.New(defaultWidth-2, 8),
		watcher:   opts.Watcher,
		exportDir: opts.ExportDir,
		clipboard: opts.Clipboard,
	}
	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(defaultWidth-6),
	)
	m.afterDataChange()
	return m
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if !m.session.Loaded() {
		cmds = append(cmds, reloadCmd)
	}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

// Session returns the underlying session.
func (m Model) Session() *dashboard.Session { return m.session }

// FocusState names the focused panel or overlay.
func (m Model) FocusState() string {
	switch m.mode {
	case modeSearch:
		return "search"
	case modePresets:
		return "presets"
	case modeSavePreset:
		return "save-preset"
	}
	if m.focus == focusBacklog {
		return "backlog"
	}
	return "grid"
}

// Cursor returns the focused grid cell.
func (m Model) Cursor() (p, i int) { return m.curP, m.curI }

// BacklogCursor returns the focused backlog row.
func (m Model) BacklogCursor() int { return m.backlogCursor }

// StatusMessage returns the transient status line and whether it is an error.
func (m Model) StatusMessage() (string, bool) { return m.statusMsg, m.statusIsError }

// ActivePreset returns the name of the last loaded preset.
func (m Model) ActivePreset() string { return m.activePreset }

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsError = isErr
	m.statusSeq++
}

func (m *Model) setError(prefix string, err error) {
	m.setStatus(fmt.Sprintf("%s: %v", prefix, err), true)
}

// reload fetches the working set again. While moves are in flight the
// session defers it until their results are in.
func (m *Model) reload() {
	if err := m.session.Reload(m.ctx); err != nil {
		m.logger.Debug("reload failed", "err", err)
	}
	m.afterReload()
}

// afterReload refreshes the UI after any call that reloads the working set.
func (m *Model) afterReload() {
	if m.session.ReloadDeferred() {
		m.setStatus(fmt.Sprintf("reload waits for %d pending change(s)", m.session.Controller().Pending()), false)
	}
	m.afterDataChange()
}

// afterDataChange clamps cursors and refreshes derived UI state after the
// view changed.
func (m *Model) afterDataChange() {
	n := m.session.GridSize()
	m.curP = clamp(m.curP, 1, n)
	m.curI = clamp(m.curI, 1, n)

	bl := m.session.View().Backlog
	m.backlogCursor = clamp(m.backlogCursor, 0, len(bl)-1)
	m.ensureBacklogVisible()
	m.rememberCategories()
	m.syncDetail()
}

func (m *Model) rememberCategories() {
	seen := make(map[string]bool, len(m.categories))
	for _, c := range m.categories {
		seen[c] = true
	}
	for _, r := range m.session.Risks() {
		if r.Category != "" && !seen[r.Category] {
			seen[r.Category] = true
			m.categories = append(m.categories, r.Category)
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	defer metrics.Timer(metrics.UIRender)()

	// huh.Form needs every message type, not just keys, for its internal
	// navigation.
	if m.mode == modeSavePreset {
		if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEsc {
			m.closeSaveForm()
			m.setStatus("save cancelled", false)
			return m, nil
		}
		if _, ok := msg.(tea.WindowSizeMsg); !ok {
			return m.updateSaveForm(msg)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.picker.SetSize(m.width, m.height)
		m.detailKey = ""
		m.syncDetail()
		return m, nil

	case reloadRequestMsg:
		m.reload()
		return m, nil

	case FileChangedMsg:
		m.logger.Debug("database changed on disk, reloading")
		m.reload()
		if m.watcher != nil {
			return m, WatchFileCmd(m.watcher)
		}
		return m, nil

	case relocationResultMsg:
		switch m.session.Apply(msg.Result) {
		case relocation.OutcomeCommitted:
			m.setStatus(fmt.Sprintf("moved %s to %s", msg.Result.Commit.RiskID, msg.Result.Commit.Target), false)
		case relocation.OutcomeReverted:
			m.statusMsg = ""
		}
		m.afterResult()
		return m, nil

	case reorderResultMsg:
		if m.session.ApplyReorder(msg.Result) == relocation.OutcomeCommitted {
			m.setStatus(fmt.Sprintf("backlog saved (%s)", msg.Result.Path), false)
		} else {
			m.statusMsg = ""
		}
		m.afterResult()
		return m, nil

	case exportDoneMsg:
		if msg.Err != nil {
			m.setError("export failed", msg.Err)
		} else {
			m.setStatus(fmt.Sprintf("exported %d files to %s", len(msg.Paths), m.exportDir), false)
		}
		return m, nil

	case logRecordMsg:
		m.setStatus(msg.Summary, msg.Level >= slog.LevelError)
		m.lastLogJSON = msg.Structured
		seq := m.statusSeq
		return m, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
			return logRecordFadeMsg{seq: seq}
		})

	case logRecordFadeMsg:
		if msg.seq == m.statusSeq {
			m.statusMsg = ""
			m.statusIsError = false
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.handleSearchKeys(msg)
		case modePresets:
			return m.handlePresetKeys(msg), nil
		}
		return m.handleKeys(msg)
	}

	if m.mode == modeSearch {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

// afterResult refreshes the view after a persistence result and runs a
// reload that was deferred while the call was in flight.
func (m *Model) afterResult() {
	if m.session.ReloadDeferred() && m.session.Controller().Pending() == 0 {
		m.reload()
		return
	}
	m.afterDataChange()
}

func (m *Model) copySelectedID() {
	sel := m.session.Selected()
	if sel == nil {
		m.setStatus("nothing selected", true)
		return
	}
	if err := m.clipboard(sel.ID); err != nil {
		m.setError("clipboard", err)
		return
	}
	m.setStatus(fmt.Sprintf("📋 Copied %s to clipboard", sel.ID), false)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
