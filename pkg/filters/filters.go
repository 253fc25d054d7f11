// Package filters holds the dashboard filter values and the named presets.
//
// Every edit is written to the local state store immediately so the last
// filter survives a restart. Applying a filter asks the dashboard to reload
// its working set through the Reloader callback.
package filters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vanderheijden86/riskboard/pkg/localstore"
	"github.com/vanderheijden86/riskboard/pkg/model"
)

var (
	// ErrPresetNotFound is returned when no preset has the requested name.
	ErrPresetNotFound = errors.New("preset not found")
	// ErrUnknownField is returned by SetField for an unknown field name.
	ErrUnknownField = errors.New("unknown filter field")
	// ErrEmptyName is returned when saving a preset without a name.
	ErrEmptyName = errors.New("preset name is empty")
	// ErrBuiltinPreset is returned when deleting a shipped preset.
	ErrBuiltinPreset = errors.New("built-in presets cannot be deleted")
)

// Field names one filter value.
type Field string

const (
	FieldSearch   Field = "search"
	FieldStatus   Field = "status"
	FieldLevel    Field = "level"
	FieldCategory Field = "category"
)

// ParseField maps a field name to a Field.
func ParseField(name string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(name))); f {
	case FieldSearch, FieldStatus, FieldLevel, FieldCategory:
		return f, nil
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownField)
}

var (
	currentKey = localstore.NewKey[model.Filter]("filter.current", 1)
	presetsKey = localstore.NewKey[[]model.SavedFilter]("filter.presets", 1)
)

// Reloader reloads the working set for f.
type Reloader func(ctx context.Context, f model.Filter) error

// DefaultBuiltins are the presets shipped with the dashboard.
func DefaultBuiltins() []model.SavedFilter {
	return []model.SavedFilter{
		{Name: "critical", Filter: model.Filter{Level: string(model.LevelCritical)}, Builtin: true},
		{Name: "high", Filter: model.Filter{Level: string(model.LevelHigh)}, Builtin: true},
		{Name: "new", Filter: model.Filter{Status: string(model.StatusIdentified)}, Builtin: true},
		{Name: "in-treatment", Filter: model.Filter{Status: string(model.StatusTreating)}, Builtin: true},
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithReloader sets the callback used by Apply, Clear and LoadByName.
func WithReloader(fn Reloader) Option {
	return func(m *Manager) {
		m.reload = fn
	}
}

// WithBuiltins replaces the shipped presets.
func WithBuiltins(presets []model.SavedFilter) Option {
	return func(m *Manager) {
		m.builtins = make(map[string]model.SavedFilter, len(presets))
		for _, p := range presets {
			p.Builtin = true
			m.builtins[p.Name] = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// Manager owns the filter values and presets of one dashboard session. It is
// not safe for concurrent use; the TUI calls it from its update loop.
type Manager struct {
	store    localstore.Store
	reload   Reloader
	logger   *slog.Logger
	current  model.Filter
	applied  model.Filter
	presets  map[string]model.SavedFilter
	builtins map[string]model.SavedFilter
}

// New restores the last edited filter and the user presets from store. A
// missing or unreadable value starts empty; only storage errors are returned.
func New(store localstore.Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:   store,
		logger:  slog.Default(),
		presets: make(map[string]model.SavedFilter),
	}
	WithBuiltins(DefaultBuiltins())(m)
	for _, opt := range opts {
		opt(m)
	}

	current, _, err := localstore.Load(store, currentKey)
	if err != nil {
		return nil, fmt.Errorf("restoring filter: %w", err)
	}
	saved, _, err := localstore.Load(store, presetsKey)
	if err != nil {
		return nil, fmt.Errorf("restoring presets: %w", err)
	}
	for _, p := range saved {
		if p.Name == "" {
			continue
		}
		p.Builtin = false
		m.presets[p.Name] = p
	}

	m.current = current
	m.applied = current
	return m, nil
}

// Current returns the edited filter values.
func (m *Manager) Current() model.Filter {
	return m.current
}

// Applied returns the filter of the last reload request.
func (m *Manager) Applied() model.Filter {
	return m.applied
}

// Dirty reports whether the edited values differ from the applied ones.
func (m *Manager) Dirty() bool {
	return m.current != m.applied
}

// SetField updates one value and persists the filter. The in-memory value is
// updated even when persisting fails.
func (m *Manager) SetField(f Field, value string) error {
	switch f {
	case FieldSearch:
		m.current.Search = value
	case FieldStatus:
		m.current.Status = value
	case FieldLevel:
		m.current.Level = value
	case FieldCategory:
		m.current.Category = value
	default:
		return fmt.Errorf("%q: %w", f, ErrUnknownField)
	}
	return m.persistCurrent()
}

// Apply requests a reload with the current values.
func (m *Manager) Apply(ctx context.Context) error {
	m.applied = m.current
	if m.reload == nil {
		return nil
	}
	return m.reload(ctx, m.applied)
}

// Clear resets every value, persists, and reloads.
func (m *Manager) Clear(ctx context.Context) error {
	m.current = model.Filter{}
	if err := m.persistCurrent(); err != nil {
		return err
	}
	return m.Apply(ctx)
}

// Save snapshots the current values under name, replacing any user preset
// with that name.
func (m *Manager) Save(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	m.presets[name] = model.SavedFilter{Name: name, Filter: m.current}
	m.logger.Debug("preset saved", "name", name, "filter", m.current.Summary())
	return m.persistPresets()
}

// LoadByName restores the preset's values, persists them and reloads. When no
// preset has that name the current values are left untouched.
func (m *Manager) LoadByName(ctx context.Context, name string) error {
	p, ok := m.lookup(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrPresetNotFound)
	}
	m.current = p.Filter
	if err := m.persistCurrent(); err != nil {
		return err
	}
	return m.Apply(ctx)
}

// Delete removes a user preset. A builtin shadowed by the deleted preset
// becomes visible again.
func (m *Manager) Delete(name string) error {
	if _, ok := m.presets[name]; !ok {
		if _, builtin := m.builtins[name]; builtin {
			return fmt.Errorf("%q: %w", name, ErrBuiltinPreset)
		}
		return fmt.Errorf("%q: %w", name, ErrPresetNotFound)
	}
	delete(m.presets, name)
	return m.persistPresets()
}

// Presets returns the visible presets sorted by name. User presets shadow
// builtins with the same name.
func (m *Manager) Presets() []model.SavedFilter {
	out := make([]model.SavedFilter, 0, len(m.presets)+len(m.builtins))
	for _, p := range m.presets {
		out = append(out, p)
	}
	for name, p := range m.builtins {
		if _, shadowed := m.presets[name]; !shadowed {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (m *Manager) lookup(name string) (model.SavedFilter, bool) {
	if p, ok := m.presets[name]; ok {
		return p, true
	}
	p, ok := m.builtins[name]
	return p, ok
}

func (m *Manager) persistCurrent() error {
	if err := localstore.Save(m.store, currentKey, m.current); err != nil {
		return fmt.Errorf("persisting filter: %w", err)
	}
	return nil
}

func (m *Manager) persistPresets() error {
	list := make([]model.SavedFilter, 0, len(m.presets))
	for _, p := range m.presets {
		list = append(list, p)
	}
	sort.Slice(list, func(a, b int) bool { return list[a].Name < list[b].Name })
	if err := localstore.Save(m.store, presetsKey, list); err != nil {
		return fmt.Errorf("persisting presets: %w", err)
	}
	return nil
}
