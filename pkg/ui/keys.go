package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the dashboard key bindings.
type KeyMap struct {
	Up, Down, Left, Right key.Binding
	SwitchPanel           key.Binding
	PickUp                key.Binding
	Drop                  key.Binding
	DropBacklog           key.Binding
	Cancel                key.Binding
	MoveDown, MoveUp      key.Binding
	Search                key.Binding
	CycleStatus           key.Binding
	CycleLevel            key.Binding
	CycleCategory         key.Binding
	ClearFilters          key.Binding
	Presets               key.Binding
	SavePreset            key.Binding
	Reload                key.Binding
	CopyID                key.Binding
	Export                key.Binding
	Quit                  key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:          key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:         key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		SwitchPanel:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "grid/backlog")),
		PickUp:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pick up")),
		Drop:          key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop/select")),
		DropBacklog:   key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "to backlog")),
		Cancel:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		MoveDown:      key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		MoveUp:        key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		Search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		CycleStatus:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
		CycleLevel:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "level")),
		CycleCategory: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "category")),
		ClearFilters:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear")),
		Presets:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "presets")),
		SavePreset:    key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "save preset")),
		Reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		CopyID:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		Export:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// footerBindings are the keys listed in the footer, in display order.
func (k KeyMap) footerBindings() []key.Binding {
	return []key.Binding{
		k.SwitchPanel, k.PickUp, k.Drop, k.DropBacklog, k.MoveDown, k.MoveUp,
		k.Search, k.CycleStatus, k.CycleLevel, k.CycleCategory, k.ClearFilters,
		k.Presets, k.SavePreset, k.Reload, k.CopyID, k.Export, k.Quit,
	}
}
