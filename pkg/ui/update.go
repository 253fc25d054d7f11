package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/riskboard/pkg/filters"
	"github.com/vanderheijden86/riskboard/pkg/model"
	"github.com/vanderheijden86/riskboard/pkg/relocation"
)

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	if key.Matches(msg, k.Quit) {
		return m, tea.Quit
	}
	if _, armed := m.session.Controller().Armed(); armed {
		return m.handleArmedKeys(msg)
	}

	switch {
	case key.Matches(msg, k.SwitchPanel):
		if m.focus == focusGrid {
			m.focus = focusBacklog
			m.selectBacklogRow()
		} else {
			m.focus = focusGrid
		}

	case key.Matches(msg, k.Up), key.Matches(msg, k.Down), key.Matches(msg, k.Left), key.Matches(msg, k.Right):
		m.moveCursor(msg)

	case key.Matches(msg, k.PickUp):
		m.pickUpFocused()

	case key.Matches(msg, k.Drop):
		if m.focus == focusGrid {
			m.selectInCell()
		} else {
			m.selectBacklogRow()
		}

	case key.Matches(msg, k.Cancel):
		m.session.Selection().Clear()
		m.syncDetail()

	case key.Matches(msg, k.MoveDown):
		return m.reorderFocused(1)

	case key.Matches(msg, k.MoveUp):
		return m.reorderFocused(-1)

	case key.Matches(msg, k.Search):
		m.mode = modeSearch
		m.search.SetValue(m.session.Filters().Current().Search)
		m.search.CursorEnd()
		return m, m.search.Focus()

	case key.Matches(msg, k.CycleStatus):
		m.cycleFilter(filters.FieldStatus, statusOptions())

	case key.Matches(msg, k.CycleLevel):
		m.cycleFilter(filters.FieldLevel, levelOptions())

	case key.Matches(msg, k.CycleCategory):
		m.cycleFilter(filters.FieldCategory, m.categories)

	case key.Matches(msg, k.ClearFilters):
		m.activePreset = ""
		if err := m.session.Filters().Clear(m.ctx); err != nil {
			m.logger.Debug("clear filters", "err", err)
		}
		m.afterReload()

	case key.Matches(msg, k.Presets):
		m.picker = NewPresetPickerModel(m.session.Filters().Presets(), m.theme)
		m.picker.SetSize(m.width, m.height)
		m.mode = modePresets

	case key.Matches(msg, k.SavePreset):
		return m.openSaveForm()

	case key.Matches(msg, k.Reload):
		m.statusMsg = ""
		m.reload()

	case key.Matches(msg, k.CopyID):
		m.copySelectedID()

	case key.Matches(msg, k.Export):
		if m.exportDir == "" {
			m.setStatus("export directory not configured", true)
			return m, nil
		}
		m.setStatus("exporting…", false)
		return m, exportCmd(m.ctx, m.exportDir, m.session.View())

	default:
		if m.focus == focusGrid {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleArmedKeys moves the drop target while a risk is picked up.
func (m Model) handleArmedKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Cancel):
		m.session.Controller().Cancel()
		m.setStatus("move cancelled", false)
	case key.Matches(msg, k.Up), key.Matches(msg, k.Down), key.Matches(msg, k.Left), key.Matches(msg, k.Right):
		m.focus = focusGrid
		m.moveCursor(msg)
	case key.Matches(msg, k.SwitchPanel):
		if m.focus == focusGrid {
			m.focus = focusBacklog
		} else {
			m.focus = focusGrid
		}
	case key.Matches(msg, k.Drop):
		if m.focus == focusBacklog {
			return m.dropOnBacklog()
		}
		return m.dropOnCell(m.curP, m.curI)
	case key.Matches(msg, k.DropBacklog):
		return m.dropOnBacklog()
	}
	return m, nil
}

func (m *Model) moveCursor(msg tea.KeyMsg) {
	k := m.keys
	if m.focus == focusBacklog {
		n := len(m.session.View().Backlog)
		switch {
		case key.Matches(msg, k.Up):
			m.backlogCursor = clamp(m.backlogCursor-1, 0, n-1)
		case key.Matches(msg, k.Down):
			m.backlogCursor = clamp(m.backlogCursor+1, 0, n-1)
		default:
			return
		}
		m.ensureBacklogVisible()
		m.selectBacklogRow()
		return
	}

	n := m.session.GridSize()
	switch {
	case key.Matches(msg, k.Up):
		m.curP = clamp(m.curP+1, 1, n)
	case key.Matches(msg, k.Down):
		m.curP = clamp(m.curP-1, 1, n)
	case key.Matches(msg, k.Left):
		m.curI = clamp(m.curI-1, 1, n)
	case key.Matches(msg, k.Right):
		m.curI = clamp(m.curI+1, 1, n)
	}
	m.cellPick = 0
}

// focusedCellRisk returns the risk to act on in the focused cell: the
// selection when it is there, else the first risk.
func (m *Model) focusedCellRisk() (model.Risk, bool) {
	c, ok := m.session.View().Grid.Cell(m.curP, m.curI)
	if !ok || c.Len() == 0 {
		return model.Risk{}, false
	}
	sel := m.session.Selection().ID()
	for _, r := range c.Risks {
		if r.ID == sel {
			return r, true
		}
	}
	return c.Risks[0], true
}

func (m *Model) focusedBacklogRisk() (model.Risk, bool) {
	bl := m.session.View().Backlog
	if m.backlogCursor < 0 || m.backlogCursor >= len(bl) {
		return model.Risk{}, false
	}
	return bl[m.backlogCursor], true
}

// selectInCell cycles the selection through the risks of the focused cell.
func (m *Model) selectInCell() {
	c, ok := m.session.View().Grid.Cell(m.curP, m.curI)
	if !ok || c.Len() == 0 {
		m.setStatus(fmt.Sprintf("P%d×I%d is empty", m.curP, m.curI), false)
		return
	}
	idx := m.cellPick % c.Len()
	m.session.Selection().Select(c.Risks[idx].ID)
	m.cellPick = idx + 1
	m.syncDetail()
}

func (m *Model) selectBacklogRow() {
	if r, ok := m.focusedBacklogRisk(); ok {
		m.session.Selection().Select(r.ID)
		m.syncDetail()
	}
}

func (m *Model) pickUpFocused() {
	var (
		r  model.Risk
		ok bool
	)
	if m.focus == focusGrid {
		r, ok = m.focusedCellRisk()
	} else {
		r, ok = m.focusedBacklogRisk()
	}
	if !ok {
		m.setStatus("nothing to pick up here", false)
		return
	}
	m.pickUp(r.ID)
}

func (m *Model) pickUp(id string) bool {
	if err := m.session.PickUp(id); err != nil {
		m.setError("pick up", err)
		return false
	}
	m.session.Selection().Select(id)
	if m.focus == focusBacklog {
		m.focus = focusGrid
	}
	m.setStatus(fmt.Sprintf("picked up %s · arrows to aim, enter to drop, b for backlog, esc to cancel", id), false)
	m.syncDetail()
	return true
}

func (m Model) dropOnCell(p, i int) (tea.Model, tea.Cmd) {
	commit, err := m.session.DropOnCell(p, i)
	switch {
	case errors.Is(err, relocation.ErrInvalidTarget), errors.Is(err, relocation.ErrBacklogBusy):
		m.setError("drop", err)
		return m, nil
	case err != nil:
		m.setError("drop", err)
		m.afterDataChange()
		return m, nil
	case commit == nil:
		m.setStatus("already there", false)
		return m, nil
	}
	m.curP, m.curI = p, i
	m.setStatus(fmt.Sprintf("moving %s to %s…", commit.RiskID, commit.Target), false)
	m.afterDataChange()
	return m, persistCmd(m.ctx, m.session, *commit)
}

func (m Model) dropOnBacklog() (tea.Model, tea.Cmd) {
	commit, err := m.session.DropOnBacklog()
	switch {
	case errors.Is(err, relocation.ErrBacklogBusy):
		m.setError("drop", err)
		return m, nil
	case err != nil:
		m.setError("drop", err)
		m.afterDataChange()
		return m, nil
	case commit == nil:
		m.setStatus("already in the backlog", false)
		return m, nil
	}
	m.focus = focusBacklog
	m.afterDataChange()
	m.backlogCursor = len(m.session.View().Backlog) - 1
	for idx, r := range m.session.View().Backlog {
		if r.ID == commit.RiskID {
			m.backlogCursor = idx
		}
	}
	m.ensureBacklogVisible()
	m.setStatus(fmt.Sprintf("moving %s to the backlog…", commit.RiskID), false)
	return m, persistCmd(m.ctx, m.session, *commit)
}

func (m Model) reorderFocused(delta int) (tea.Model, tea.Cmd) {
	if m.focus != focusBacklog {
		return m, nil
	}
	from := m.backlogCursor
	to := from + delta
	if to < 0 || to >= len(m.session.View().Backlog) {
		return m, nil
	}
	return m.reorderBacklog(from, to)
}

// reorderBacklog moves the backlog row at from to position to and persists
// the new order.
func (m Model) reorderBacklog(from, to int) (tea.Model, tea.Cmd) {
	commit, err := m.session.Reorder(from, to)
	if err != nil {
		m.setError("reorder", err)
		return m, nil
	}
	if commit == nil {
		return m, nil
	}
	m.backlogCursor = to
	m.afterDataChange()
	return m, persistReorderCmd(m.ctx, m.session, commit)
}

// cycleFilter advances one filter field through "" followed by options.
func (m *Model) cycleFilter(field filters.Field, options []string) {
	cur := m.session.Filters().Current()
	var value string
	switch field {
	case filters.FieldStatus:
		value = cur.Status
	case filters.FieldLevel:
		value = cur.Level
	case filters.FieldCategory:
		value = cur.Category
	}
	next := ""
	if value == "" {
		if len(options) > 0 {
			next = options[0]
		}
	} else {
		for idx, opt := range options {
			if strings.EqualFold(opt, value) && idx+1 < len(options) {
				next = options[idx+1]
			}
		}
	}
	m.applyField(field, next)
}

func (m *Model) applyField(field filters.Field, value string) {
	if err := m.session.Filters().SetField(field, value); err != nil {
		m.setError("filter", err)
	}
	m.activePreset = ""
	m.reload()
}

func statusOptions() []string {
	out := make([]string, 0, len(model.Statuses()))
	for _, s := range model.Statuses() {
		out = append(out, string(s))
	}
	return out
}

func levelOptions() []string {
	out := make([]string, 0, 4)
	for _, l := range model.Levels() {
		out = append(out, string(l))
	}
	return out
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.search.Blur()
		return m, nil
	case tea.KeyEnter:
		m.mode = modeNormal
		m.search.Blur()
		m.applyField(filters.FieldSearch, strings.TrimSpace(m.search.Value()))
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) handlePresetKeys(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc", "q":
		m.mode = modeNormal
	case "j", "down":
		m.picker.MoveDown()
	case "k", "up":
		m.picker.MoveUp()
	case "d":
		p := m.picker.SelectedPreset()
		if p == nil {
			break
		}
		name := p.Name
		if err := m.session.Filters().Delete(name); err != nil {
			m.setError("delete preset", err)
			break
		}
		m.picker = NewPresetPickerModel(m.session.Filters().Presets(), m.theme)
		m.picker.SetSize(m.width, m.height)
		m.setStatus(fmt.Sprintf("deleted preset %s", name), false)
	case "enter":
		p := m.picker.SelectedPreset()
		m.mode = modeNormal
		if p == nil {
			break
		}
		if err := m.session.LoadPreset(m.ctx, p.Name); err != nil {
			m.logger.Debug("load preset", "name", p.Name, "err", err)
		} else {
			m.activePreset = p.Name
			m.setStatus(FormatPresetInfo(p.Name), false)
		}
		m.afterReload()
	}
	return m
}

func (m Model) openSaveForm() (tea.Model, tea.Cmd) {
	name := m.activePreset
	m.saveName = &name
	m.saveForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Save filter preset").
				Description(m.session.Filters().Current().Summary()).
				Placeholder("preset name").
				Value(m.saveName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula()).WithShowHelp(false).WithWidth(50)
	m.mode = modeSavePreset
	return m, m.saveForm.Init()
}

func (m Model) updateSaveForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.saveForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.saveForm = f
	}
	switch m.saveForm.State {
	case huh.StateCompleted:
		name := strings.TrimSpace(*m.saveName)
		m.closeSaveForm()
		m.savePreset(name)
		return m, nil
	case huh.StateAborted:
		m.closeSaveForm()
		return m, nil
	}
	return m, cmd
}

func (m *Model) closeSaveForm() {
	m.mode = modeNormal
	m.saveForm = nil
}

// savePreset stores the current filter under name.
func (m *Model) savePreset(name string) {
	if err := m.session.Filters().Save(name); err != nil {
		m.setError("save preset", err)
		return
	}
	m.activePreset = name
	m.setStatus(fmt.Sprintf("saved preset %s", name), false)
}
