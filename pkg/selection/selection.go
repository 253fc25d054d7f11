// Package selection tracks the single risk shown in the detail panel.
package selection

import "github.com/vanderheijden86/riskboard/pkg/model"

// Panel holds at most one selected risk id. It never owns risk data; the
// detail is always read from the current working set.
type Panel struct {
	id string
}

// Select replaces the current selection with id. An empty id clears it.
func (p *Panel) Select(id string) {
	p.id = id
}

// Clear drops the selection.
func (p *Panel) Clear() {
	p.id = ""
}

// ID returns the selected id, or "" when nothing is selected.
func (p *Panel) ID() string {
	return p.id
}

// HasSelection reports whether an id is selected.
func (p *Panel) HasSelection() bool {
	return p.id != ""
}

// Current returns a copy of the selected risk from ws, or nil when nothing is
// selected or the risk is no longer in the working set.
func (p *Panel) Current(ws []model.Risk) *model.Risk {
	if p.id == "" {
		return nil
	}
	idx := model.FindByID(ws, p.id)
	if idx < 0 {
		return nil
	}
	r := ws[idx].Clone()
	return &r
}

// Reconcile clears the selection when its risk vanished from ws. It reports
// whether the selection was cleared.
func (p *Panel) Reconcile(ws []model.Risk) bool {
	if p.id == "" || model.FindByID(ws, p.id) >= 0 {
		return false
	}
	p.id = ""
	return true
}
