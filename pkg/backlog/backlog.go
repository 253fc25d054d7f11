// Package backlog orders the risks that are not on the grid and implements
// the reorder operation on that list.
package backlog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vanderheijden86/riskboard/pkg/metrics"
	"github.com/vanderheijden86/riskboard/pkg/model"
)

// ErrIndexOutOfRange is returned by MoveItem for indices outside the list.
var ErrIndexOutOfRange = errors.New("backlog index out of range")

// Order returns the backlog of a working set: every risk not on a grid of
// size n, sorted by priority order ascending with unordered risks last. Ties
// go to the most recently created risk; remaining ties keep input order.
// The input is not modified.
func Order(risks []model.Risk, n int) []model.Risk {
	defer metrics.Timer(metrics.BacklogOrder)()

	list := make([]model.Risk, 0, len(risks))
	for _, r := range risks {
		if !r.OnGrid(n) {
			list = append(list, r.Clone())
		}
	}
	sortByPriorityAndDate(list)
	return list
}

// sortByPriorityAndDate sorts risks by priority order (ascending, nil last)
// then by creation date (descending).
func sortByPriorityAndDate(list []model.Risk) {
	sort.SliceStable(list, func(a, b int) bool {
		pa, pb := list[a].PriorityOrder, list[b].PriorityOrder
		switch {
		case pa != nil && pb == nil:
			return true
		case pa == nil && pb != nil:
			return false
		case pa != nil && pb != nil && *pa != *pb:
			return *pa < *pb
		}
		return list[a].CreatedAt.After(list[b].CreatedAt)
	})
}

// MoveItem moves the item at from to position to and renumbers the whole
// list 1..len. Moving an item onto itself returns an unchanged copy.
func MoveItem(list []model.Risk, from, to int) ([]model.Risk, error) {
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
		return nil, fmt.Errorf("move %d -> %d in list of %d: %w", from, to, len(list), ErrIndexOutOfRange)
	}
	out := model.CloneAll(list)
	if from == to {
		return out, nil
	}

	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]model.Risk{item}, out[to:]...)...)
	Renumber(out)
	return out, nil
}

// Renumber assigns PriorityOrder = position + 1 to every item in place.
func Renumber(list []model.Risk) {
	for idx := range list {
		list[idx].PriorityOrder = model.IntPtr(idx + 1)
	}
}

// NextOrder returns one greater than the highest priority order among the
// backlog risks of the working set, or 1 when none is ordered.
func NextOrder(risks []model.Risk, n int) int {
	highest := 0
	for _, r := range risks {
		if r.OnGrid(n) || r.PriorityOrder == nil {
			continue
		}
		if *r.PriorityOrder > highest {
			highest = *r.PriorityOrder
		}
	}
	return highest + 1
}

// Updates returns the (id, order) pairs to persist for list. Items without an
// order are skipped.
func Updates(list []model.Risk) []model.OrderUpdate {
	updates := make([]model.OrderUpdate, 0, len(list))
	for _, r := range list {
		if r.PriorityOrder == nil {
			continue
		}
		updates = append(updates, model.OrderUpdate{ID: r.ID, PriorityOrder: *r.PriorityOrder})
	}
	return updates
}

// IndexOf returns the position of id in list, or -1.
func IndexOf(list []model.Risk, id string) int {
	return model.FindByID(list, id)
}
