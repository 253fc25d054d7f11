package dashboard

import (
	"errors"
	"fmt"

	"github.com/vanderheijden86/riskboard/pkg/filters"
	"github.com/vanderheijden86/riskboard/pkg/relocation"
)

// BannerKind classifies a user-visible error.
type BannerKind int

const (
	BannerNone BannerKind = iota
	BannerLoad
	BannerRelocation
	BannerReorder
	BannerPreset
	BannerInfo
)

func (k BannerKind) String() string {
	switch k {
	case BannerLoad:
		return "load"
	case BannerRelocation:
		return "relocation"
	case BannerReorder:
		return "reorder"
	case BannerPreset:
		return "preset"
	case BannerInfo:
		return "info"
	}
	return "none"
}

// Banner is the message shown above the dashboard. None of them is fatal;
// reloading clears them.
type Banner struct {
	Kind    BannerKind
	Message string
	Err     error
}

// IsError reports whether the banner reports a failure.
func (b Banner) IsError() bool {
	return b.Kind != BannerNone && b.Kind != BannerInfo
}

func loadBanner(err error) Banner {
	return Banner{Kind: BannerLoad, Message: fmt.Sprintf("Could not load risks: %v (press r to retry)", err), Err: err}
}

func relocationBanner(res relocation.Result) Banner {
	return Banner{
		Kind:    BannerRelocation,
		Message: fmt.Sprintf("Move failed and was undone: %v", res.Err),
		Err:     res.Err,
	}
}

func reorderBanner(res relocation.ReorderResult) Banner {
	msg := fmt.Sprintf("Backlog reorder failed: %v.", res.Err)
	switch {
	case res.CompensationErr != nil:
		msg += " Some rows could not be restored; press r to reload."
	case res.Compensated:
		msg += " Saved rows were restored; press r to reload."
	default:
		msg += " Press r to reload."
	}
	return Banner{Kind: BannerReorder, Message: msg, Err: errors.Join(res.Err, res.CompensationErr)}
}

func presetBanner(err error) Banner {
	msg := fmt.Sprintf("Preset error: %v", err)
	if errors.Is(err, filters.ErrPresetNotFound) {
		msg = fmt.Sprintf("No such preset: %v", err)
	}
	return Banner{Kind: BannerPreset, Message: msg, Err: err}
}
