package variant

import (
	"context"
	"regexp"
	"time"

	"github.com/use-agent/asie/browser"
	"github.com/use-agent/asie/models"
	"github.com/use-agent/asie/sampler"
)

// variantURLParam matches a variant query parameter change, per §4.5
// waitForVariantUpdate signal (a).
var variantURLParam = regexp.MustCompile(`variant=\d+`)

// variantNetworkHint matches a variant-related network response, per
// §4.5 waitForVariantUpdate signal (c).
var variantNetworkHint = regexp.MustCompile(`(?i)variant|graphql.*(product|variant|options)|cart/(add|change|update)`)

// updateWaitTimeout is the default wait for waitForVariantUpdate (§4.5).
const updateWaitTimeout = 3000 * time.Millisecond

// Selector drives one VariantOption's selection and observes whether the
// page responded, per §4.5's VariantOption.select() contract.
type Selector struct {
	browser browser.Browser
	sampler *sampler.Sampler
}

func NewSelector(b browser.Browser, s *sampler.Sampler) *Selector {
	return &Selector{browser: b, sampler: s}
}

// Select re-resolves group's selector, locates opt among the matches by
// its positional index (see reResolve), dispatches the
// framework-appropriate event sequence, and waits for an observable
// update. Returns whether an update was observed.
func (sel *Selector) Select(ctx context.Context, group models.VariantGroup, opt models.VariantOption) (bool, error) {
	handles, err := sel.browser.Query(ctx, group.Locator.Selector)
	if err != nil {
		return false, err
	}

	handle := reResolve(handles, opt)
	if handle == nil {
		return false, nil
	}

	before, err := sel.sampler.Capture(ctx, sel.browser)
	if err != nil {
		return false, err
	}

	switch group.ControlType {
	case models.ControlDropdown:
		if err := sel.browser.SelectByIndex(ctx, handle, opt.Index); err != nil {
			return false, nil
		}
	default: // radio, button, swatch, aria-group: click/change
		if err := sel.browser.Click(ctx, handle); err != nil {
			return false, nil
		}
	}

	return sel.waitForVariantUpdate(ctx, before)
}

// reResolve picks the handle at opt's positional index, falling back to
// the first handle when the index is out of range (options may detach on
// re-render, §4.5). It does not match on attributes such as data-value or
// the option label.
func reResolve(handles []browser.ElementHandle, opt models.VariantOption) browser.ElementHandle {
	if opt.Index >= 0 && opt.Index < len(handles) {
		return handles[opt.Index]
	}
	if len(handles) > 0 {
		return handles[0]
	}
	return nil
}

// waitForVariantUpdate polls until one of the three update signals fires
// or updateWaitTimeout elapses (§4.5). Network-response observation is
// approximated via URL change, since the Browser interface does not
// expose raw event streams to this package; a concrete backend wiring
// its network-event stream into the Sampler would extend signal (c).
func (sel *Selector) waitForVariantUpdate(ctx context.Context, before models.PageStateSnapshot) (bool, error) {
	deadline := time.Now().Add(updateWaitTimeout)
	for time.Now().Before(deadline) {
		after, err := sel.sampler.Capture(ctx, sel.browser)
		if err == nil {
			if variantURLParam.MatchString(after.URL) && after.URL != before.URL {
				return true, nil
			}
			changes, _ := sel.sampler.Diff(before, after)
			for _, c := range changes {
				if c.Type == models.ChangeImage || c.Type == models.ChangePrice || c.Type == models.ChangeVariantSelection {
					return true, nil
				}
			}
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, nil
}
