// Package browser defines the Browser Session contract (C1): an opaque
// page handle that navigates, queries the DOM, synthesizes input, and
// observes mutations/network activity. Components upstream of this
// package never depend on a concrete backend.
package browser

import (
	"context"
	"time"
)

// WaitUntil names a navigation completion strategy.
type WaitUntil string

const (
	WaitUntilLoad        WaitUntil = "load"
	WaitUntilDOMStable   WaitUntil = "dom_stable"
	WaitUntilNetworkIdle WaitUntil = "network_idle"
)

// ElementHandle opaquely identifies an element resolved by a prior query.
// Backends are free to choose their own internal representation; callers
// treat it as inert data to pass back into Click/Hover/Type/etc.
type ElementHandle interface {
	// Selector returns the CSS selector the handle was resolved from, so
	// callers can build a re-selector closure (§4.5) without holding a
	// live reference across suspension points.
	Selector() string
}

// NetworkEvent is a minimal observation of a completed network exchange,
// used by variant update detection (§4.5) to watch for cart/variant APIs.
type NetworkEvent struct {
	URL        string
	StatusCode int
}

// MutationEvent signals that the DOM changed after a suspension point.
type MutationEvent struct {
	Summary string
}

// Browser is the contract a Browser Session backend must satisfy (§4.1).
// All methods accept a context for cancellation/timeout; every navigate,
// evaluate, click, and wait is a suspension point (§5) after which the
// caller must not assume DOM stability.
type Browser interface {
	// Navigate loads url and blocks until waitUntil is satisfied or
	// timeout elapses. Fails with a NavTimeout/NavDenied AsieError.
	Navigate(ctx context.Context, url string, waitUntil WaitUntil, timeout time.Duration) error

	// Evaluate runs a JS expression in the page and returns its
	// JSON-decodable result.
	Evaluate(ctx context.Context, fn string, args ...any) (any, error)

	// Query resolves a CSS selector to zero or more element handles.
	Query(ctx context.Context, selector string) ([]ElementHandle, error)

	Click(ctx context.Context, h ElementHandle) error
	Hover(ctx context.Context, h ElementHandle) error
	SelectByIndex(ctx context.Context, h ElementHandle, i int) error
	Type(ctx context.Context, h ElementHandle, s string) error
	ScrollBy(ctx context.Context, dx, dy float64) error
	WaitMs(ctx context.Context, ms int) error

	// OuterHTML returns document.documentElement.outerHTML, the
	// serialized snapshot consumed by the in-process DOM toolkit (§4.3).
	OuterHTML(ctx context.Context) (string, error)

	// URL returns window.location.href.
	URL(ctx context.Context) (string, error)

	// DismissPopups runs the best-effort popup/cookie-banner dismissal
	// pass described in §4.1. Never returns an error: absence of a
	// popup is not a failure.
	DismissPopups(ctx context.Context)

	Close() error
}

// Session wraps a Browser with the humanization contract (§4.1):
// randomized inter-action pauses and probabilistic pre-click hovers.
// Upstream components that want humanized interaction should call
// through Session rather than the raw Browser.
type Session struct {
	Browser
	human *Humanizer
}

// NewSession wraps b with humanization driven by h. A nil h disables
// humanization (useful for tests needing deterministic timing).
func NewSession(b Browser, h *Humanizer) *Session {
	return &Session{Browser: b, human: h}
}

// Click performs the humanization contract's "randomly hover before
// ~30% of clicks" rule, then delegates to the underlying Browser, then
// inserts the randomized inter-action pause.
func (s *Session) Click(ctx context.Context, h ElementHandle) error {
	if s.human != nil {
		if s.human.ShouldHover() {
			_ = s.Browser.Hover(ctx, h)
		}
	}
	err := s.Browser.Click(ctx, h)
	s.pause(ctx)
	return err
}

func (s *Session) pause(ctx context.Context) {
	if s.human == nil {
		return
	}
	d := s.human.NextDelay()
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
