package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/asie/config"
	"github.com/use-agent/asie/models"
)

// Launcher owns the single browser process and mints new rodBrowser
// sessions on demand, grounded on the teacher's scraper.NewScraper.
type Launcher struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

// NewLauncher launches a headless (by default) browser instance with the
// same stealth launch flags as the teacher's scraper.NewScraper.
func NewLauncher(cfg config.BrowserConfig) (*Launcher, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewAsieError(models.ErrCodeFatal, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewAsieError(models.ErrCodeFatal, "failed to connect to browser", err)
	}

	return &Launcher{browser: b, cfg: cfg}, nil
}

// NewSession opens a fresh page and returns it as a Browser Session,
// with stealth injection and resource hijacking installed before any
// navigation takes place (order matters: both only affect navigations
// that happen after they are mounted).
func (l *Launcher) NewSession(ctx context.Context, stealthMode bool) (*rodBrowser, error) {
	page, err := l.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewAsieError(models.ErrCodeFatal, "failed to create page", err)
	}

	if stealthMode {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	router := installHijack(page, defaultBlockedTypes)

	return &rodBrowser{page: page, router: router}, nil
}

// Close kills the underlying browser process. Call once on shutdown.
func (l *Launcher) Close() error {
	return l.browser.Close()
}

// rodBrowser implements Browser atop a single rod.Page, grounded on the
// teacher's scraper/page.go doScrapeRod lifecycle.
type rodBrowser struct {
	page   *rod.Page
	router *rod.HijackRouter
}

type rodElementHandle struct {
	el       *rod.Element
	selector string
}

func (h *rodElementHandle) Selector() string { return h.selector }

func (b *rodBrowser) Navigate(ctx context.Context, url string, waitUntil WaitUntil, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := b.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return categorizeNavError(err)
	}

	switch waitUntil {
	case WaitUntilNetworkIdle:
		waitIdle := p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
		waitIdle()
	default:
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
		}
	}
	return nil
}

func (b *rodBrowser) Evaluate(ctx context.Context, fn string, args ...any) (any, error) {
	p := b.page.Context(ctx)
	res, err := p.Eval(fn, args...)
	if err != nil {
		return nil, models.NewAsieError(models.ErrCodeFatal, "evaluate failed", err)
	}
	return res.Value.Val(), nil
}

func (b *rodBrowser) Query(ctx context.Context, selector string) ([]ElementHandle, error) {
	p := b.page.Context(ctx)
	elements, err := p.Elements(selector)
	if err != nil {
		return nil, models.NewAsieError(models.ErrCodeNoMatch, fmt.Sprintf("query %q failed", selector), err)
	}
	handles := make([]ElementHandle, 0, len(elements))
	for _, el := range elements {
		handles = append(handles, &rodElementHandle{el: el, selector: selector})
	}
	return handles, nil
}

func (b *rodBrowser) Click(ctx context.Context, h ElementHandle) error {
	rh, ok := h.(*rodElementHandle)
	if !ok {
		return models.NewAsieError(models.ErrCodeFatal, "foreign element handle", nil)
	}
	if err := rh.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return models.NewAsieError(models.ErrCodeInteractionFailed, "click failed", err)
	}
	return nil
}

func (b *rodBrowser) Hover(ctx context.Context, h ElementHandle) error {
	rh, ok := h.(*rodElementHandle)
	if !ok {
		return models.NewAsieError(models.ErrCodeFatal, "foreign element handle", nil)
	}
	if err := rh.el.Hover(); err != nil {
		return models.NewAsieError(models.ErrCodeInteractionFailed, "hover failed", err)
	}
	return nil
}

func (b *rodBrowser) SelectByIndex(ctx context.Context, h ElementHandle, i int) error {
	rh, ok := h.(*rodElementHandle)
	if !ok {
		return models.NewAsieError(models.ErrCodeFatal, "foreign element handle", nil)
	}
	if _, err := rh.el.Eval(`(el, idx) => { el.selectedIndex = idx; el.dispatchEvent(new Event('input', {bubbles:true})); el.dispatchEvent(new Event('change', {bubbles:true})); }`, i); err != nil {
		return models.NewAsieError(models.ErrCodeInteractionFailed, "select by index failed", err)
	}
	return nil
}

func (b *rodBrowser) Type(ctx context.Context, h ElementHandle, s string) error {
	rh, ok := h.(*rodElementHandle)
	if !ok {
		return models.NewAsieError(models.ErrCodeFatal, "foreign element handle", nil)
	}
	if err := rh.el.Input(s); err != nil {
		return models.NewAsieError(models.ErrCodeInteractionFailed, "type failed", err)
	}
	return nil
}

func (b *rodBrowser) ScrollBy(ctx context.Context, dx, dy float64) error {
	if err := b.page.Mouse.Scroll(dx, dy, 0); err != nil {
		return models.NewAsieError(models.ErrCodeInteractionFailed, "scroll failed", err)
	}
	return nil
}

func (b *rodBrowser) WaitMs(ctx context.Context, ms int) error {
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *rodBrowser) OuterHTML(ctx context.Context) (string, error) {
	p := b.page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return "", models.NewAsieError(models.ErrCodeFatal, "failed to extract outer HTML", err)
	}
	return html, nil
}

func (b *rodBrowser) URL(ctx context.Context) (string, error) {
	p := b.page.Context(ctx)
	res, err := p.Eval(`() => window.location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// dismissSelectors lists generic dismiss-button patterns tried before the
// broader overlay sweep, per §4.1's "small list of generic dismissers".
var dismissSelectors = []string{
	`[aria-label="close"]`,
	`[aria-label="Close"]`,
	`.cookie-consent button`,
	`#onetrust-accept-btn-handle`,
	`[id*="accept-cookies"]`,
	`[class*="modal-close"]`,
}

func (b *rodBrowser) DismissPopups(ctx context.Context) {
	p := b.page.Context(ctx)

	for _, sel := range dismissSelectors {
		if el, err := p.Timeout(200 * time.Millisecond).Element(sel); err == nil && el != nil {
			_ = el.Click(proto.InputMouseButtonLeft, 1)
		}
	}

	_ = p.Keyboard.Type(input.Escape)

	const js = `() => {
		const els = document.querySelectorAll('*');
		for (const el of els) {
			const style = window.getComputedStyle(el);
			if (style.position === 'fixed' || style.position === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900 || style.zIndex === 'auto') el.remove();
			}
		}
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
			'[id*="cookie"]', '[id*="consent"]', '[id*="overlay"]',
			'[class*="popup"]', '[id*="popup"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const style = window.getComputedStyle(el);
				if (style.position === 'fixed' || style.position === 'sticky' || style.position === 'absolute') {
					el.remove();
				}
			});
		}
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}

func (b *rodBrowser) Close() error {
	if b.router != nil {
		_ = b.router.Stop()
	}
	_ = b.page.Navigate("about:blank")
	return b.page.Close()
}

func categorizeNavError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewAsieError(models.ErrCodeNavTimeout, "navigation timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewAsieError(models.ErrCodeNavTimeout, "navigation canceled", err)
	default:
		return models.NewAsieError(models.ErrCodeNavDenied, "navigation denied", err)
	}
}
