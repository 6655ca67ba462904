package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/asie/browser"
	"github.com/use-agent/asie/cache"
	"github.com/use-agent/asie/candidates"
	"github.com/use-agent/asie/config"
	"github.com/use-agent/asie/content"
	"github.com/use-agent/asie/models"
	"github.com/use-agent/asie/quickcheck"
	"github.com/use-agent/asie/sampler"
	"github.com/use-agent/asie/validator"
	"github.com/use-agent/asie/variant"
)

// fieldWeight implements §4.7c/§8's quality-scoring weights: required
// fields are worth twice an optional field and both scale to a 0-100
// per-field contribution.
func fieldWeight(field models.SemanticField) float64 {
	for _, rf := range models.RequiredFields {
		if rf == field {
			return 1.0
		}
	}
	return 0.5
}

func allFields() []models.SemanticField {
	fields := make([]models.SemanticField, 0, len(models.RequiredFields)+len(models.OptionalFields))
	fields = append(fields, models.RequiredFields...)
	fields = append(fields, models.OptionalFields...)
	return fields
}

// Orchestrator is the Strategy Orchestrator (C7): the learn -> test ->
// improve loop described in §4.7, wiring together every other component.
type Orchestrator struct {
	cfg      config.Config
	launcher *browser.Launcher
	pool     *SessionPool
	rate     *DomainRateLimiter
	finder   *candidates.Finder
	valid    *validator.Validator
	sample   *sampler.Sampler
	learner  *cache.Learner
	quick    *quickcheck.Fetcher
	desc     *content.DescriptionExtractor
}

// New wires an Orchestrator from its already-constructed dependencies.
// launcher and learner are owned by the caller (typically cmd/asie) and
// outlive any single LearnStrategy/Extract call.
func New(cfg config.Config, launcher *browser.Launcher, learner *cache.Learner) (*Orchestrator, error) {
	sampl := sampler.New()

	pool, err := NewSessionPool(cfg.AdaptivePool,
		func() (int64, any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Orchestrator.NavTimeout)
			defer cancel()
			sess, err := launcher.NewSession(ctx, true)
			if err != nil {
				return 0, nil, err
			}
			return time.Now().UnixNano(), sess, nil
		},
		func(_ int64, session any) {
			if b, ok := session.(browser.Browser); ok {
				_ = b.Close()
			}
		},
	)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:      cfg,
		launcher: launcher,
		pool:     pool,
		rate:     NewDomainRateLimiter(cfg.Rate),
		finder:   candidates.New(),
		valid:    validator.New(sampl),
		sample:   sampl,
		learner:  learner,
		quick:    quickcheck.NewFetcher(),
		desc:     content.NewDescriptionExtractor(),
	}, nil
}

// Close releases the session pool.
func (o *Orchestrator) Close() {
	o.pool.Stop()
}

// discovered is one field's best-known locator plus the confidence C4
// assigned it, carried through an attempt so the quality pass and the
// persisted strategy agree on what was actually validated.
type discovered struct {
	locator    models.Locator
	confidence float64
	validated  bool
}

// LearnStrategy runs the learn -> test -> improve loop for domain against
// sampleURLs (§4.7). It always returns the best strategy found, even below
// threshold, honoring §7's "the loop as a whole always returns the best
// strategy found."
func (o *Orchestrator) LearnStrategy(ctx context.Context, domain models.Domain, sampleURLs []string, opts models.LearnOptions) (*models.ExtractionStrategy, error) {
	if len(sampleURLs) == 0 {
		return nil, models.NewAsieError(models.ErrCodeFatal, "learnStrategy requires at least one sample URL", nil)
	}

	threshold := opts.QualityThreshold
	if threshold == 0 {
		threshold = o.cfg.Orchestrator.QualityThreshold
	}

	cached, hasCached := o.learner.LookupStrategy(domain)
	if hasCached && cached.Quality >= threshold {
		slog.Info("orchestrator: cold-tier strategy satisfies threshold, skipping discovery", "domain", domain, "quality", cached.Quality)
		return cached, nil
	}

	// §8: max_attempts=0 is a literal "cache-only" request — return the
	// cached strategy (regardless of its quality) or nil, never navigate.
	if opts.MaxAttempts == 0 {
		if hasCached {
			return cached, nil
		}
		return nil, nil
	}
	maxAttempts := opts.MaxAttempts

	sampleSize := opts.SampleSize
	if sampleSize == 0 {
		sampleSize = o.cfg.Orchestrator.SampleSize
	}
	if sampleSize > len(sampleURLs) {
		sampleSize = len(sampleURLs)
	}

	var best *models.ExtractionStrategy
	var lastDiscovered map[models.SemanticField]discovered
	var lastRawHTML string

	for attempts := 0; attempts < maxAttempts; attempts++ {
		if best != nil && best.Quality >= threshold {
			break
		}

		found, rawHTML, err := o.runDiscoveryAttempt(ctx, domain, sampleURLs[0], lastDiscovered, lastRawHTML)
		if err != nil {
			slog.Warn("orchestrator: discovery attempt failed", "domain", domain, "attempt", attempts, "error", err)
			continue
		}
		lastDiscovered = found
		lastRawHTML = rawHTML

		quality, err := o.scoreStrategy(ctx, domain, found, sampleURLs[:sampleSize])
		if err != nil {
			slog.Warn("orchestrator: scoring failed", "domain", domain, "attempt", attempts, "error", err)
			continue
		}

		if best == nil || quality > best.Quality {
			best = o.buildStrategy(domain, found, quality, attempts+1)
		}
	}

	if best == nil {
		return nil, models.NewAsieError(models.ErrCodeFatal, "learnStrategy: every discovery attempt failed", nil)
	}

	if best.Quality > 0 {
		if err := o.persistStrategy(best); err != nil {
			slog.Warn("orchestrator: failed to persist strategy", "domain", domain, "error", err)
		}
	}

	return best, nil
}

func (o *Orchestrator) buildStrategy(domain models.Domain, found map[models.SemanticField]discovered, quality float64, attemptsRequired int) *models.ExtractionStrategy {
	selectors := make(map[models.SemanticField]models.Locator, len(found))
	for field, d := range found {
		if d.validated {
			selectors[field] = d.locator
		}
	}
	return &models.ExtractionStrategy{
		Domain:           domain,
		Selectors:        selectors,
		Quality:          quality,
		LearnedAt:        time.Now(),
		AttemptsRequired: attemptsRequired,
	}
}

func (o *Orchestrator) persistStrategy(strategy *models.ExtractionStrategy) error {
	if err := o.learner.StoreStrategy(strategy); err != nil {
		return err
	}
	for field, loc := range strategy.Selectors {
		record := models.NewLocatorRecord(strategy.Domain, field, loc)
		if err := o.learner.RecordResult(record, true); err != nil {
			return err
		}
	}
	return nil
}

// runDiscoveryAttempt opens a session, navigates to url, and runs
// candidates -> validator (-> variant sweep for options-category fields)
// for every field, per §4.7 step 3b. priorFound/priorRawHTML seed the
// adaptive-retry extra-candidate search for fields that failed last time.
func (o *Orchestrator) runDiscoveryAttempt(ctx context.Context, domain models.Domain, url string, priorFound map[models.SemanticField]discovered, priorRawHTML string) (map[models.SemanticField]discovered, string, error) {
	if err := o.rate.Wait(ctx, domain); err != nil {
		return nil, "", err
	}

	handle, err := o.pool.Get()
	if err != nil {
		return nil, "", err
	}
	b, ok := handle.Session.(browser.Browser)
	if !ok {
		o.pool.Put(handle, false)
		return nil, "", models.NewAsieError(models.ErrCodeFatal, "pooled session is not a Browser", nil)
	}

	success := true
	defer func() { o.pool.Put(handle, success) }()

	navCtx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.NavTimeout)
	defer cancel()
	if err := b.Navigate(navCtx, url, browser.WaitUntilNetworkIdle, o.cfg.Orchestrator.NavTimeout); err != nil {
		success = false
		return nil, "", err
	}
	b.DismissPopups(ctx)

	rawHTML, err := b.OuterHTML(ctx)
	if err != nil {
		success = false
		return nil, "", err
	}

	found := make(map[models.SemanticField]discovered)

	workingLocators := map[models.SemanticField]models.Locator{}
	for field, d := range priorFound {
		if d.validated {
			workingLocators[field] = d.locator
		}
	}

	for _, field := range allFields() {
		if field == models.FieldVariants {
			// Variants have no text/price/image-shaped candidate: C5
			// builds and validates its own model directly (below),
			// rather than going through C3's per-field heuristics.
			continue
		}

		cands, err := o.finder.Find(rawHTML, field)
		if err != nil {
			slog.Debug("orchestrator: candidate search failed", "field", field, "error", err)
			continue
		}

		if len(cands) == 0 && priorRawHTML != "" {
			if prior, ok := priorFound[field]; !ok || !prior.validated {
				var priorLocator models.Locator
				if ok {
					priorLocator = prior.locator
				}
				cands = o.retryCandidates(ctx, b, priorRawHTML, workingLocators, field, priorLocator)
			}
		}

		best := o.validateTop(ctx, b, field, cands, o.cfg.Orchestrator.ValidationElements)
		if best != nil {
			found[field] = *best
		}
	}

	if d, err := o.discoverVariants(ctx, b, rawHTML); err != nil {
		slog.Debug("orchestrator: variant discovery failed", "domain", domain, "error", err)
	} else if d != nil {
		found[models.FieldVariants] = *d
	}

	return found, rawHTML, nil
}

// discoverVariants builds the variant model (C5) and, if any groups were
// found, sweeps it for availability and records the top-ranked group's
// option selector as the field's locator so it participates in quality
// scoring like any other field.
func (o *Orchestrator) discoverVariants(ctx context.Context, b browser.Browser, rawHTML string) (*discovered, error) {
	model, err := variant.BuildModel(rawHTML)
	if err != nil {
		return nil, err
	}
	if len(model.Groups) == 0 {
		return nil, nil
	}

	sel := variant.NewSelector(b, o.sample)
	sweeper := variant.NewSweeper(sel, o.isAvailable, o.cfg.Sweep)
	result, err := sweeper.Enumerate(ctx, b, model)
	if err != nil {
		return nil, err
	}
	slog.Debug("orchestrator: variant sweep complete",
		"groups", len(model.Groups),
		"combinations", len(result.Combinations),
		"tested", result.Stats.Tested,
		"available", result.Stats.Available,
		"dependency", result.HasDependency())

	top := model.Groups[0]
	return &discovered{
		locator:    top.Locator,
		confidence: top.Confidence,
		validated:  true,
	}, nil
}

// retryCandidates implements §4.7's adaptive retry mini-algorithm: derive
// extra candidate selectors for a field that candidate discovery missed,
// using whichever method the available evidence supports. Both live
// methods poke the current session: on an observed change,
// interaction_discovery re-derives candidates from the page's new state,
// and alternative_interactions offers the prior locator's selector again.
func (o *Orchestrator) retryCandidates(ctx context.Context, b browser.Browser, rawHTML string, workingLocators map[models.SemanticField]models.Locator, field models.SemanticField, priorLocator models.Locator) []candidates.Candidate {
	method := ChooseRetryMethod(rawHTML, workingLocators, field)
	slog.Debug("orchestrator: adaptive retry", "field", field, "method", method)

	switch method {
	case RetryProximitySearch:
		selectors := ProximitySearch(rawHTML, workingLocators, field)
		out := make([]candidates.Candidate, 0, len(selectors))
		for _, sel := range selectors {
			out = append(out, candidates.Candidate{Selector: sel, Confidence: 0.4, Reason: string(RetryProximitySearch)})
		}
		return out

	case RetryInteractionDiscovery:
		changed, err := InteractionDiscovery(ctx, b, o.changeCounter(ctx, b))
		if err != nil || !changed {
			return nil
		}
		updatedHTML, err := b.OuterHTML(ctx)
		if err != nil {
			return nil
		}
		cands, err := o.finder.Find(updatedHTML, field)
		if err != nil {
			return nil
		}
		for i := range cands {
			cands[i].Reason = string(RetryInteractionDiscovery)
		}
		return cands

	default: // RetryAlternativeInteractions
		if priorLocator.Selector == "" {
			return nil
		}
		changed, err := AlternativeInteractions(ctx, b, priorLocator.Selector, o.changeCounter(ctx, b))
		if err != nil || !changed {
			return nil
		}
		return []candidates.Candidate{{Selector: priorLocator.Selector, Confidence: 0.35, Reason: string(RetryAlternativeInteractions)}}
	}
}

// changeCounter returns a cheap before/after DOM-change oracle for the
// adaptive retry methods: calling it diffs the current page state against
// the state captured when changeCounter was constructed, returning the
// Diff confidence score as a monotonic "did something change" signal.
func (o *Orchestrator) changeCounter(ctx context.Context, b browser.Browser) func() (int, error) {
	baseline, baseErr := o.sample.Capture(ctx, b)
	return func() (int, error) {
		if baseErr != nil {
			return 0, baseErr
		}
		after, err := o.sample.Capture(ctx, b)
		if err != nil {
			return 0, err
		}
		_, score := o.sample.Diff(baseline, after)
		return score, nil
	}
}

// validateTop runs C4 against up to maxElements of cands, keeping the
// highest-confidence validated result, per §4.4/§4.7 step 3b.
func (o *Orchestrator) validateTop(ctx context.Context, b browser.Browser, field models.SemanticField, cands []candidates.Candidate, maxElements int) *discovered {
	if len(cands) > maxElements {
		cands = cands[:maxElements]
	}

	var best *discovered
	for _, c := range cands {
		loc := models.Locator{
			Selector:        c.Selector,
			DiscoveryMethod: models.DiscoveryDOM,
			Category:        field.Category(),
			DiscoveredAt:    time.Now(),
		}
		result, err := o.valid.Validate(ctx, b, field, loc, c.Confidence)
		if err != nil {
			slog.Debug("orchestrator: validation error", "field", field, "selector", c.Selector, "error", err)
			continue
		}
		if !result.Validated() {
			continue
		}
		if best == nil || result.Confidence > best.confidence {
			best = &discovered{locator: loc, confidence: result.Confidence, validated: true}
		}
		if result.ShortCircuit() {
			break
		}
	}
	return best
}

func (o *Orchestrator) isAvailable(ctx context.Context, b browser.Browser) (bool, error) {
	snap, err := o.sample.Capture(ctx, b)
	if err != nil {
		return false, err
	}
	return !snap.Availability.Disabled && !snap.Availability.AriaDisabled, nil
}

// scoreStrategy evaluates found's locators against up to len(urls) sample
// pages, per §4.7 step 3c's quality formula: URL score is
// (sum-of-field-contributions / max-possible) * 100, final quality is the
// mean across URLs.
func (o *Orchestrator) scoreStrategy(ctx context.Context, domain models.Domain, found map[models.SemanticField]discovered, urls []string) (float64, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	maxPossible := 0.0
	for _, field := range allFields() {
		maxPossible += fieldWeight(field) * 100
	}

	var total float64
	for _, url := range urls {
		score, err := o.scoreURL(ctx, domain, found, url, maxPossible)
		if err != nil {
			slog.Debug("orchestrator: scoring URL failed", "url", url, "error", err)
			continue
		}
		total += score
	}
	return total / float64(len(urls)), nil
}

func (o *Orchestrator) scoreURL(ctx context.Context, domain models.Domain, found map[models.SemanticField]discovered, url string, maxPossible float64) (float64, error) {
	if err := o.rate.Wait(ctx, domain); err != nil {
		return 0, err
	}

	handle, err := o.pool.Get()
	if err != nil {
		return 0, err
	}
	b, ok := handle.Session.(browser.Browser)
	if !ok {
		o.pool.Put(handle, false)
		return 0, models.NewAsieError(models.ErrCodeFatal, "pooled session is not a Browser", nil)
	}

	success := true
	defer func() { o.pool.Put(handle, success) }()

	navCtx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.NavTimeout)
	defer cancel()
	if err := b.Navigate(navCtx, url, browser.WaitUntilNetworkIdle, o.cfg.Orchestrator.NavTimeout); err != nil {
		success = false
		return 0, err
	}
	b.DismissPopups(ctx)

	var sum float64
	for field, d := range found {
		handles, err := b.Query(ctx, d.locator.Selector)
		if err != nil || len(handles) == 0 {
			continue
		}
		sum += fieldWeight(field) * 100
	}

	return math.Min(100, (sum/maxPossible)*100), nil
}

// QuickCheck performs the price/availability-only probe (§6), trying a
// pure-HTTP fetch first and escalating to a full Browser Session only if
// the fast path can't resolve the fields (§10.2's expansion).
func (o *Orchestrator) QuickCheck(ctx context.Context, url string) (*models.QuickCheckResult, error) {
	qcCtx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.QuickCheckTimeout)
	defer cancel()

	result, err := o.quick.Check(qcCtx, url)
	if err == nil && result != nil && (result.Price != nil || result.Availability != nil) {
		return result, nil
	}

	handle, perr := o.pool.Get()
	if perr != nil {
		return result, perr
	}
	b, ok := handle.Session.(browser.Browser)
	if !ok {
		o.pool.Put(handle, false)
		return result, models.NewAsieError(models.ErrCodeFatal, "pooled session is not a Browser", nil)
	}
	success := true
	defer func() { o.pool.Put(handle, success) }()

	navCtx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.NavTimeout)
	defer cancel()
	if err := b.Navigate(navCtx, url, browser.WaitUntilNetworkIdle, o.cfg.Orchestrator.NavTimeout); err != nil {
		success = false
		return result, err
	}

	snap, err := o.sample.Capture(ctx, b)
	if err != nil {
		success = false
		return result, err
	}

	out := &models.QuickCheckResult{}
	if snap.PriceText != "" {
		out.Price = parsePriceText(snap.PriceText)
	}
	avail := models.AvailabilityUnknown
	if !snap.Availability.Disabled && !snap.Availability.AriaDisabled {
		avail = models.AvailabilityInStock
	} else if snap.Availability.Text != "" {
		avail = models.AvailabilityOutOfStock
	}
	out.Availability = &avail
	return out, nil
}

// parsePriceText parses sampled price text on the browser-backed
// quickCheck escalation path by delegating to quickcheck.ParseMoneyText,
// the same parser the fast-path HTTP probe uses.
func parsePriceText(s string) *models.Money {
	money := quickcheck.ParseMoneyText(s)
	return money
}

// Extract performs a full extraction using the current strategy, learning
// one if absent (§6's extract contract).
func (o *Orchestrator) Extract(ctx context.Context, url string, opts models.ExtractOptions) (*models.ProductRecord, error) {
	domain, err := domainFromURL(url)
	if err != nil {
		return nil, models.NewAsieError(models.ErrCodeFatal, "invalid URL", err)
	}

	if opts.Timeout > 0 {
		var cancelAll context.CancelFunc
		ctx, cancelAll = context.WithTimeout(ctx, opts.Timeout)
		defer cancelAll()
	}

	strategy, ok := o.learner.LookupStrategy(domain)
	if !ok {
		strategy, err = o.LearnStrategy(ctx, domain, []string{url}, models.LearnOptions{MaxAttempts: o.cfg.Orchestrator.MaxAttempts})
		if err != nil {
			return nil, err
		}
	}

	start := time.Now()
	handle, err := o.pool.Get()
	if err != nil {
		return nil, err
	}
	b, ok2 := handle.Session.(browser.Browser)
	if !ok2 {
		o.pool.Put(handle, false)
		return nil, models.NewAsieError(models.ErrCodeFatal, "pooled session is not a Browser", nil)
	}
	success := true
	defer func() { o.pool.Put(handle, success) }()

	navStart := time.Now()
	navCtx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.NavTimeout)
	defer cancel()
	if err := b.Navigate(navCtx, url, browser.WaitUntilNetworkIdle, o.cfg.Orchestrator.NavTimeout); err != nil {
		success = false
		return nil, err
	}
	b.DismissPopups(ctx)
	navMs := time.Since(navStart).Milliseconds()

	record := &models.ProductRecord{Domain: domain, SourceURL: url}
	var missing []models.SemanticField
	var fieldSum float64
	maxPossible := 0.0
	for _, field := range allFields() {
		maxPossible += fieldWeight(field) * 100
	}

	for field, loc := range strategy.Selectors {
		handles, err := b.Query(ctx, loc.Selector)
		if err != nil || len(handles) == 0 {
			missing = append(missing, field)
			continue
		}
		fieldSum += fieldWeight(field) * 100
		o.populateField(record, field, loc, b)
	}

	for _, field := range allFields() {
		if _, ok := strategy.Selectors[field]; !ok {
			missing = append(missing, field)
		}
	}

	record.MissingFields = missing
	record.Quality = math.Min(100, (fieldSum/maxPossible)*100)
	record.Timing = models.TimingBreakdown{
		TotalMs:      time.Since(start).Milliseconds(),
		NavigationMs: navMs,
	}
	return record, nil
}

func domainFromURL(rawURL string) (models.Domain, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return models.NewDomain(u.Hostname()), nil
}

// populateField fills one ProductRecord field by sampling the page state,
// reusing the Sampler rather than re-deriving per-field extraction logic.
func (o *Orchestrator) populateField(record *models.ProductRecord, field models.SemanticField, loc models.Locator, b browser.Browser) {
	snap, err := o.sample.Capture(context.Background(), b)
	if err != nil {
		return
	}
	switch field {
	case models.FieldTitle:
		record.Title = snap.Title
	case models.FieldPrice:
		record.Price = quickcheck.ParseMoneyText(snap.PriceText)
	case models.FieldImages:
		record.Images = snap.Images
	case models.FieldAvailability:
		if !snap.Availability.Disabled && !snap.Availability.AriaDisabled {
			record.Availability = models.AvailabilityInStock
		} else {
			record.Availability = models.AvailabilityOutOfStock
		}
	case models.FieldDescription:
		html, err := b.OuterHTML(context.Background())
		if err == nil {
			if fragment, ok := extractFragment(html, loc.Selector); ok {
				html = fragment
			}
			record.Description = o.desc.Extract(html, snap.URL)
		}
	}
}

// extractFragment isolates the outer HTML of the first element matching
// selector within a serialized page, so DescriptionExtractor.Extract only
// ever sees the located description element's own markup rather than the
// whole document.
func extractFragment(pageHTML, selector string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", false
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	out, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", false
	}
	return out, true
}
