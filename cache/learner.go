package cache

import (
	"fmt"

	"github.com/use-agent/asie/models"
)

// Learner combines the hot and cold tiers behind the single interface
// the orchestrator consumes: try hot, fall through to cold, and keep
// both in sync on writes (§4.6).
type Learner struct {
	hot     *HotStore
	durable DurableStore
}

func NewLearner(hot *HotStore, durable DurableStore) *Learner {
	return &Learner{hot: hot, durable: durable}
}

func selectorsKey(domain models.Domain, field models.SemanticField) string {
	return fmt.Sprintf("%s|%s", domain, field)
}

// Lookup returns the best known locator for (domain, field), checking
// the hot tier first and falling through to the cold tier on miss.
func (l *Learner) Lookup(domain models.Domain, field models.SemanticField) (*models.LocatorRecord, bool) {
	if v, ok := l.hot.Get(NamespaceSelectors, selectorsKey(domain, field)); ok {
		if r, ok := v.(*models.LocatorRecord); ok {
			return r, true
		}
	}
	record, ok := l.durable.Get(domain, field)
	if ok {
		_ = l.hot.Setex(NamespaceSelectors, selectorsKey(domain, field), record, 0)
	}
	return record, ok
}

// Upsert writes through to the cold tier and refreshes the hot-tier
// cache entry.
func (l *Learner) Upsert(record *models.LocatorRecord) error {
	if err := l.durable.Upsert(record); err != nil {
		return err
	}
	_ = l.hot.Setex(NamespaceSelectors, selectorsKey(record.Domain, record.Field), record, 0)
	return nil
}

// RecordResult applies one success/failure observation and persists it,
// per §4.6 recordResult.
func (l *Learner) RecordResult(record *models.LocatorRecord, success bool) error {
	record.RecordResult(success)
	return l.Upsert(record)
}

// Cleanup runs the cold tier's age/confidence deactivation sweep.
func (l *Learner) Cleanup(ageDays int, minConfidence float64) int {
	return l.durable.Cleanup(ageDays, minConfidence)
}

// StoreStrategy persists a learned ExtractionStrategy through to the cold
// tier and refreshes the hot-tier cache entry, so it survives process
// restarts and is immediately visible to in-process callers (§3
// "ExtractionStrategy (persisted)", §4.7 step 1).
func (l *Learner) StoreStrategy(strategy *models.ExtractionStrategy) error {
	if err := l.durable.UpsertStrategy(strategy); err != nil {
		return err
	}
	return l.hot.Setex(NamespaceLearning, string(strategy.Domain), strategy, 0)
}

// LookupStrategy returns a previously learned strategy for domain,
// checking the hot tier first and falling through to the cold tier on
// miss, matching Lookup's two-tier read shape.
func (l *Learner) LookupStrategy(domain models.Domain) (*models.ExtractionStrategy, bool) {
	if v, ok := l.hot.Get(NamespaceLearning, string(domain)); ok {
		if strategy, ok := v.(*models.ExtractionStrategy); ok {
			return strategy, true
		}
	}
	strategy, ok := l.durable.GetStrategy(domain)
	if ok {
		_ = l.hot.Setex(NamespaceLearning, string(domain), strategy, 0)
	}
	return strategy, ok
}
