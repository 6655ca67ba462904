package cache

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/asie/models"
)

// ReliabilitySummary aggregates a domain's locator reliability, used by
// §8's reporting surface.
type ReliabilitySummary struct {
	Domain          models.Domain
	TotalLocators   int
	ActiveLocators  int
	AverageConfidence float64
}

// DurableStore is the cold-tier contract (§6): document CRUD with
// upsert, bulk write, and aggregation by domain, plus CRUD for the
// persisted ExtractionStrategy artifact (§3 "ExtractionStrategy
// (persisted)", §4.7 step 1's cold-tier lookup).
type DurableStore interface {
	Upsert(record *models.LocatorRecord) error
	Get(domain models.Domain, field models.SemanticField) (*models.LocatorRecord, bool)
	BulkWrite(records []*models.LocatorRecord) error
	AggregateByDomain(domain models.Domain) ReliabilitySummary
	Cleanup(ageDays int, minConfidence float64) int

	UpsertStrategy(strategy *models.ExtractionStrategy) error
	GetStrategy(domain models.Domain) (*models.ExtractionStrategy, bool)
}

// key identifies a LocatorRecord by its unique key (domain, field,
// selector), per §6.
type key struct {
	domain   models.Domain
	field    models.SemanticField
	selector string
}

// jsonFileStore is the shipped default DurableStore: a mutex-guarded
// in-memory map with a periodic JSON-file flush, shaped like the
// teacher's cache.Cache (sync.RWMutex + map) but durable across process
// restarts since the cold tier must survive them (no teacher dependency
// targets document persistence, so this concern is necessarily built on
// the standard library's encoding/json + os, justified in the design
// ledger).
type jsonFileStore struct {
	mu         sync.RWMutex
	records    map[key]*models.LocatorRecord
	strategies map[models.Domain]*models.ExtractionStrategy
	path       string
}

// fileFormat is the on-disk shape of the JSON file: both persisted
// artifacts (LocatorRecords and ExtractionStrategies) live in one file
// since both are low-volume, single-process, CRUD-by-key data (§10.7).
type fileFormat struct {
	Records    []*models.LocatorRecord      `json:"records"`
	Strategies []*models.ExtractionStrategy `json:"strategies"`
}

// NewJSONFileStore loads any existing records at path (ignoring a
// missing file) and returns a store that flushes to it periodically and
// on Close.
func NewJSONFileStore(path string) (*jsonFileStore, error) {
	s := &jsonFileStore{
		records:    make(map[key]*models.LocatorRecord),
		strategies: make(map[models.Domain]*models.ExtractionStrategy),
		path:       path,
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	go s.flushLoop()
	return s, nil
}

func (s *jsonFileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range ff.Records {
		s.records[key{r.Domain, r.Field, r.Locator.Selector}] = r
	}
	for _, strat := range ff.Strategies {
		s.strategies[strat.Domain] = strat
	}
	return nil
}

func (s *jsonFileStore) flush() error {
	s.mu.RLock()
	ff := fileFormat{
		Records:    make([]*models.LocatorRecord, 0, len(s.records)),
		Strategies: make([]*models.ExtractionStrategy, 0, len(s.strategies)),
	}
	for _, r := range s.records {
		ff.Records = append(ff.Records, r)
	}
	for _, strat := range s.strategies {
		ff.Strategies = append(ff.Strategies, strat)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *jsonFileStore) flushLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		_ = s.flush()
	}
}

// Close writes the current records and strategies to the JSON file.
func (s *jsonFileStore) Close() error {
	return s.flush()
}

// Upsert increments an existing record's usage count, merges alternatives
// into it and refreshes its last-used time, per §4.6. Records carry no
// separate discovery counter.
func (s *jsonFileStore) Upsert(record *models.LocatorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{record.Domain, record.Field, record.Locator.Selector}
	if existing, ok := s.records[k]; ok {
		existing.UsageCount++
		existing.MergeAlternatives(record.Locator.Alternatives)
		existing.LastUsed = time.Now()
		return nil
	}
	s.records[k] = record
	return nil
}

// Get returns the highest-confidence active record for (domain, field),
// per §4.6's "reads return the highest-confidence active record".
func (s *jsonFileStore) Get(domain models.Domain, field models.SemanticField) (*models.LocatorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.LocatorRecord
	for k, r := range s.records {
		if k.domain != domain || k.field != field || !r.Active {
			continue
		}
		if best == nil || r.Confidence > best.Confidence || (r.Confidence == best.Confidence && r.UsageCount > best.UsageCount) {
			best = r
		}
	}
	return best, best != nil
}

func (s *jsonFileStore) BulkWrite(records []*models.LocatorRecord) error {
	for _, r := range records {
		if err := s.Upsert(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *jsonFileStore) AggregateByDomain(domain models.Domain) ReliabilitySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := ReliabilitySummary{Domain: domain}
	var confidenceSum float64
	for k, r := range s.records {
		if k.domain != domain {
			continue
		}
		summary.TotalLocators++
		confidenceSum += r.Confidence
		if r.Active {
			summary.ActiveLocators++
		}
	}
	if summary.TotalLocators > 0 {
		summary.AverageConfidence = confidenceSum / float64(summary.TotalLocators)
	}
	return summary
}

// Cleanup deactivates records whose last_used is older than ageDays or
// whose confidence is below minConfidence after sufficient observations
// (§4.6 cleanup), returning the count deactivated.
func (s *jsonFileStore) Cleanup(ageDays int, minConfidence float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -ageDays)
	deactivated := 0
	for _, r := range s.records {
		if !r.Active {
			continue
		}
		stale := r.LastUsed.Before(cutoff)
		lowConfidence := r.Confidence < minConfidence && (r.SuccessCount+r.FailureCount) >= 10
		if stale || lowConfidence {
			r.Active = false
			deactivated++
		}
	}
	return deactivated
}

// UpsertStrategy persists strategy, superseding (never mutating) any
// prior strategy for the same domain, per §3's ExtractionStrategy
// lifecycle.
func (s *jsonFileStore) UpsertStrategy(strategy *models.ExtractionStrategy) error {
	s.mu.Lock()
	s.strategies[strategy.Domain] = strategy
	s.mu.Unlock()
	return nil
}

// GetStrategy returns the persisted strategy for domain, if any.
func (s *jsonFileStore) GetStrategy(domain models.Domain) (*models.ExtractionStrategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strat, ok := s.strategies[domain]
	return strat, ok
}

// sortedKeys returns the stored record keys ordered by selector; nothing
// in the module calls it.
func (s *jsonFileStore) sortedKeys() []key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]key, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].selector < keys[j].selector
	})
	return keys
}
