package models

import "time"

// DiscoveryMethod records how a Locator was found, for provenance and for
// the adaptive-retry heuristics (§4.7) that prefer certain methods.
type DiscoveryMethod string

const (
	DiscoveryDOM        DiscoveryMethod = "dom"
	DiscoveryLabel      DiscoveryMethod = "label"
	DiscoveryARIA       DiscoveryMethod = "aria"
	DiscoveryDataAttr   DiscoveryMethod = "data-attr"
	DiscoveryStructural DiscoveryMethod = "structural"
	DiscoveryCached     DiscoveryMethod = "cached"
	DiscoveryLearned    DiscoveryMethod = "learned"
)

// Locator is an immutable candidate (or confirmed) element reference.
// Invariant: Selector must parse and must have resolved to >=1 element at
// least once before a Locator is constructed.
type Locator struct {
	Selector        string
	Alternatives    []string
	DiscoveryMethod DiscoveryMethod
	Category        FieldCategory
	DiscoveredAt    time.Time
}

// LocatorRecord is a persisted Locator plus aggregated reliability state.
// Invariants: Confidence is monotone in (SuccessCount-FailureCount);
// Active is forced false once Confidence < 0.30 after >=10 observations.
type LocatorRecord struct {
	Domain       Domain
	Field        SemanticField
	Locator      Locator
	Confidence   float64
	SuccessCount int
	FailureCount int
	UsageCount   int
	Active       bool
	CreatedAt    time.Time
	LastUsed     time.Time
	LastValidated time.Time
}

// confidenceStep is the fixed adjustment applied by RecordResult.
const confidenceStep = 0.1

// minObservationsForDeactivation is the observation floor below which a
// record is never deactivated purely for low confidence — it may simply
// not have been tried enough yet.
const minObservationsForDeactivation = 10

// deactivationThreshold is the confidence floor: Active is cleared once
// Confidence drops below this after enough observations.
const deactivationThreshold = 0.30

// NewLocatorRecord creates a fresh, active record for a newly discovered
// locator with neutral starting confidence.
func NewLocatorRecord(domain Domain, field SemanticField, loc Locator) *LocatorRecord {
	now := time.Now()
	return &LocatorRecord{
		Domain:     domain,
		Field:      field,
		Locator:    loc,
		Confidence: 0.5,
		Active:     true,
		CreatedAt:  now,
		LastUsed:   now,
	}
}

// RecordResult applies one success/failure observation, clamping confidence
// to [0,1] and deactivating the record once it drops below threshold after
// sufficient observations (§4.6 recordResult).
func (r *LocatorRecord) RecordResult(success bool) {
	r.UsageCount++
	r.LastUsed = time.Now()
	if success {
		r.SuccessCount++
		r.Confidence = clamp01(r.Confidence + confidenceStep)
	} else {
		r.FailureCount++
		r.Confidence = clamp01(r.Confidence - confidenceStep)
	}

	observations := r.SuccessCount + r.FailureCount
	if observations >= minObservationsForDeactivation && r.Confidence < deactivationThreshold {
		r.Active = false
	}
}

// MergeAlternatives performs a set-union of the record's alternatives with
// newAlts, used by Upsert when re-discovering an existing locator.
func (r *LocatorRecord) MergeAlternatives(newAlts []string) {
	seen := make(map[string]struct{}, len(r.Locator.Alternatives))
	for _, a := range r.Locator.Alternatives {
		seen[a] = struct{}{}
	}
	for _, a := range newAlts {
		if _, ok := seen[a]; !ok {
			r.Locator.Alternatives = append(r.Locator.Alternatives, a)
			seen[a] = struct{}{}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
