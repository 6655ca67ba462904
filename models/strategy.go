package models

import "time"

// InteractionRules records what a domain needed during learning, so a
// future extract() can skip rediscovering it.
type InteractionRules struct {
	RequiresJS          bool
	WaitForSelectors    []string
	InteractionRequired bool
}

// ExtractionStrategy is the per-domain artifact produced by the
// orchestrator once quality clears the threshold (or as a best-effort on
// budget exhaustion). It is never mutated in place — a higher-quality
// strategy supersedes it wholesale.
type ExtractionStrategy struct {
	Domain           Domain
	Selectors        map[SemanticField]Locator
	Platform         string
	Interaction      InteractionRules
	URLPatterns      []string
	Quality          float64
	LearnedAt        time.Time
	AttemptsRequired int
}

// Availability is the closed enum a ProductRecord reports for the
// availability field, normalized from whatever button-state text/aria the
// page exposed.
type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityUnknown    Availability = "unknown"
)

// Money is a normalized price: minor units (cents) plus ISO currency code,
// matching §8 scenario 5 ("$129.00" -> 12900 minor units, "USD").
type Money struct {
	MinorUnits int64
	Currency   string
}

// ProductRecord is the user-visible output of extract() (§6). It always
// carries a quality score and a list of missing fields rather than failing
// outright when some fields could not be resolved.
type ProductRecord struct {
	Domain        Domain
	SourceURL     string
	Title         string
	Price         *Money
	OriginalPrice *Money
	Images        []ProductImage
	Description   string
	Availability  Availability
	Brand         string
	Variants      *VariantModel
	SKU           string
	Rating        string
	Quality       float64
	MissingFields []SemanticField
	Timing        TimingBreakdown
}

// TimingBreakdown reports where extraction time went, mirroring the
// teacher's TimingInfo/ExtractTimingInfo shape generalized from
// scrape-pipeline phases to ASIE phases.
type TimingBreakdown struct {
	TotalMs      int64
	NavigationMs int64
	DiscoveryMs  int64
	ValidationMs int64
	SweepMs      int64
}
