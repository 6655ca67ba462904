package models

import "time"

// ExtractOptions parameterizes extract() (§6).
type ExtractOptions struct {
	Timeout time.Duration // bounds the whole Extract call; 0 means no bound beyond ctx
	Stealth bool
}

// LearnOptions parameterizes learnStrategy() (§6).
type LearnOptions struct {
	MaxAttempts      int // 0 means cache-only: never navigate, return cached strategy or nil (§8)
	QualityThreshold float64
	SampleSize       int
}

// QuickCheckResult is the (possibly partial) output of quickCheck() (§6).
// Unresolved fields are left nil/zero rather than failing the call.
type QuickCheckResult struct {
	Price        *Money
	Availability *Availability
	StockCount   *int
}
