package models

import "testing"

func TestLocatorRecord_RecordResult(t *testing.T) {
	tests := []struct {
		name       string
		successes  int
		failures   int
		wantActive bool
	}{
		{"all success stays active", 10, 0, true},
		{"alternating stays active", 5, 5, true},
		{"mostly failure deactivates after floor", 0, 10, false},
		{"few failures below floor stays active", 0, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLocatorRecord("example.com", FieldTitle, Locator{Selector: "h1"})
			for i := 0; i < tt.successes; i++ {
				r.RecordResult(true)
			}
			for i := 0; i < tt.failures; i++ {
				r.RecordResult(false)
			}
			if r.Confidence < 0 || r.Confidence > 1 {
				t.Fatalf("confidence out of range: %v", r.Confidence)
			}
			if r.SuccessCount+r.FailureCount > r.UsageCount {
				t.Fatalf("success+failure exceeds usage: %d+%d > %d", r.SuccessCount, r.FailureCount, r.UsageCount)
			}
			if r.Active != tt.wantActive {
				t.Errorf("active = %v, want %v (confidence=%v)", r.Active, tt.wantActive, r.Confidence)
			}
			if r.Active && r.Confidence < deactivationThreshold {
				t.Errorf("active record has confidence %v below deactivation threshold", r.Confidence)
			}
		})
	}
}

func TestLocatorRecord_RecordResultBoundedAdjustment(t *testing.T) {
	r := NewLocatorRecord("example.com", FieldPrice, Locator{Selector: ".price"})
	before := r.Confidence
	r.RecordResult(true)
	r.RecordResult(false)
	delta := r.Confidence - before
	if delta < 0 {
		delta = -delta
	}
	if delta > 0.2 {
		t.Errorf("|delta confidence| = %v, want <= 0.2", delta)
	}
}

func TestLocatorRecord_MergeAlternatives(t *testing.T) {
	r := NewLocatorRecord("example.com", FieldTitle, Locator{
		Selector:     "h1",
		Alternatives: []string{".product-title"},
	})
	r.MergeAlternatives([]string{".product-title", "#title"})

	if len(r.Locator.Alternatives) != 2 {
		t.Fatalf("got %d alternatives, want 2 (dedup expected): %v", len(r.Locator.Alternatives), r.Locator.Alternatives)
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.5, 0.5},
		{1.5, 1},
	}
	for _, tt := range tests {
		if got := clamp01(tt.in); got != tt.want {
			t.Errorf("clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
