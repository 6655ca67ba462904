package models

import "testing"

func TestDiff_ClampedAndMonotone(t *testing.T) {
	base := PageStateSnapshot{URL: "https://x.test/p", PriceText: "$10.00"}

	oneChange := base
	oneChange.PriceText = "$12.00"

	twoChanges := oneChange
	twoChanges.URL = "https://x.test/p?variant=2"

	_, c1 := Diff(base, oneChange)
	_, c2 := Diff(base, twoChanges)

	if c1 <= 0 || c1 > 100 {
		t.Fatalf("single-change confidence out of range: %d", c1)
	}
	if c2 <= c1 {
		t.Fatalf("two-change confidence (%d) should exceed one-change (%d)", c2, c1)
	}
	if c2 > 100 {
		t.Fatalf("confidence exceeds clamp: %d", c2)
	}
}

func TestDiff_NoChange(t *testing.T) {
	snap := PageStateSnapshot{URL: "https://x.test/p", Title: "Widget"}
	changes, total := Diff(snap, snap)
	if len(changes) != 0 || total != 0 {
		t.Fatalf("identical snapshots produced changes=%v total=%d", changes, total)
	}
}

func TestDiff_AllTypesClampsAtHundred(t *testing.T) {
	before := PageStateSnapshot{
		URL:          "https://x.test/a",
		PriceText:    "$10.00",
		Images:       []ProductImage{{Src: "a.jpg"}},
		Availability: ButtonState{Text: "Add to cart"},
		SelectedVariants: map[string]string{"color": "Red"},
	}
	after := PageStateSnapshot{
		URL:          "https://x.test/b",
		PriceText:    "$20.00",
		Images:       []ProductImage{{Src: "b.jpg"}},
		Availability: ButtonState{Text: "Sold out", Disabled: true},
		SelectedVariants: map[string]string{"color": "Blue"},
	}
	changes, total := Diff(before, after)
	if len(changes) != 5 {
		t.Fatalf("got %d changes, want 5: %+v", len(changes), changes)
	}
	if total != 100 {
		t.Fatalf("total = %d, want 100 (clamped)", total)
	}
}
