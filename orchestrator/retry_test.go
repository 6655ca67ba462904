package orchestrator

import (
	"testing"

	"github.com/use-agent/asie/models"
)

func TestChooseRetryMethodPrefersProximitySearch(t *testing.T) {
	working := map[models.SemanticField]models.Locator{
		models.FieldTitle: {Selector: "h1.title"},
	}
	got := ChooseRetryMethod("<html></html>", working, models.FieldPrice)
	if got != RetryProximitySearch {
		t.Fatalf("ChooseRetryMethod = %s, want %s", got, RetryProximitySearch)
	}
}

func TestChooseRetryMethodFindsExpandToggle(t *testing.T) {
	html := `<html><body><button>Show more details</button></body></html>`
	got := ChooseRetryMethod(html, nil, models.FieldDescription)
	if got != RetryInteractionDiscovery {
		t.Fatalf("ChooseRetryMethod = %s, want %s", got, RetryInteractionDiscovery)
	}
}

func TestChooseRetryMethodFallsBackToAlternativeInteractions(t *testing.T) {
	html := `<html><body><div>nothing interactive here</div></body></html>`
	got := ChooseRetryMethod(html, nil, models.FieldPrice)
	if got != RetryAlternativeInteractions {
		t.Fatalf("ChooseRetryMethod = %s, want %s", got, RetryAlternativeInteractions)
	}
}

func TestProximitySearchFindsNearbyPriceCandidate(t *testing.T) {
	html := `<html><body>
		<div id="buybox">
			<h1 class="title">Widget</h1>
			<span class="price-amount">$19.99</span>
		</div>
	</body></html>`
	working := map[models.SemanticField]models.Locator{
		models.FieldTitle: {Selector: ".title"},
	}
	found := ProximitySearch(html, working, models.FieldPrice)
	if len(found) == 0 {
		t.Fatalf("expected ProximitySearch to find at least one candidate near the working title locator")
	}
}

func TestProximitySearchUnknownFieldReturnsNil(t *testing.T) {
	working := map[models.SemanticField]models.Locator{
		models.FieldTitle: {Selector: ".title"},
	}
	found := ProximitySearch("<html></html>", working, models.FieldRating)
	if found != nil {
		t.Fatalf("expected nil for a field with no tag hint, got %v", found)
	}
}
