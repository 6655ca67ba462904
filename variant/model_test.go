package variant

import (
	"strings"
	"testing"

	"github.com/use-agent/asie/models"
)

const sampleHTML = `
<html><body>
<div class="product">
  <h1>Widget</h1>
  <label>Choose color</label>
  <div class="swatches">
    <button value="red">Red</button>
    <button value="blue">Blue</button>
  </div>
  <div role="radiogroup" aria-label="Size">
    <input type="radio" value="s">Small</input>
    <input type="radio" value="m">Medium</input>
  </div>
</div>
</body></html>`

func TestBuildModel_DiscoversGroups(t *testing.T) {
	model, err := BuildModel(sampleHTML)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	if len(model.Groups) == 0 {
		t.Fatal("expected at least one discovered group")
	}
	for _, g := range model.Groups {
		if g.Confidence <= 0 || g.Confidence > 1 {
			t.Errorf("group %+v has confidence out of range", g)
		}
	}
}

func TestBuildModel_NoVariants(t *testing.T) {
	model, err := BuildModel(`<html><body><h1>Plain page</h1></body></html>`)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	if len(model.Groups) != 0 {
		t.Errorf("expected no groups for a variant-free page, got %d", len(model.Groups))
	}
}

func TestKeyFromText(t *testing.T) {
	tests := []struct {
		text string
		want models.VariantGroupKey
	}{
		{"Choose a color", models.GroupKeyColor},
		{"Select size", models.GroupKeySize},
		{"Pick a style", models.GroupKeyStyle},
		{"Random label", models.GroupKeyUnknown},
	}
	for _, tt := range tests {
		if got := keyFromText(tt.text); got != tt.want {
			t.Errorf("keyFromText(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDedupe_DropsSameSelector(t *testing.T) {
	candidates := []groupCandidate{
		{selector: "button.swatch", priority: 4},
		{selector: "button.swatch", priority: 1},
		{selector: "input.size", priority: 3},
	}
	out := dedupe(candidates)
	if len(out) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(out), out)
	}
}

func TestRank_OrdersByPriorityThenConfidence(t *testing.T) {
	candidates := []groupCandidate{
		{selector: "a", priority: 1, confidence: 0.9},
		{selector: "b", priority: 4, confidence: 0.5},
		{selector: "c", priority: 4, confidence: 0.9},
	}
	out := rank(candidates)
	if out[0].selector != "c" || out[1].selector != "b" || out[2].selector != "a" {
		var order []string
		for _, c := range out {
			order = append(order, c.selector)
		}
		t.Fatalf("got order %v, want [c b a]", strings.Join(order, ","))
	}
}
