package orchestrator

import (
	"testing"

	"github.com/use-agent/asie/models"
)

func TestFieldWeight(t *testing.T) {
	cases := []struct {
		field models.SemanticField
		want  float64
	}{
		{models.FieldTitle, 1.0},
		{models.FieldPrice, 1.0},
		{models.FieldImages, 1.0},
		{models.FieldDescription, 0.5},
		{models.FieldVariants, 0.5},
		{models.FieldBrand, 0.5},
		{models.FieldAvailability, 0.5},
		{models.FieldSKU, 0.5},
	}
	for _, c := range cases {
		if got := fieldWeight(c.field); got != c.want {
			t.Errorf("fieldWeight(%s) = %v, want %v", c.field, got, c.want)
		}
	}
}

func TestAllFields(t *testing.T) {
	fields := allFields()
	want := len(models.RequiredFields) + len(models.OptionalFields)
	if len(fields) != want {
		t.Fatalf("allFields() returned %d fields, want %d", len(fields), want)
	}
	seen := make(map[models.SemanticField]bool)
	for _, f := range fields {
		if seen[f] {
			t.Errorf("allFields() returned duplicate field %s", f)
		}
		seen[f] = true
	}
	for _, rf := range models.RequiredFields {
		if !seen[rf] {
			t.Errorf("allFields() missing required field %s", rf)
		}
	}
}
