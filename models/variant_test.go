package models

import "testing"

func TestVariantModel_ArenaIndexing(t *testing.T) {
	var m VariantModel

	colorIdx := m.AddGroup(VariantGroup{Key: GroupKeyColor, ControlType: ControlSwatch})
	m.AddOption(colorIdx, VariantOption{Label: "Red", Value: "red", Index: 0})
	m.AddOption(colorIdx, VariantOption{Label: "Blue", Value: "blue", Index: 1})

	sizeIdx := m.AddGroup(VariantGroup{Key: GroupKeySize, ControlType: ControlDropdown})
	m.AddOption(sizeIdx, VariantOption{Label: "S", Value: "s", Index: 0})

	colorOpts := m.GetOptions(colorIdx)
	if len(colorOpts) != 2 {
		t.Fatalf("got %d color options, want 2", len(colorOpts))
	}
	for _, opt := range colorOpts {
		if opt.Index < 0 || opt.Index >= len(m.GetOptions(opt.GroupIndex)) {
			t.Errorf("option index %d out of range for group %d", opt.Index, opt.GroupIndex)
		}
		if opt.GroupIndex != colorIdx {
			t.Errorf("option.GroupIndex = %d, want %d", opt.GroupIndex, colorIdx)
		}
	}

	sizeOpts := m.GetOptions(sizeIdx)
	if len(sizeOpts) != 1 {
		t.Fatalf("got %d size options, want 1", len(sizeOpts))
	}
}

func TestVariantModel_DistinctValueLabelPairs(t *testing.T) {
	var m VariantModel
	idx := m.AddGroup(VariantGroup{Key: GroupKeyColor})
	m.AddOption(idx, VariantOption{Label: "Red", Value: "red"})
	m.AddOption(idx, VariantOption{Label: "Blue", Value: "blue"})

	seen := make(map[string]bool)
	for _, opt := range m.GetOptions(idx) {
		key := opt.Value + "|" + opt.Label
		if seen[key] {
			t.Fatalf("duplicate (value,label) pair: %s", key)
		}
		seen[key] = true
	}
}

func TestVariantModel_SortedGroupIndices(t *testing.T) {
	var m VariantModel
	sizeIdx := m.AddGroup(VariantGroup{Key: GroupKeySize})
	unknownIdx := m.AddGroup(VariantGroup{Key: GroupKeyUnknown})
	colorIdx := m.AddGroup(VariantGroup{Key: GroupKeyColor})
	styleIdx := m.AddGroup(VariantGroup{Key: GroupKeyStyle})

	order := m.SortedGroupIndices()
	want := []int{colorIdx, styleIdx, sizeIdx, unknownIdx}
	if len(order) != len(want) {
		t.Fatalf("got %d indices, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d (full order %v)", i, order[i], want[i], order)
		}
	}
}

func TestSweepResult_HasDependency(t *testing.T) {
	tests := []struct {
		name      string
		tested    int
		available int
		want      bool
	}{
		{"all available no dependency", 3, 3, false},
		{"one unavailable has dependency", 6, 5, true},
		{"zero tested no dependency", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := SweepResult{Stats: SweepStats{Tested: tt.tested, Available: tt.available}}
			if got := r.HasDependency(); got != tt.want {
				t.Errorf("HasDependency() = %v, want %v", got, tt.want)
			}
		})
	}
}
