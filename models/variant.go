package models

// VariantControlType is the closed set of UI controls a VariantGroup can
// be rendered as.
type VariantControlType string

const (
	ControlDropdown  VariantControlType = "dropdown"
	ControlRadio     VariantControlType = "radio"
	ControlButton    VariantControlType = "button"
	ControlSwatch    VariantControlType = "swatch"
	ControlAriaGroup VariantControlType = "aria-group"
)

// VariantGroupKey is the semantic role a group plays; "unknown" when no
// discovery layer could classify it.
type VariantGroupKey string

const (
	GroupKeyColor   VariantGroupKey = "color"
	GroupKeyStyle   VariantGroupKey = "style"
	GroupKeySize    VariantGroupKey = "size"
	GroupKeyUnknown VariantGroupKey = "unknown"
)

// sweepOrder is the fixed group-ordering rule for combinatorial sweeps:
// color first (it most often gates size availability), then style, size,
// then everything else in discovery order (§4.5).
var sweepOrder = map[VariantGroupKey]int{
	GroupKeyColor: 0,
	GroupKeyStyle: 1,
	GroupKeySize:  2,
}

// SweepRank returns the sort key used to order groups before a sweep.
func SweepRank(k VariantGroupKey) int {
	if r, ok := sweepOrder[k]; ok {
		return r
	}
	return len(sweepOrder)
}

// VariantOption is one selectable value within a VariantGroup. It never
// holds a live DOM handle: Index and the owning VariantModel's re-selector
// are used to re-resolve the element on demand, since interactions
// re-render the DOM and invalidate any cached handle (§9 "stale DOM
// handles").
type VariantOption struct {
	GroupIndex int // arena index of the owning VariantGroup
	Label      string
	Value      string
	Index      int
	Disabled   bool
	Selected   bool
}

// VariantGroup is a named set of mutually exclusive VariantOptions sharing
// a locator family. OptionIndices references into VariantModel.Options by
// index — the arena+index pattern that avoids a cyclic pointer graph
// between groups and options (§9).
type VariantGroup struct {
	Key            VariantGroupKey
	ControlType    VariantControlType
	Locator        Locator
	ContainerHint  string // class/id fragment that boosted confidence, if any
	OptionIndices  []int
	Priority       int     // discovery-layer priority, 1-4
	Confidence     float64
}

// VariantModel is the arena owning every group and option discovered for a
// domain. Groups and options reference each other purely by index; there
// are no back-references, so the model can be copied, serialized, and
// compared by value.
type VariantModel struct {
	Groups  []VariantGroup
	Options []VariantOption
}

// AddGroup appends a group and returns its arena index.
func (m *VariantModel) AddGroup(g VariantGroup) int {
	m.Groups = append(m.Groups, g)
	return len(m.Groups) - 1
}

// AddOption appends an option bound to groupIndex, updates the group's
// OptionIndices, and returns the option's arena index.
func (m *VariantModel) AddOption(groupIndex int, opt VariantOption) int {
	opt.GroupIndex = groupIndex
	m.Options = append(m.Options, opt)
	idx := len(m.Options) - 1
	m.Groups[groupIndex].OptionIndices = append(m.Groups[groupIndex].OptionIndices, idx)
	return idx
}

// GetOptions returns the live option list for a group — "live" in the
// sense that it is always recomputed from the current arena state rather
// than cached, matching §3's "a group always exposes a live getOptions()".
func (m *VariantModel) GetOptions(groupIndex int) []VariantOption {
	g := m.Groups[groupIndex]
	opts := make([]VariantOption, 0, len(g.OptionIndices))
	for _, idx := range g.OptionIndices {
		opts = append(opts, m.Options[idx])
	}
	return opts
}

// SortedGroupIndices returns group arena indices ordered per SweepRank,
// the order combinatorial sweeps must traverse groups in.
func (m *VariantModel) SortedGroupIndices() []int {
	idxs := make([]int, len(m.Groups))
	for i := range m.Groups {
		idxs[i] = i
	}
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && SweepRank(m.Groups[idxs[j-1]].Key) > SweepRank(m.Groups[idxs[j]].Key); j-- {
			idxs[j-1], idxs[j] = idxs[j], idxs[j-1]
		}
	}
	return idxs
}

// Combination is one leaf of a sweep: the option arena indices selected
// to reach it (each option's GroupIndex names its group), and whether
// availability was enabled there.
type Combination struct {
	Path                 []int // option arena indices, one per group in sweep order
	AvailabilityEnabled  bool
}

// SweepStats summarizes a completed sweep.
type SweepStats struct {
	Tested    int
	Available int
	Truncated bool // true iff the combo cap or group-option cap was hit
}

// SweepResult is C5's output: the combinations tested and their stats,
// from which HasDependency derives whether any inter-group dependency was
// observed (§4.5 derived invariant: dependency iff available < tested).
// The groups stay in the VariantModel the sweep was run over.
type SweepResult struct {
	Combinations []Combination
	Stats        SweepStats
}

// HasDependency reports the derived invariant from §4.5.
func (r SweepResult) HasDependency() bool {
	return r.Stats.Available < r.Stats.Tested
}
