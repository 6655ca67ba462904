package variant

import (
	"context"

	"github.com/use-agent/asie/browser"
	"github.com/use-agent/asie/config"
	"github.com/use-agent/asie/models"
)

// Sweeper performs the combinatorial sweep (`enumerate`, §4.5): a
// depth-first traversal across groups, re-applying the path from the
// root at each leaf to tolerate re-renders, recording whether the
// add-to-cart control is enabled at each combination.
type Sweeper struct {
	selector       *Selector
	isAvailable    func(ctx context.Context, b browser.Browser) (bool, error)
	groupOptionCap int
	comboCap       int
}

func NewSweeper(sel *Selector, isAvailable func(ctx context.Context, b browser.Browser) (bool, error), cfg config.SweepConfig) *Sweeper {
	return &Sweeper{
		selector:       sel,
		isAvailable:    isAvailable,
		groupOptionCap: cfg.GroupOptionCap,
		comboCap:       cfg.ComboCap,
	}
}

// Enumerate sweeps model's groups in sweep order (§4.5's color -> style
// -> size -> others), honoring the per-group option cap and absolute
// combo cap.
func (s *Sweeper) Enumerate(ctx context.Context, b browser.Browser, model *models.VariantModel) (models.SweepResult, error) {
	order := model.SortedGroupIndices()
	stats := models.SweepStats{}
	var combos []models.Combination

	err := s.walk(ctx, b, model, order, nil, &stats, &combos)
	return models.SweepResult{Combinations: combos, Stats: stats}, err
}

func (s *Sweeper) walk(ctx context.Context, b browser.Browser, model *models.VariantModel, remainingGroups []int, path []int, stats *models.SweepStats, combos *[]models.Combination) error {
	if stats.Tested >= s.comboCap {
		stats.Truncated = true
		return nil
	}
	if len(remainingGroups) == 0 {
		if err := s.replayPath(ctx, model, path); err != nil {
			return err
		}
		available, err := s.isAvailable(ctx, b)
		if err != nil {
			return err
		}
		stats.Tested++
		if available {
			stats.Available++
		}
		*combos = append(*combos, models.Combination{Path: append([]int{}, path...), AvailabilityEnabled: available})
		return nil
	}

	groupIdx := remainingGroups[0]
	rest := remainingGroups[1:]

	options := model.GetOptions(groupIdx)
	if len(options) > s.groupOptionCap {
		options = options[:s.groupOptionCap]
		stats.Truncated = true
	}

	for _, opt := range options {
		if opt.Disabled {
			continue
		}
		if stats.Tested >= s.comboCap {
			stats.Truncated = true
			return nil
		}
		optionArenaIndex := model.Groups[groupIdx].OptionIndices[opt.Index]
		if err := s.walk(ctx, b, model, rest, append(path, optionArenaIndex), stats, combos); err != nil {
			return err
		}
		// Deeper groups' option lists are not re-read from the page
		// after a selection: GetOptions reads the arena built from the
		// initial snapshot, so each option's Disabled flag is the one
		// BuildModel saw.
	}
	return nil
}

// replayPath re-applies the entire selection path from the root, since
// intermediate state may not have survived a re-render (§4.5).
func (s *Sweeper) replayPath(ctx context.Context, model *models.VariantModel, path []int) error {
	for _, optionArenaIdx := range path {
		opt := model.Options[optionArenaIdx]
		group := model.Groups[opt.GroupIndex]
		if _, err := s.selector.Select(ctx, group, opt); err != nil {
			return err
		}
	}
	return nil
}
