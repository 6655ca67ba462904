package browser

import (
	"math/rand"
	"time"

	"github.com/use-agent/asie/config"
)

// Humanizer implements the randomized-pause and probabilistic-hover rules
// of the humanization contract (§4.1). It wraps its own *rand.Rand so
// tests can seed it for determinism instead of sharing the global source.
type Humanizer struct {
	rng            *rand.Rand
	minDelay       time.Duration
	maxDelay       time.Duration
	hoverProbability float64
}

// NewHumanizer builds a Humanizer from configuration, seeded from the
// current time. Use NewHumanizerWithSeed for deterministic tests.
func NewHumanizer(cfg config.HumanizationConfig) *Humanizer {
	return NewHumanizerWithSeed(cfg, time.Now().UnixNano())
}

func NewHumanizerWithSeed(cfg config.HumanizationConfig, seed int64) *Humanizer {
	return &Humanizer{
		rng:              rand.New(rand.NewSource(seed)),
		minDelay:         cfg.MinDelay,
		maxDelay:         cfg.MaxDelay,
		hoverProbability: cfg.HoverProbability,
	}
}

// NextDelay returns a uniformly random duration in [minDelay, maxDelay).
func (h *Humanizer) NextDelay() time.Duration {
	if h.maxDelay <= h.minDelay {
		return h.minDelay
	}
	span := h.maxDelay - h.minDelay
	return h.minDelay + time.Duration(h.rng.Int63n(int64(span)))
}

// ShouldHover reports true with probability hoverProbability.
func (h *Humanizer) ShouldHover() bool {
	return h.rng.Float64() < h.hoverProbability
}
