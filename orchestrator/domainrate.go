package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/use-agent/asie/config"
	"github.com/use-agent/asie/models"
)

// DomainRateLimiter gates navigation starts with a per-domain token
// bucket, keyed the way the teacher's engine.DomainMemory keys its
// per-domain state, so concurrent attempts against the same domain don't
// hammer it while attempts against distinct domains stay independent
// (§5 "Per-domain pacing").
type DomainRateLimiter struct {
	mu       sync.Mutex
	limiters map[models.Domain]*rate.Limiter
	rps      float64
	burst    int
}

func NewDomainRateLimiter(cfg config.RateConfig) *DomainRateLimiter {
	rps := cfg.DomainRPS
	if rps <= 0 {
		rps = 0.5
	}
	burst := cfg.DomainBurst
	if burst < 1 {
		burst = 1
	}
	return &DomainRateLimiter{
		limiters: make(map[models.Domain]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (d *DomainRateLimiter) limiterFor(domain models.Domain) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[domain]
	if !ok {
		l = rate.NewLimiter(rate.Limit(d.rps), d.burst)
		d.limiters[domain] = l
	}
	return l
}

// Wait blocks until domain's pacing bucket permits the next navigation,
// or ctx is cancelled.
func (d *DomainRateLimiter) Wait(ctx context.Context, domain models.Domain) error {
	return d.limiterFor(domain).Wait(ctx)
}
