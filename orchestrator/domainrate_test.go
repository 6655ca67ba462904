package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/use-agent/asie/config"
	"github.com/use-agent/asie/models"
)

func TestDomainRateLimiterAppliesDefaults(t *testing.T) {
	d := NewDomainRateLimiter(config.RateConfig{})
	if d.rps != 0.5 {
		t.Errorf("default rps = %v, want 0.5", d.rps)
	}
	if d.burst != 1 {
		t.Errorf("default burst = %v, want 1", d.burst)
	}
}

func TestDomainRateLimiterIndependentPerDomain(t *testing.T) {
	d := NewDomainRateLimiter(config.RateConfig{DomainRPS: 0.01, DomainBurst: 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := d.Wait(ctx, models.NewDomain("a.example.com")); err != nil {
		t.Fatalf("first wait on domain a: %v", err)
	}
	if err := d.Wait(ctx, models.NewDomain("b.example.com")); err != nil {
		t.Fatalf("first wait on distinct domain b should not be throttled by a's bucket: %v", err)
	}
}

func TestDomainRateLimiterReusesLimiterForSameDomain(t *testing.T) {
	d := NewDomainRateLimiter(config.RateConfig{DomainRPS: 10, DomainBurst: 2})
	domain := models.NewDomain("example.com")
	l1 := d.limiterFor(domain)
	l2 := d.limiterFor(domain)
	if l1 != l2 {
		t.Fatalf("expected the same limiter instance for repeated lookups of the same domain")
	}
}
