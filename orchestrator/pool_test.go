package orchestrator

import (
	"testing"
	"time"

	"github.com/use-agent/asie/config"
)

func TestSessionHandleShouldRetireByErrScore(t *testing.T) {
	h := newSessionHandle(1, "fake-session")
	for i := 0; i < 6; i++ {
		h.RecordFailure()
	}
	if !h.ShouldRetire() {
		t.Fatalf("expected handle to retire after repeated failures, errScore=%v", h.errScore)
	}
}

func TestSessionHandleShouldRetireByUseCount(t *testing.T) {
	h := newSessionHandle(1, "fake-session")
	for i := 0; i < 50; i++ {
		h.RecordSuccess()
	}
	if !h.ShouldRetire() {
		t.Fatalf("expected handle to retire after 50 uses, useCount=%d", h.useCount)
	}
}

func TestSessionHandleShouldRetireByAge(t *testing.T) {
	h := newSessionHandle(1, "fake-session")
	h.created = time.Now().Add(-51 * time.Minute)
	if !h.ShouldRetire() {
		t.Fatalf("expected handle to retire after exceeding age threshold")
	}
}

func TestSessionHandleHealthyStaysPooled(t *testing.T) {
	h := newSessionHandle(1, "fake-session")
	h.RecordSuccess()
	h.RecordFailure()
	if h.ShouldRetire() {
		t.Fatalf("fresh handle with light use should not retire")
	}
}

func TestSessionHandleRecordSuccessDecaysErrScore(t *testing.T) {
	h := newSessionHandle(1, "fake-session")
	h.RecordFailure()
	h.RecordFailure()
	before := h.errScore
	h.RecordSuccess()
	if h.errScore >= before {
		t.Fatalf("RecordSuccess should decay errScore: before=%v after=%v", before, h.errScore)
	}
}

func TestSessionPoolGetPutCycle(t *testing.T) {
	var destroyed []int64
	factory := func() (int64, any, error) {
		return 1, "session", nil
	}
	destroyer := func(id int64, _ any) { destroyed = append(destroyed, id) }

	cfg := sessionPoolTestConfig()
	sp, err := NewSessionPool(cfg, factory, destroyer)
	if err != nil {
		t.Fatalf("NewSessionPool: %v", err)
	}
	defer sp.Stop()

	h, err := sp.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sp.ActiveCount() != 1 {
		t.Fatalf("ActiveCount after Get = %d, want 1", sp.ActiveCount())
	}

	sp.Put(h, true)
	if sp.ActiveCount() != 0 {
		t.Fatalf("ActiveCount after Put = %d, want 0", sp.ActiveCount())
	}
}

func TestSessionPoolRetiresUnhealthyHandle(t *testing.T) {
	var nextID int64
	factory := func() (int64, any, error) {
		nextID++
		return nextID, "session", nil
	}
	var destroyed []int64
	destroyer := func(id int64, _ any) { destroyed = append(destroyed, id) }

	cfg := sessionPoolTestConfig()
	sp, err := NewSessionPool(cfg, factory, destroyer)
	if err != nil {
		t.Fatalf("NewSessionPool: %v", err)
	}
	defer sp.Stop()

	h, err := sp.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for i := 0; i < 50; i++ {
		h.RecordSuccess()
	}
	sp.Put(h, true)

	if len(destroyed) == 0 {
		t.Fatalf("expected worn-out handle to be destroyed, got none")
	}
}

func sessionPoolTestConfig() config.AdaptivePoolConfig {
	return config.AdaptivePoolConfig{
		MinSessions:  1,
		HardMax:      4,
		MemThreshold: 0.9,
		ScaleStep:    0.5,
	}
}
