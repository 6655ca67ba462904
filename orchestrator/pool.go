// Package orchestrator implements the Strategy Orchestrator (C7): the
// learn -> test -> improve loop that turns candidate locators into a
// persisted ExtractionStrategy, plus its supporting resource pool and
// per-domain pacing.
package orchestrator

import (
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/asie/config"
)

// SessionHandle wraps a pooled Browser Session with health-tracking
// metadata, generalized from the teacher's engine.PageHandle
// (engine/adaptive_pool.go) from "pooled rod.Page tabs for scrape
// requests" to "pooled Browser Sessions for orchestrator attempts"
// (§5's expansion note).
type SessionHandle struct {
	ID       int64
	Session  any // concrete *browser.rodBrowser or test double, opaque to the pool
	errScore float64
	useCount int
	created  time.Time
	mu       sync.Mutex
}

func newSessionHandle(id int64, session any) *SessionHandle {
	return &SessionHandle{ID: id, Session: session, created: time.Now()}
}

func (h *SessionHandle) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

func (h *SessionHandle) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

// ShouldRetire mirrors the teacher's PageHandle.ShouldRetire thresholds.
func (h *SessionHandle) ShouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errScore >= 3.0 {
		return true
	}
	if h.useCount >= 50 {
		return true
	}
	if time.Since(h.created) >= 50*time.Minute {
		return true
	}
	return false
}

// SessionFactory creates a new Browser Session and returns an opaque
// handle ID.
type SessionFactory func() (int64, any, error)

// SessionDestroyer closes a session by its handle ID.
type SessionDestroyer func(id int64, session any)

// SessionPool manages pooled Browser Sessions with automatic scaling
// based on memory pressure and utilization, generalized from the
// teacher's engine.AdaptivePool.
type SessionPool struct {
	cfg       config.AdaptivePoolConfig
	factory   SessionFactory
	destroyer SessionDestroyer

	idle     chan *SessionHandle
	mu       sync.Mutex
	all      map[int64]*SessionHandle
	active   atomic.Int32
	reserved atomic.Int32 // slots claimed for an in-flight createHandle, not yet in all
	stopped  chan struct{}
}

// NewSessionPool creates and starts an adaptive session pool, pre-creating
// MinSessions handles.
func NewSessionPool(cfg config.AdaptivePoolConfig, factory SessionFactory, destroyer SessionDestroyer) (*SessionPool, error) {
	if cfg.MinSessions < 1 {
		cfg.MinSessions = 1
	}
	if cfg.HardMax < cfg.MinSessions {
		cfg.HardMax = cfg.MinSessions
	}
	if cfg.MemThreshold <= 0 {
		cfg.MemThreshold = 0.9
	}
	if cfg.ScaleStep <= 0 {
		cfg.ScaleStep = 0.05
	}

	sp := &SessionPool{
		cfg:       cfg,
		factory:   factory,
		destroyer: destroyer,
		idle:      make(chan *SessionHandle, cfg.HardMax),
		all:       make(map[int64]*SessionHandle),
		stopped:   make(chan struct{}),
	}

	for i := 0; i < cfg.MinSessions; i++ {
		h, err := sp.createHandle()
		if err != nil {
			slog.Warn("session_pool: failed to pre-create session", "error", err)
			continue
		}
		sp.idle <- h
	}

	go sp.scalingLoop()
	return sp, nil
}

// Get acquires a session handle, creating one if under the hard max,
// otherwise blocking until one is returned. Growth reserves a slot with an
// atomic counter rather than holding sp.mu across the (slow) factory call,
// so concurrent Get calls can launch sessions in parallel instead of
// serializing on browser-launch I/O.
func (sp *SessionPool) Get() (*SessionHandle, error) {
	select {
	case h := <-sp.idle:
		sp.active.Add(1)
		return h, nil
	default:
	}

	if sp.reserveSlot() {
		h, err := sp.createHandle()
		sp.reserved.Add(-1)
		if err == nil {
			sp.active.Add(1)
			return h, nil
		}
	}

	h := <-sp.idle
	sp.active.Add(1)
	return h, nil
}

// reserveSlot claims room for one more session if the pool (existing plus
// already-reserved-but-not-yet-created) is under HardMax.
func (sp *SessionPool) reserveSlot() bool {
	sp.mu.Lock()
	existing := len(sp.all)
	sp.mu.Unlock()

	for {
		r := sp.reserved.Load()
		if existing+int(r) >= sp.cfg.HardMax {
			return false
		}
		if sp.reserved.CompareAndSwap(r, r+1) {
			return true
		}
	}
}

// Put returns a handle, retiring and replacing it if its health has
// degraded past the retirement thresholds.
func (sp *SessionPool) Put(h *SessionHandle, success bool) {
	sp.active.Add(-1)

	if success {
		h.RecordSuccess()
	} else {
		h.RecordFailure()
	}

	if h.ShouldRetire() {
		slog.Debug("session_pool: retiring session", "id", h.ID, "errScore", h.errScore, "useCount", h.useCount)
		sp.destroyHandle(h)

		sp.mu.Lock()
		belowMin := len(sp.all) < sp.cfg.MinSessions
		sp.mu.Unlock()
		if belowMin {
			if newH, err := sp.createHandle(); err == nil {
				sp.idle <- newH
			}
		}
		return
	}

	sp.idle <- h
}

func (sp *SessionPool) Size() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.all)
}

func (sp *SessionPool) ActiveCount() int {
	return int(sp.active.Load())
}

// Stop shuts down the scaling goroutine and destroys all handles.
func (sp *SessionPool) Stop() {
	close(sp.stopped)

drainLoop:
	for {
		select {
		case h := <-sp.idle:
			sp.destroyHandle(h)
		default:
			break drainLoop
		}
	}

	sp.mu.Lock()
	for id, h := range sp.all {
		sp.destroyer(h.ID, h.Session)
		delete(sp.all, id)
	}
	sp.mu.Unlock()
}

// createHandle runs the (slow) factory call without holding sp.mu, then
// takes the lock only to register the new handle.
func (sp *SessionPool) createHandle() (*SessionHandle, error) {
	id, session, err := sp.factory()
	if err != nil {
		return nil, err
	}
	h := newSessionHandle(id, session)
	sp.mu.Lock()
	sp.all[id] = h
	sp.mu.Unlock()
	return h, nil
}

func (sp *SessionPool) destroyHandle(h *SessionHandle) {
	sp.mu.Lock()
	delete(sp.all, h.ID)
	sp.mu.Unlock()
	sp.destroyer(h.ID, h.Session)
}

// scalingLoop periodically samples heap pressure and adjusts pool size,
// exactly as the teacher's scaleCheck does (§5 expansion note).
func (sp *SessionPool) scalingLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sp.stopped:
			return
		case <-ticker.C:
			sp.scaleCheck()
		}
	}
}

func (sp *SessionPool) scaleCheck() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var memPressure float64
	if m.HeapSys > 0 {
		memPressure = float64(m.HeapInuse) / float64(m.HeapSys)
	}

	sp.mu.Lock()
	totalSize := len(sp.all)
	sp.mu.Unlock()

	active := int(sp.active.Load())
	var activeRate float64
	if totalSize > 0 {
		activeRate = float64(active) / float64(totalSize)
	}

	if memPressure > sp.cfg.MemThreshold {
		shrinkCount := int(math.Ceil(float64(totalSize) * sp.cfg.ScaleStep))
		for i := 0; i < shrinkCount; i++ {
			sp.mu.Lock()
			if len(sp.all) <= sp.cfg.MinSessions {
				sp.mu.Unlock()
				break
			}
			sp.mu.Unlock()

			select {
			case h := <-sp.idle:
				slog.Debug("session_pool: shrinking, retiring session", "id", h.ID)
				sp.destroyHandle(h)
			default:
				return
			}
		}
	} else if activeRate > 0.8 {
		growCount := int(math.Ceil(float64(totalSize) * sp.cfg.ScaleStep))
		for i := 0; i < growCount; i++ {
			sp.mu.Lock()
			atMax := len(sp.all) >= sp.cfg.HardMax
			sp.mu.Unlock()
			if atMax {
				break
			}
			h, err := sp.createHandle()
			if err != nil {
				slog.Warn("session_pool: failed to grow", "error", err)
				break
			}
			slog.Debug("session_pool: grew pool", "id", h.ID)
			sp.idle <- h
		}
	}
}
