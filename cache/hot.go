// Package cache implements the Locator Cache & Learner (C6): a
// short-TTL, per-namespace hot tier plus a durable cold tier of
// LocatorRecords.
//
// Grounded directly on the teacher's cache.Cache (cache/cache.go): a
// sync.RWMutex-guarded map with a background cleanup ticker, generalized
// from a single global TTL and eviction map to one TTL and one map per
// namespace.
package cache

import (
	"sync"
	"time"
)

// Namespace is the closed set of hot-tier partitions, each with its own
// TTL (§4.6).
type Namespace string

const (
	NamespaceNavigation Namespace = "navigation"
	NamespaceSelectors  Namespace = "selectors"
	NamespaceLearning   Namespace = "learning"
	NamespaceState      Namespace = "state"
	NamespaceDiscovery  Namespace = "discovery"
	NamespaceCheckpoint Namespace = "checkpoint" // non-fallback-safe
)

// nonFallbackSafe is the set of namespaces that must never be
// transparently served from an in-process fallback (§4.6 Contract).
var nonFallbackSafe = map[Namespace]bool{
	NamespaceCheckpoint: true,
}

type hotEntry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

func (e *hotEntry) expired() bool {
	return time.Since(e.createdAt) > e.ttl
}

// HotStore implements the Store contract (§6): setex/get/keys/del, one
// TTL per namespace, with a background cleanupLoop ticker matching the
// teacher's cache.Cache.cleanupLoop.
type HotStore struct {
	mu    sync.RWMutex
	store map[Namespace]map[string]*hotEntry
	ttls  map[Namespace]time.Duration
	maxEntriesPerNamespace int
}

// NewHotStore builds a HotStore with the per-namespace TTLs from
// configuration and starts the cleanup loop.
func NewHotStore(ttls map[Namespace]time.Duration, maxEntriesPerNamespace int) *HotStore {
	h := &HotStore{
		store:                  make(map[Namespace]map[string]*hotEntry),
		ttls:                   ttls,
		maxEntriesPerNamespace: maxEntriesPerNamespace,
	}
	for ns := range ttls {
		h.store[ns] = make(map[string]*hotEntry)
	}
	go h.cleanupLoop()
	return h
}

// Setex stores value under (namespace, key) with the namespace's
// configured TTL (the ttlSeconds parameter from §6's Store contract is
// honored when positive; otherwise the namespace default applies).
func (h *HotStore) Setex(namespace Namespace, key string, value any, ttlSeconds int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ttl := h.ttls[namespace]
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}

	bucket, ok := h.store[namespace]
	if !ok {
		bucket = make(map[string]*hotEntry)
		h.store[namespace] = bucket
	}
	if len(bucket) >= h.maxEntriesPerNamespace {
		for k := range bucket {
			delete(bucket, k)
			break
		}
	}
	bucket[key] = &hotEntry{value: value, createdAt: time.Now(), ttl: ttl}
	return nil
}

// Get returns the value stored at (namespace, key), or (nil, false) on
// miss or expiry. A miss on the checkpoint namespace reports
// CacheUnavailable via the bool return rather than an in-process
// fallback (§4.6 Contract); callers are expected to treat false as "fall
// through to cold tier" uniformly, and to never wrap Get for checkpoint
// in a silent fallback store.
func (h *HotStore) Get(namespace Namespace, key string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bucket, ok := h.store[namespace]
	if !ok {
		return nil, false
	}
	e, ok := bucket[key]
	if !ok || e.expired() {
		return nil, false
	}
	return e.value, true
}

// IsFallbackSafe reports whether namespace may be transparently served
// from an in-process fallback when the hot tier itself is unavailable.
func IsFallbackSafe(namespace Namespace) bool {
	return !nonFallbackSafe[namespace]
}

// Keys returns all non-expired keys in namespace.
func (h *HotStore) Keys(namespace Namespace) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bucket, ok := h.store[namespace]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(bucket))
	for k, e := range bucket {
		if !e.expired() {
			keys = append(keys, k)
		}
	}
	return keys
}

// Del removes keys from namespace.
func (h *HotStore) Del(namespace Namespace, keys ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bucket, ok := h.store[namespace]
	if !ok {
		return
	}
	for _, k := range keys {
		delete(bucket, k)
	}
}

// cleanupLoop evicts expired entries every 5 minutes, matching the
// teacher's cache.Cache.cleanupLoop cadence.
func (h *HotStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.Lock()
		for _, bucket := range h.store {
			for k, e := range bucket {
				if e.expired() {
					delete(bucket, k)
				}
			}
		}
		h.mu.Unlock()
	}
}
