package cache

import (
	"testing"
	"time"
)

func testTTLs() map[Namespace]time.Duration {
	return map[Namespace]time.Duration{
		NamespaceNavigation: 168 * time.Hour,
		NamespaceSelectors:  72 * time.Hour,
		NamespaceLearning:   24 * time.Hour,
		NamespaceState:      12 * time.Hour,
		NamespaceDiscovery:  time.Hour,
		NamespaceCheckpoint: 48 * time.Hour,
	}
}

func TestHotStore_SetGetRoundTrip(t *testing.T) {
	h := NewHotStore(testTTLs(), 1000)
	if err := h.Setex(NamespaceSelectors, "example.com|title", "h1", 0); err != nil {
		t.Fatalf("Setex: %v", err)
	}
	v, ok := h.Get(NamespaceSelectors, "example.com|title")
	if !ok || v != "h1" {
		t.Fatalf("Get = (%v, %v), want (h1, true)", v, ok)
	}
}

func TestHotStore_ExpiredEntryMisses(t *testing.T) {
	h := NewHotStore(testTTLs(), 1000)
	if err := h.Setex(NamespaceSelectors, "k", "v", 1); err != nil { // ttlSeconds override
		t.Fatalf("Setex: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, ok := h.Get(NamespaceSelectors, "k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestHotStore_DelRemovesKey(t *testing.T) {
	h := NewHotStore(testTTLs(), 1000)
	_ = h.Setex(NamespaceDiscovery, "k", "v", 0)
	h.Del(NamespaceDiscovery, "k")
	if _, ok := h.Get(NamespaceDiscovery, "k"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestIsFallbackSafe(t *testing.T) {
	if IsFallbackSafe(NamespaceCheckpoint) {
		t.Error("checkpoint must not be fallback-safe")
	}
	if !IsFallbackSafe(NamespaceSelectors) {
		t.Error("selectors should be fallback-safe")
	}
}
