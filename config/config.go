package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser       BrowserConfig
	Humanization  HumanizationConfig
	Orchestrator  OrchestratorConfig
	Sweep         SweepConfig
	Cache         CacheConfig
	AdaptivePool  AdaptivePoolConfig
	Rate          RateConfig
	Log           LogConfig
	Store         StoreConfig
}

// BrowserConfig controls the Rod browser instance backing the Browser
// Session interface (§10.1).
type BrowserConfig struct {
	Headless    bool   // default: true
	MaxSessions int    // default: 10
	NoSandbox   bool   // default: false
	BrowserBin  string
}

// HumanizationConfig controls the Browser Session's humanization contract
// (§4.1): randomized inter-action pauses and pre-click hovers.
type HumanizationConfig struct {
	MinDelay        time.Duration // default: 100ms
	MaxDelay        time.Duration // default: 2000ms
	HoverProbability float64      // default: 0.3
}

// OrchestratorConfig controls the Strategy Orchestrator's learn→test→improve
// loop (§4.7).
type OrchestratorConfig struct {
	MaxAttempts         int           // default: 5
	QualityThreshold    float64       // default: 70
	SampleSize          int           // default: 3
	NavTimeout          time.Duration // default: 30s
	QuickCheckTimeout   time.Duration // default: 5s
	ValidationElements  int           // default: 3, max elements tried per field
}

// SweepConfig controls the Variant Sweeper's combinatorial exploration
// budgets (§4.5).
type SweepConfig struct {
	GroupOptionCap int // default: 16
	ComboCap       int // default: 150
}

// CacheConfig controls the hot-tier namespace TTLs (§4.6) and the hot
// tier's per-namespace entry cap.
type CacheConfig struct {
	MaxEntriesPerNamespace int // default: 1000

	TTLNavigation time.Duration // default: 168h (7d)
	TTLSelectors  time.Duration // default: 72h (3d)
	TTLLearning   time.Duration // default: 24h (1d)
	TTLState      time.Duration // default: 12h
	TTLDiscovery  time.Duration // default: 1h
	TTLCheckpoint time.Duration // default: 48h, no-fallback namespace
}

// AdaptivePoolConfig controls the adaptive Browser Session pool sizing,
// generalized from the teacher's page-pool config (§5 "Session pooling").
type AdaptivePoolConfig struct {
	MinSessions  int     // default: 3
	HardMax      int     // default: 20
	MemThreshold float64 // default: 0.9
	ScaleStep    float64 // default: 0.05
}

// RateConfig controls the per-domain navigation pacer (§5 "Per-domain
// pacing").
type RateConfig struct {
	DomainRPS   float64 // default: 0.5
	DomainBurst int     // default: 1
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// StoreConfig names the durable store's backing location (§10.7). The
// shipped default DurableStore is a JSON file, so this is a path, not a
// DSN; a deployment swapping in a SQL-backed DurableStore would read its
// own connection string independently behind the same interface.
type StoreConfig struct {
	DurableStorePath string // default: "asie-locators.json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:    envBoolOr("ASIE_HEADLESS", true),
			MaxSessions: envIntOr("ASIE_MAX_SESSIONS", 10),
			NoSandbox:   envBoolOr("ASIE_NO_SANDBOX", false),
			BrowserBin:  os.Getenv("ASIE_BROWSER_BIN"),
		},
		Humanization: HumanizationConfig{
			MinDelay:         envDurationOr("ASIE_MIN_DELAY", 100*time.Millisecond),
			MaxDelay:         envDurationOr("ASIE_MAX_DELAY", 2000*time.Millisecond),
			HoverProbability: envFloatOr("ASIE_HOVER_PROBABILITY", 0.3),
		},
		Orchestrator: OrchestratorConfig{
			MaxAttempts:        envIntOr("ASIE_MAX_ATTEMPTS", 5),
			QualityThreshold:   envFloatOr("ASIE_QUALITY_THRESHOLD", 70),
			SampleSize:         envIntOr("ASIE_SAMPLE_SIZE", 3),
			NavTimeout:         envDurationOr("ASIE_NAV_TIMEOUT", 30*time.Second),
			QuickCheckTimeout:  envDurationOr("ASIE_QUICKCHECK_TIMEOUT", 5*time.Second),
			ValidationElements: envIntOr("ASIE_VALIDATION_ELEMENTS", 3),
		},
		Sweep: SweepConfig{
			GroupOptionCap: envIntOr("ASIE_GROUP_OPTION_CAP", 16),
			ComboCap:       envIntOr("ASIE_COMBO_CAP", 150),
		},
		Cache: CacheConfig{
			MaxEntriesPerNamespace: envIntOr("ASIE_CACHE_MAX_ENTRIES", 1000),
			TTLNavigation:          envDurationOr("ASIE_TTL_NAVIGATION", 168*time.Hour),
			TTLSelectors:           envDurationOr("ASIE_TTL_SELECTORS", 72*time.Hour),
			TTLLearning:            envDurationOr("ASIE_TTL_LEARNING", 24*time.Hour),
			TTLState:               envDurationOr("ASIE_TTL_STATE", 12*time.Hour),
			TTLDiscovery:           envDurationOr("ASIE_TTL_DISCOVERY", 1*time.Hour),
			TTLCheckpoint:          envDurationOr("ASIE_TTL_CHECKPOINT", 48*time.Hour),
		},
		AdaptivePool: AdaptivePoolConfig{
			MinSessions:  envIntOr("ASIE_MIN_SESSIONS", 3),
			HardMax:      envIntOr("ASIE_HARD_MAX_SESSIONS", 20),
			MemThreshold: envFloatOr("ASIE_MEM_THRESHOLD", 0.9),
			ScaleStep:    envFloatOr("ASIE_SCALE_STEP", 0.05),
		},
		Rate: RateConfig{
			DomainRPS:   envFloatOr("ASIE_DOMAIN_RPS", 0.5),
			DomainBurst: envIntOr("ASIE_DOMAIN_BURST", 1),
		},
		Log: LogConfig{
			Level:  envOr("ASIE_LOG_LEVEL", "info"),
			Format: envOr("ASIE_LOG_FORMAT", "json"),
		},
		Store: StoreConfig{
			DurableStorePath: envOr("ASIE_DURABLE_STORE_PATH", "asie-locators.json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
