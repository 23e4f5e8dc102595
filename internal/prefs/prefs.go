// Package prefs persists the user's strategy form defaults and cache
// tuning. The persisted blob deliberately excludes cache contents and
// analysis results; it is settings only.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saucerview/saucerview/internal/logger"
)

var prefsLogger = logger.GetForComponent("prefs")

const (
	// PrefsVersion is the current schema version for future migrations.
	PrefsVersion = 1

	// PrefsFileName is the persisted settings file name.
	PrefsFileName = "preferences.json"
)

// StrategyDefaults pre-fills the strategy form.
type StrategyDefaults struct {
	PriceLower      float64 `json:"price_lower"`
	PriceUpper      float64 `json:"price_upper"`
	LiquidityUSD    float64 `json:"liquidity_usd"`
	BearCaseDrop    float64 `json:"bear_case_drop"`
	BullCaseRise    float64 `json:"bull_case_rise"`
	TimeHorizonDays int     `json:"time_horizon_days"`
}

// Preferences is the persisted settings blob. Cache tuning changes apply
// lazily: existing cache entries are re-judged against the new expiry on
// their next read, never proactively purged.
type Preferences struct {
	CacheExpiryMinutes int              `json:"cache_expiry_minutes"`
	MaxCacheSize       int              `json:"max_cache_size"`
	DefaultTimeframe   string           `json:"default_timeframe"`
	AdvancedMode       bool             `json:"advanced_mode"`
	BacktestMode       bool             `json:"backtest_mode"`
	Strategy           StrategyDefaults `json:"strategy"`
	Version            int              `json:"version"`
}

// Defaults returns the out-of-the-box preferences.
func Defaults() Preferences {
	return Preferences{
		CacheExpiryMinutes: 5,
		MaxCacheSize:       50,
		DefaultTimeframe:   "1h",
		Strategy: StrategyDefaults{
			LiquidityUSD:    1000,
			BearCaseDrop:    30,
			BullCaseRise:    50,
			TimeHorizonDays: 30,
		},
		Version: PrefsVersion,
	}
}

// Store handles reading and writing preferences and serves as the live
// settings source for the state cache.
type Store struct {
	dir     string
	mu      sync.RWMutex
	current Preferences
}

// NewStore creates a store rooted at dir and loads any persisted
// preferences. seed supplies the starting values (typically Defaults()
// overlaid with env-configured cache tuning); a persisted file wins over
// the seed, and a missing or corrupted file yields the seed.
func NewStore(dir string, seed Preferences) *Store {
	if seed.CacheExpiryMinutes <= 0 {
		seed.CacheExpiryMinutes = Defaults().CacheExpiryMinutes
	}
	if seed.MaxCacheSize <= 0 {
		seed.MaxCacheSize = Defaults().MaxCacheSize
	}
	s := &Store{dir: dir, current: seed}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			prefsLogger.Warn().Err(err).Msg("Could not read preferences, using seed defaults")
		}
		return s
	}

	var loaded Preferences
	if err := json.Unmarshal(data, &loaded); err != nil {
		prefsLogger.Warn().Err(err).Msg("Corrupted preferences file, using seed defaults")
		return s
	}
	if loaded.CacheExpiryMinutes <= 0 {
		loaded.CacheExpiryMinutes = seed.CacheExpiryMinutes
	}
	if loaded.MaxCacheSize <= 0 {
		loaded.MaxCacheSize = seed.MaxCacheSize
	}
	s.current = loaded
	return s
}

// Path returns the full path to the preferences file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, PrefsFileName)
}

// Current returns a copy of the live preferences.
func (s *Store) Current() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update writes the preferences to disk atomically, then replaces the
// live copy. A failed write leaves the live settings untouched.
func (s *Store) Update(p Preferences) error {
	p.Version = PrefsVersion

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := s.Path() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return nil
}

// CacheExpiry implements statecache.SettingsSource.
func (s *Store) CacheExpiry() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.current.CacheExpiryMinutes) * time.Minute
}

// MaxCacheSize implements statecache.SettingsSource.
func (s *Store) MaxCacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.MaxCacheSize
}
