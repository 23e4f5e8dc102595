package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsWhenFileMissing(t *testing.T) {
	s := NewStore(t.TempDir(), Defaults())

	got := s.Current()
	if got != Defaults() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestUpdatePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, Defaults())

	p := s.Current()
	p.CacheExpiryMinutes = 10
	p.MaxCacheSize = 25
	p.DefaultTimeframe = "4h"
	p.AdvancedMode = true
	if err := s.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded := NewStore(dir, Defaults()).Current()
	if reloaded.CacheExpiryMinutes != 10 || reloaded.MaxCacheSize != 25 {
		t.Fatalf("cache tuning not persisted: %+v", reloaded)
	}
	if reloaded.DefaultTimeframe != "4h" || !reloaded.AdvancedMode {
		t.Fatalf("settings not persisted: %+v", reloaded)
	}
	if reloaded.Version != PrefsVersion {
		t.Fatalf("version not stamped, got %d", reloaded.Version)
	}
}

func TestSeedOverridesBuiltinTuning(t *testing.T) {
	seed := Defaults()
	seed.CacheExpiryMinutes = 60
	seed.MaxCacheSize = 999

	s := NewStore(t.TempDir(), seed)
	if got := s.CacheExpiry(); got != 60*time.Minute {
		t.Fatalf("seed expiry not applied, got %v", got)
	}
	if got := s.MaxCacheSize(); got != 999 {
		t.Fatalf("seed max size not applied, got %d", got)
	}
}

func TestPersistedFileWinsOverSeed(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, Defaults())
	p := s.Current()
	p.CacheExpiryMinutes = 10
	p.MaxCacheSize = 25
	if err := s.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	seed := Defaults()
	seed.CacheExpiryMinutes = 60
	seed.MaxCacheSize = 999
	reloaded := NewStore(dir, seed).Current()
	if reloaded.CacheExpiryMinutes != 10 || reloaded.MaxCacheSize != 25 {
		t.Fatalf("persisted tuning must win over seed: %+v", reloaded)
	}
}

func TestFailedUpdateLeavesLiveSettingsUntouched(t *testing.T) {
	parent := t.TempDir()
	blocked := filepath.Join(parent, "prefs")
	if err := os.WriteFile(blocked, []byte("not a directory"), 0600); err != nil {
		t.Fatalf("writing blocker: %v", err)
	}

	s := NewStore(blocked, Defaults())
	before := s.Current()

	p := before
	p.CacheExpiryMinutes = 42
	p.MaxCacheSize = 7
	if err := s.Update(p); err == nil {
		t.Fatal("expected Update to fail when the prefs dir is a file")
	}

	if s.Current() != before {
		t.Fatalf("failed write must not change live settings: %+v", s.Current())
	}
}

func TestCorruptedFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, PrefsFileName), []byte("{broken"), 0600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	s := NewStore(dir, Defaults())
	if s.Current() != Defaults() {
		t.Fatalf("corrupt file must yield defaults, got %+v", s.Current())
	}
}

func TestNonPositiveTuningValuesClamped(t *testing.T) {
	dir := t.TempDir()
	blob := `{"cache_expiry_minutes":0,"max_cache_size":-5,"default_timeframe":"1d","version":1}`
	if err := os.WriteFile(filepath.Join(dir, PrefsFileName), []byte(blob), 0600); err != nil {
		t.Fatalf("writing prefs: %v", err)
	}

	s := NewStore(dir, Defaults())
	got := s.Current()
	if got.CacheExpiryMinutes != Defaults().CacheExpiryMinutes {
		t.Fatalf("zero expiry not clamped: %d", got.CacheExpiryMinutes)
	}
	if got.MaxCacheSize != Defaults().MaxCacheSize {
		t.Fatalf("negative size not clamped: %d", got.MaxCacheSize)
	}
	if got.DefaultTimeframe != "1d" {
		t.Fatal("valid fields must survive clamping")
	}
}

func TestSettingsSourceReflectsLiveValues(t *testing.T) {
	s := NewStore(t.TempDir(), Defaults())

	if got := s.CacheExpiry(); got != 5*time.Minute {
		t.Fatalf("expected 5m expiry, got %v", got)
	}
	if got := s.MaxCacheSize(); got != 50 {
		t.Fatalf("expected max 50, got %d", got)
	}

	p := s.Current()
	p.CacheExpiryMinutes = 1
	p.MaxCacheSize = 3
	if err := s.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := s.CacheExpiry(); got != time.Minute {
		t.Fatalf("expiry not live, got %v", got)
	}
	if got := s.MaxCacheSize(); got != 3 {
		t.Fatalf("max size not live, got %d", got)
	}
}
