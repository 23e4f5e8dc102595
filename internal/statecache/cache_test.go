package statecache

import (
	"fmt"
	"testing"
	"time"
)

// fixedSettings is a static SettingsSource for tests.
type fixedSettings struct {
	expiry time.Duration
	max    int
}

func (s fixedSettings) CacheExpiry() time.Duration { return s.expiry }
func (s fixedSettings) MaxCacheSize() int          { return s.max }

// newTestCache returns a cache with a controllable clock.
func newTestCache(expiry time.Duration, max int) (*Cache, *time.Time) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c := New(fixedSettings{expiry: expiry, max: max})
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetMissOnAbsentKey(t *testing.T) {
	c, _ := newTestCache(5*time.Minute, 50)

	if _, ok := c.Get("nope"); ok {
		t.Fatal("expected miss for absent key")
	}

	m := c.Snapshot()
	if m.TotalCacheMisses != 1 || m.TotalCacheHits != 0 {
		t.Fatalf("expected 1 miss, 0 hits, got %d/%d", m.TotalCacheMisses, m.TotalCacheHits)
	}
}

func TestGetHitWithinExpiry(t *testing.T) {
	c, now := newTestCache(5*time.Minute, 50)

	c.Set("k", "value")
	*now = now.Add(5 * time.Minute) // exactly at the boundary is still fresh

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit at expiry boundary")
	}
	if got.(string) != "value" {
		t.Fatalf("got %v", got)
	}

	m := c.Snapshot()
	if m.TotalCacheHits != 1 {
		t.Fatalf("expected 1 hit, got %d", m.TotalCacheHits)
	}
}

func TestExpiredEntryIsDeletedAndNeverResurrected(t *testing.T) {
	c, now := newTestCache(5*time.Minute, 50)

	c.Set("k", "value")
	*now = now.Add(5*time.Minute + time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss for expired entry")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not deleted, len=%d", c.Len())
	}

	// Even if the clock went backwards, the entry is gone.
	*now = now.Add(-time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry came back")
	}
}

func TestAccessCountAndLastAccessedUpdateOnHit(t *testing.T) {
	c, now := newTestCache(5*time.Minute, 50)

	c.Set("k", 1)
	*now = now.Add(time.Minute)
	c.Get("k")
	*now = now.Add(time.Minute)
	c.Get("k")

	entry := c.entries["k"]
	if entry.AccessCount != 2 {
		t.Fatalf("expected AccessCount 2, got %d", entry.AccessCount)
	}
	if !entry.LastAccessed.Equal(*now) {
		t.Fatalf("LastAccessed not updated: %v vs %v", entry.LastAccessed, *now)
	}
}

func TestSetOverwriteResetsMetadata(t *testing.T) {
	c, now := newTestCache(5*time.Minute, 50)

	c.Set("k", 1)
	c.Get("k")
	*now = now.Add(time.Minute)
	c.Set("k", 2)

	entry := c.entries["k"]
	if entry.AccessCount != 0 {
		t.Fatalf("overwrite must reset AccessCount, got %d", entry.AccessCount)
	}
	if !entry.Timestamp.Equal(*now) {
		t.Fatal("overwrite must refresh Timestamp")
	}
}

func TestPruneEvictsLeastRecentlyAccessed(t *testing.T) {
	c, now := newTestCache(time.Hour, 3)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		*now = now.Add(time.Second)
	}

	// Touch k0 so k1 becomes the least recently accessed.
	c.Get("k0")
	*now = now.Add(time.Second)

	c.Set("k3", 3)

	if c.Len() != 3 {
		t.Fatalf("expected 3 entries after prune, got %d", c.Len())
	}
	if _, ok := c.entries["k1"]; ok {
		t.Fatal("k1 should have been evicted as least recently accessed")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := c.entries[key]; !ok {
			t.Fatalf("%s should have survived the prune", key)
		}
	}
}

func TestPruneToExactBound(t *testing.T) {
	c, now := newTestCache(time.Hour, 10)

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		*now = now.Add(time.Second)
	}
	c.settings = fixedSettings{expiry: time.Hour, max: 4}
	c.Prune()

	if c.Len() != 4 {
		t.Fatalf("expected exactly 4 entries, got %d", c.Len())
	}
	// The four newest by LastAccessed survive.
	for i := 6; i < 10; i++ {
		if _, ok := c.entries[fmt.Sprintf("k%d", i)]; !ok {
			t.Fatalf("k%d should have survived", i)
		}
	}
}

func TestClearKeepsCounters(t *testing.T) {
	c, _ := newTestCache(time.Hour, 50)

	c.Set("k", 1)
	c.Get("k")
	c.Get("missing")
	c.RecordAnalysis(120)

	c.Clear()

	if c.Len() != 0 {
		t.Fatal("clear must empty the cache")
	}
	m := c.Snapshot()
	if m.TotalCacheHits != 1 || m.TotalCacheMisses != 1 || m.AnalysesRun != 1 {
		t.Fatalf("counters must survive clear: %+v", m)
	}
}

func TestHitRateNilWithoutReads(t *testing.T) {
	c, _ := newTestCache(time.Hour, 50)

	if m := c.Snapshot(); m.CacheHitRate != nil {
		t.Fatalf("hit rate must be nil with zero reads, got %v", *m.CacheHitRate)
	}

	c.Set("k", 1)
	c.Get("k")
	c.Get("missing")

	m := c.Snapshot()
	if m.CacheHitRate == nil {
		t.Fatal("hit rate must be reported after reads")
	}
	if *m.CacheHitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %v", *m.CacheHitRate)
	}
}

func TestAvgLatency(t *testing.T) {
	c, _ := newTestCache(time.Hour, 50)

	c.RecordAnalysis(100)
	c.RecordAnalysis(300)

	m := c.Snapshot()
	if m.AnalysesRun != 2 {
		t.Fatalf("expected 2 analyses, got %d", m.AnalysesRun)
	}
	if m.AvgLatencyMs != 200 {
		t.Fatalf("expected avg latency 200, got %v", m.AvgLatencyMs)
	}
}
