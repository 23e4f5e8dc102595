package statecache

// stats accumulates monotonically increasing performance counters. Guarded
// by the owning Cache's mutex.
type stats struct {
	hits                 int64
	misses               int64
	analysesRun          int64
	totalAnalysisLatency float64 // milliseconds
}

// Metrics is the read model served by the performance endpoint.
// CacheHitRate is nil when no reads have happened yet; callers must render
// that as "no data", never as zero.
type Metrics struct {
	TotalCacheHits   int64    `json:"total_cache_hits"`
	TotalCacheMisses int64    `json:"total_cache_misses"`
	AnalysesRun      int64    `json:"analyses_run"`
	AvgLatencyMs     float64  `json:"avg_latency_ms"`
	CacheHitRate     *float64 `json:"cache_hit_rate"`
}

// RecordAnalysis accounts one completed (non-cached) analysis call.
func (c *Cache) RecordAnalysis(latencyMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.analysesRun++
	c.stats.totalAnalysisLatency += latencyMs
}

// Snapshot returns the current performance counters.
func (c *Cache) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		TotalCacheHits:   c.stats.hits,
		TotalCacheMisses: c.stats.misses,
		AnalysesRun:      c.stats.analysesRun,
	}
	if c.stats.analysesRun > 0 {
		m.AvgLatencyMs = c.stats.totalAnalysisLatency / float64(c.stats.analysesRun)
	}
	if total := c.stats.hits + c.stats.misses; total > 0 {
		rate := float64(c.stats.hits) / float64(total)
		m.CacheHitRate = &rate
	}
	return m
}
