/*

Read-through orchestration between the web layer, the state cache, and the
analytics backend. Control flow per request: derive the cache key from the
call parameters, consult the state cache, on miss call the backend (whose
transport is the offline interception layer), store the result with a fresh
timestamp, and record latency for the performance read model.

*/

package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/saucerview/saucerview/internal/backend"
	"github.com/saucerview/saucerview/internal/logger"
	"github.com/saucerview/saucerview/internal/statecache"
	"github.com/saucerview/saucerview/internal/types"
)

// HistoryStore persists completed analysis runs. Implementations may be
// absent (no database configured); recording is always best-effort.
type HistoryStore interface {
	RecordAnalysisRun(run types.AnalysisRun) error
}

// Service is the dashboard's data access layer. Construct it once at
// startup and pass it by reference; it holds no global state.
type Service struct {
	cache   *statecache.Cache
	client  *backend.Client
	history HistoryStore // nil when no database is configured
	log     zerolog.Logger
	now     func() time.Time
}

// New wires a service. history may be nil.
func New(cache *statecache.Cache, client *backend.Client, history HistoryStore) *Service {
	return &Service{
		cache:   cache,
		client:  client,
		history: history,
		log:     logger.GetForComponent("dashboard"),
		now:     time.Now,
	}
}

// Pools returns the known pool list, cached under a single key.
func (s *Service) Pools(ctx context.Context) ([]types.Pool, error) {
	key := statecache.PoolsKey()
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]types.Pool), nil
	}

	pools, err := s.client.Pools(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, pools)
	return pools, nil
}

// ValidatePool probes a pool id against the backend. Validation results are
// not cached: a pool can become valid between checks.
func (s *Service) ValidatePool(ctx context.Context, poolID string) (*types.PoolValidation, error) {
	return s.client.TestPoolID(ctx, poolID)
}

// ProbePool tests an arbitrary contract id outside the known pool list.
func (s *Service) ProbePool(ctx context.Context, poolID string) (json.RawMessage, error) {
	return s.client.TestAnyPool(ctx, poolID)
}

// DiscoverPools asks the backend to scan for pools with recent activity.
// The scan is expensive on the backend side, so the result is cached like
// any other read.
func (s *Service) DiscoverPools(ctx context.Context) (json.RawMessage, error) {
	key := statecache.DiscoveryKey()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(json.RawMessage), nil
	}

	found, err := s.client.FindActivePools(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, found)
	return found, nil
}

// OHLCV returns a candle series, cached per pool/timeframe/lookback.
func (s *Service) OHLCV(ctx context.Context, poolID, timeframe string, lookbackDays int) ([]types.Candle, error) {
	key := statecache.OHLCVKey(poolID, timeframe, lookbackDays)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]types.Candle), nil
	}

	candles, err := s.client.OHLCV(ctx, poolID, timeframe, lookbackDays)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, candles)
	return candles, nil
}

// Analyze returns the strategy analysis for params, from cache when a
// fingerprint-identical request was answered within the expiry window.
// The second return value reports whether the result came from cache.
func (s *Service) Analyze(ctx context.Context, params types.StrategyParams) (*types.AnalysisResult, bool, error) {
	key := statecache.AnalysisKey(params)
	if cached, ok := s.cache.Get(key); ok {
		s.recordRun(params.PoolID, key, 0, true)
		return cached.(*types.AnalysisResult), true, nil
	}

	start := s.now()
	result, err := s.client.Analyze(ctx, params)
	if err != nil {
		return nil, false, err
	}
	latencyMs := float64(s.now().Sub(start)) / float64(time.Millisecond)

	s.cache.Set(key, result)
	s.cache.RecordAnalysis(latencyMs)
	s.recordRun(params.PoolID, key, latencyMs, false)

	s.log.Info().
		Str("pool", params.PoolID).
		Float64("latency_ms", latencyMs).
		Msg("Analysis completed")
	return result, false, nil
}

// RangeComparison passes the backend's chart payload through uncached; the
// offline layer still write-through caches it at the HTTP level.
func (s *Service) RangeComparison(ctx context.Context, params types.StrategyParams) (json.RawMessage, error) {
	return s.client.RangeComparison(ctx, params)
}

// LiquidityDistribution passes the liquidity depth chart through uncached.
func (s *Service) LiquidityDistribution(ctx context.Context, poolID string) (json.RawMessage, error) {
	return s.client.LiquidityDistribution(ctx, poolID)
}

// BackendHealth reports the backend's own health payload.
func (s *Service) BackendHealth(ctx context.Context) (*types.HealthStatus, error) {
	return s.client.Health(ctx)
}

// Metrics exposes the cache's performance counters.
func (s *Service) Metrics() statecache.Metrics {
	return s.cache.Snapshot()
}

// ClearCache empties the state cache without touching the counters.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// recordRun appends to the history store, best-effort. A failed or missing
// store must never fail the request that produced the analysis.
func (s *Service) recordRun(poolID, fingerprint string, latencyMs float64, fromCache bool) {
	if s.history == nil {
		return
	}
	run := types.AnalysisRun{
		PoolID:      poolID,
		Fingerprint: fingerprint,
		LatencyMs:   latencyMs,
		FromCache:   fromCache,
		Timestamp:   s.now(),
	}
	if err := s.history.RecordAnalysisRun(run); err != nil {
		s.log.Warn().Err(err).Str("pool", poolID).Msg("Failed to record analysis run")
	}
}
