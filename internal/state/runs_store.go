// ./internal/state/runs_store.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/saucerview/saucerview/internal/types"
)

// RunSummary aggregates persisted analysis runs for the performance view.
// AvgLatencyMs covers live fetches only; cache hits record zero latency.
type RunSummary struct {
	TotalRuns    int     `json:"total_runs"`
	CachedRuns   int     `json:"cached_runs"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	UniquePools  int     `json:"unique_pools"`
}

// RecordAnalysisRun persists one completed analysis request.
func RecordAnalysisRun(run types.AnalysisRun) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO analysis_runs (run_timestamp, pool_id, fingerprint, latency_ms, from_cache)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING run_id;`

	var runID int64
	err := DB.QueryRow(stmt, run.Timestamp, run.PoolID, run.Fingerprint, run.LatencyMs, run.FromCache).Scan(&runID)
	if err != nil {
		return fmt.Errorf("failed to insert analysis run: %w", err)
	}

	log.Debug().
		Int64("run_id", runID).
		Str("pool", run.PoolID).
		Bool("from_cache", run.FromCache).
		Msg("Recorded analysis run")
	return nil
}

// GetRecentRuns retrieves recent analysis runs, newest first.
func GetRecentRuns(limit int) ([]types.AnalysisRun, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT run_id, run_timestamp, pool_id, fingerprint, latency_ms, from_cache
		FROM analysis_runs
		ORDER BY run_timestamp DESC
		LIMIT $1`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent analysis runs")
		return nil, fmt.Errorf("failed to query recent analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []types.AnalysisRun
	for rows.Next() {
		var run types.AnalysisRun
		if err := rows.Scan(&run.RunID, &run.Timestamp, &run.PoolID, &run.Fingerprint, &run.LatencyMs, &run.FromCache); err != nil {
			log.Error().Err(err).Msg("Failed to scan analysis run row")
			continue
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return runs, nil
}

// GetRunSummary retrieves aggregated run statistics.
func GetRunSummary() (*RunSummary, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	summary := &RunSummary{}

	query := `
		SELECT
			COUNT(*) as total_runs,
			COUNT(CASE WHEN from_cache THEN 1 END) as cached_runs,
			COALESCE(AVG(latency_ms) FILTER (WHERE NOT from_cache), 0) as avg_latency_ms,
			COUNT(DISTINCT pool_id) as unique_pools
		FROM analysis_runs
	`

	err := DB.QueryRow(query).Scan(
		&summary.TotalRuns,
		&summary.CachedRuns,
		&summary.AvgLatencyMs,
		&summary.UniquePools,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}

	return summary, nil
}
