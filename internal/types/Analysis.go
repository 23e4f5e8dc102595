/*

Request and response shapes for the backend's LP strategy analysis. The
heavy math (fee projection, impermanent loss, Monte Carlo paths, backtest)
lives entirely in the backend; these types only mirror its payload.

*/

package types

import "time"

// StrategyParams is the full parameter set for one analysis request.
// Every field here influences the backend computation and therefore
// participates in cache key derivation (see statecache.AnalysisKey).
type StrategyParams struct {
	PoolID          string  `json:"pool_id"`
	PriceLower      float64 `json:"price_lower"`
	PriceUpper      float64 `json:"price_upper"`
	LiquidityUSD    float64 `json:"liquidity_usd"`
	BearCaseDrop    float64 `json:"bear_case_drop"` // percent, e.g. 30 means -30%
	BullCaseRise    float64 `json:"bull_case_rise"` // percent
	TimeHorizonDays int     `json:"time_horizon_days"`
	AdvancedMode    bool    `json:"advanced_mode"`
	BacktestMode    bool    `json:"backtest_mode"`
}

// Scenario is one projected outcome (bear / base / bull and friends).
type Scenario struct {
	Name               string  `json:"name"`
	PriceChangePercent float64 `json:"price_change_percent"`
	PositionValueUSD   float64 `json:"position_value_usd"`
	FeesEarnedUSD      float64 `json:"fees_earned_usd"`
	ImpermanentLossUSD float64 `json:"impermanent_loss_usd"`
	NetPnlUSD          float64 `json:"net_pnl_usd"`
	InRange            bool    `json:"in_range"`
}

// MonteCarloSummary aggregates the backend's path simulation. Present only
// when the request had advanced mode enabled.
type MonteCarloSummary struct {
	Runs             int                `json:"runs"`
	ExpectedValueUSD float64            `json:"expected_value_usd"`
	ValueAtRisk95USD float64            `json:"value_at_risk_95_usd"`
	ProbInRange      float64            `json:"prob_in_range"`
	ProbLoss         float64            `json:"prob_loss"`
	Percentiles      map[string]float64 `json:"percentiles,omitempty"`
}

// BacktestSummary is the historical replay block, present only when the
// request had backtest mode enabled.
type BacktestSummary struct {
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	TotalFeesUSD       float64   `json:"total_fees_usd"`
	TotalILUSD         float64   `json:"total_il_usd"`
	NetReturnPercent   float64   `json:"net_return_percent"`
	TimeInRangePercent float64   `json:"time_in_range_percent"`
	RebalanceCount     int       `json:"rebalance_count"`
}

type CapitalEfficiency struct {
	Score             float64 `json:"score"`
	Grade             string  `json:"grade"` // A..F
	VsFullRange       float64 `json:"vs_full_range"`
	RangeWidthPercent float64 `json:"range_width_percent"`
}

type MarketContext struct {
	CurrentPrice  float64 `json:"current_price"`
	Volatility30d float64 `json:"volatility_30d"`
	Trend         string  `json:"trend"`
	VolumeUSD24h  float64 `json:"volume_24h_usd"`
}

// AnalysisResult is the full backend analysis payload.
type AnalysisResult struct {
	PoolID            string             `json:"pool_id"`
	Scenarios         []Scenario         `json:"scenarios"`
	MonteCarlo        *MonteCarloSummary `json:"monte_carlo,omitempty"`
	Backtest          *BacktestSummary   `json:"backtest,omitempty"`
	CapitalEfficiency CapitalEfficiency  `json:"capital_efficiency"`
	MarketContext     MarketContext      `json:"market_context"`
}

// AnalysisRun is one completed analysis request, persisted for the history
// and performance read models.
type AnalysisRun struct {
	RunID       int64     `json:"run_id"`
	PoolID      string    `json:"pool_id"`
	Fingerprint string    `json:"fingerprint"`
	LatencyMs   float64   `json:"latency_ms"`
	FromCache   bool      `json:"from_cache"`
	Timestamp   time.Time `json:"timestamp"`
}
