/*

Strategy analysis endpoints. The advanced-lp-strategy call is the expensive
one: the backend runs scenario projections, and optionally a Monte Carlo
simulation and a historical backtest, per request. Callers are expected to
go through the state cache rather than hitting this directly.

*/

package backend

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/saucerview/saucerview/internal/types"
)

// Analyze requests a full LP strategy analysis.
func (c *Client) Analyze(ctx context.Context, params types.StrategyParams) (*types.AnalysisResult, error) {
	query := url.Values{
		"pool_id":           {params.PoolID},
		"price_lower":       {formatFloat(params.PriceLower)},
		"price_upper":       {formatFloat(params.PriceUpper)},
		"liquidity_usd":     {formatFloat(params.LiquidityUSD)},
		"bear_case_drop":    {formatFloat(params.BearCaseDrop)},
		"bull_case_rise":    {formatFloat(params.BullCaseRise)},
		"time_horizon_days": {strconv.Itoa(params.TimeHorizonDays)},
		"advanced_mode":     {strconv.FormatBool(params.AdvancedMode)},
		"backtest_mode":     {strconv.FormatBool(params.BacktestMode)},
	}

	var result types.AnalysisResult
	if err := c.get(ctx, "/advanced-lp-strategy", query, &result); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("pool", params.PoolID).
		Int("scenarios", len(result.Scenarios)).
		Bool("monte_carlo", result.MonteCarlo != nil).
		Bool("backtest", result.Backtest != nil).
		Msg("Retrieved strategy analysis")
	return &result, nil
}

// RangeComparison fetches the backend's range-comparison chart payload.
// The payload is chart data rendered client-side and is passed through opaque.
func (c *Client) RangeComparison(ctx context.Context, params types.StrategyParams) (json.RawMessage, error) {
	query := url.Values{
		"pool_id":       {params.PoolID},
		"price_lower":   {formatFloat(params.PriceLower)},
		"price_upper":   {formatFloat(params.PriceUpper)},
		"liquidity_usd": {formatFloat(params.LiquidityUSD)},
	}
	var raw json.RawMessage
	if err := c.get(ctx, "/range-comparison-chart", query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// LiquidityDistribution fetches the liquidity depth chart for one pool.
func (c *Client) LiquidityDistribution(ctx context.Context, poolID string) (json.RawMessage, error) {
	query := url.Values{"pool_id": {poolID}}
	var raw json.RawMessage
	if err := c.get(ctx, "/liquidity-distribution", query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
