/*

Historical OHLCV retrieval. The backend reports candle timestamps in Unix
seconds; they are converted to time.Time here, and obviously broken candles
(non-positive prices, inverted high/low) are rejected rather than passed on
to charting or caching.

*/

package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/saucerview/saucerview/internal/types"
)

type ohlcvResponse struct {
	OHLCV []struct {
		Timestamp int64   `json:"timestamp"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Close     float64 `json:"close"`
		VolumeUSD float64 `json:"volume_usd"`
	} `json:"ohlcv"`
}

// OHLCV fetches a candle series for one pool.
func (c *Client) OHLCV(ctx context.Context, poolID, timeframe string, lookbackDays int) ([]types.Candle, error) {
	query := url.Values{
		"pool_id":       {poolID},
		"timeframe":     {timeframe},
		"lookback_days": {strconv.Itoa(lookbackDays)},
	}

	var raw ohlcvResponse
	if err := c.get(ctx, "/ohlcv", query, &raw); err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(raw.OHLCV))
	for i, bar := range raw.OHLCV {
		if err := validateCandle(bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close); err != nil {
			return nil, fmt.Errorf("invalid candle %d for pool %s: %w", i, poolID, err)
		}
		candles = append(candles, types.Candle{
			Timestamp: time.Unix(bar.Timestamp, 0).UTC(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			VolumeUSD: bar.VolumeUSD,
		})
	}

	c.log.Debug().
		Str("pool", poolID).
		Str("timeframe", timeframe).
		Int("candles", len(candles)).
		Msg("Retrieved OHLCV series")
	return candles, nil
}

func validateCandle(ts int64, open, high, low, close float64) error {
	if ts <= 0 {
		return fmt.Errorf("invalid timestamp %d", ts)
	}
	for name, price := range map[string]float64{"open": open, "high": high, "low": low, "close": close} {
		if price <= 0 {
			return fmt.Errorf("%s price must be positive: %f", name, price)
		}
	}
	if high < low {
		return fmt.Errorf("high (%f) below low (%f)", high, low)
	}
	if close < low || close > high {
		return fmt.Errorf("close (%f) outside range [%f, %f]", close, low, high)
	}
	return nil
}
