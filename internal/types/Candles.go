package types

import "time"

// Candle is one OHLCV bar. The backend reports candle timestamps in Unix
// seconds; the client converts them to time.Time at the decode boundary.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	VolumeUSD float64   `json:"volume_usd"`
}
