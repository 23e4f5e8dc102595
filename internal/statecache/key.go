/*

Cache key derivation. Keys are an explicit, versioned canonicalization of
the parameters that influence the backend computation, hashed into an
opaque string. Two requests differing only in fields outside that list are
cache-equivalent by construction; adding an influencing parameter to the
backend contract requires extending the field list here and bumping
keyVersion, so the change is deliberate and reviewable.

*/

package statecache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/saucerview/saucerview/internal/types"
)

// keyVersion tags the canonical encoding. Bump whenever the influencing
// field list or its serialization changes.
const keyVersion = "v1"

// AnalysisKey derives the fingerprint for one analysis request.
//
// Influencing fields, in order: pool id, price lower, price upper,
// liquidity USD, bear case drop, bull case rise, time horizon days,
// advanced mode, backtest mode. This is exactly the query parameter set of
// the backend's /advanced-lp-strategy endpoint; anything not sent to the
// backend is deliberately excluded.
func AnalysisKey(p types.StrategyParams) string {
	fields := []string{
		keyVersion,
		"analysis",
		p.PoolID,
		canonFloat(p.PriceLower),
		canonFloat(p.PriceUpper),
		canonFloat(p.LiquidityUSD),
		canonFloat(p.BearCaseDrop),
		canonFloat(p.BullCaseRise),
		strconv.Itoa(p.TimeHorizonDays),
		canonBool(p.AdvancedMode),
		canonBool(p.BacktestMode),
	}
	return hashKey(fields)
}

// PoolsKey is the single key under which the flattened pool list is cached.
func PoolsKey() string {
	return hashKey([]string{keyVersion, "pools"})
}

// DiscoveryKey is the key for the active-pool scan result.
func DiscoveryKey() string {
	return hashKey([]string{keyVersion, "discovery"})
}

// OHLCVKey derives the key for one candle series request.
func OHLCVKey(poolID, timeframe string, lookbackDays int) string {
	return hashKey([]string{keyVersion, "ohlcv", poolID, timeframe, strconv.Itoa(lookbackDays)})
}

// canonFloat renders a float with the shortest representation that
// round-trips, so structurally equal params always serialize identically.
func canonFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func canonBool(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

func hashKey(fields []string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}
