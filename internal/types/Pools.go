/*

Pool metadata as reported by the analytics backend. The backend keys its
known_pools map by display name; the client flattens that map into a list
and keeps only entries that carry a usable pool_id.

*/

package types

type Pool struct {
	PoolID     string  `json:"pool_id"`      // SaucerSwap V2 contract id, e.g. "0.0.3948521"
	Name       string  `json:"name"`         // e.g. "HBAR/USDC 0.15%"
	TokenA     string  `json:"token_a"`      // symbol of token0
	TokenB     string  `json:"token_b"`      // symbol of token1
	FeeTierBps int     `json:"fee_tier_bps"` // fee tier in basis points
	TvlUSD     float64 `json:"tvl_usd"`
	VolumeUSD  float64 `json:"volume_24h_usd"`
	Active     bool    `json:"active"`
}

// PoolValidation is the outcome of probing a pool id against the backend.
type PoolValidation struct {
	PoolID  string `json:"pool_id"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}
