/*

Pool discovery and validation endpoints. The backend reports known pools as
a name-keyed map; entries without a pool_id are placeholder rows and are
filtered out before the list reaches the cache or the UI.

*/

package backend

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"

	"github.com/saucerview/saucerview/internal/types"
)

type knownPoolsResponse struct {
	KnownPools map[string]struct {
		PoolID     string  `json:"pool_id"`
		TokenA     string  `json:"token_a"`
		TokenB     string  `json:"token_b"`
		FeeTierBps int     `json:"fee_tier_bps"`
		TvlUSD     float64 `json:"tvl_usd"`
		VolumeUSD  float64 `json:"volume_24h_usd"`
		Active     bool    `json:"active"`
	} `json:"known_pools"`
}

// Pools fetches the known pool map and flattens it to a list sorted by
// name, keeping only entries with a pool_id.
func (c *Client) Pools(ctx context.Context) ([]types.Pool, error) {
	var raw knownPoolsResponse
	if err := c.get(ctx, "/pools", nil, &raw); err != nil {
		return nil, err
	}

	pools := make([]types.Pool, 0, len(raw.KnownPools))
	for name, fields := range raw.KnownPools {
		if fields.PoolID == "" {
			continue
		}
		pools = append(pools, types.Pool{
			PoolID:     fields.PoolID,
			Name:       name,
			TokenA:     fields.TokenA,
			TokenB:     fields.TokenB,
			FeeTierBps: fields.FeeTierBps,
			TvlUSD:     fields.TvlUSD,
			VolumeUSD:  fields.VolumeUSD,
			Active:     fields.Active,
		})
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Name < pools[j].Name })

	c.log.Debug().Int("pools", len(pools)).Msg("Retrieved pool list")
	return pools, nil
}

// TestPoolID probes a single pool id. Only test_result == "success" counts
// as valid; every other value, whatever the backend calls it, is invalid.
func (c *Client) TestPoolID(ctx context.Context, poolID string) (*types.PoolValidation, error) {
	var raw struct {
		PoolID     string `json:"pool_id"`
		TestResult string `json:"test_result"`
		Message    string `json:"message"`
	}
	query := url.Values{"pool_id": {poolID}}
	if err := c.get(ctx, "/test-pool-id", query, &raw); err != nil {
		return nil, err
	}

	return &types.PoolValidation{
		PoolID:  raw.PoolID,
		Valid:   raw.TestResult == "success",
		Message: raw.Message,
	}, nil
}

// TestAnyPool probes an arbitrary contract id not in the known pool list.
func (c *Client) TestAnyPool(ctx context.Context, poolID string) (json.RawMessage, error) {
	var raw json.RawMessage
	query := url.Values{"pool_id": {poolID}}
	if err := c.get(ctx, "/test-any-pool", query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// FindActivePools asks the backend to scan for pools with recent activity.
func (c *Client) FindActivePools(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/find-active-pools", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
