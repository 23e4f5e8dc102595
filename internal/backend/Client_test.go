package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saucerview/saucerview/internal/types"
)

func testParams() types.StrategyParams {
	return types.StrategyParams{
		PoolID:          "0.0.3948521",
		PriceLower:      0.05,
		PriceUpper:      0.08,
		LiquidityUSD:    1000,
		BearCaseDrop:    30,
		BullCaseRise:    50,
		TimeHorizonDays: 30,
	}
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(server.URL, 5*time.Second, nil)
	return client, server
}

func TestPoolsFlattensAndSorts(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pools" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"known_pools":{
			"WHBAR/USDC": {"pool_id":"0.0.3948521","token_a":"WHBAR","token_b":"USDC","fee_tier_bps":30,"tvl_usd":125000,"volume_24h_usd":40000,"active":true},
			"SAUCE/WHBAR": {"pool_id":"0.0.3964028","token_a":"SAUCE","token_b":"WHBAR","fee_tier_bps":30,"tvl_usd":80000,"volume_24h_usd":9000,"active":true},
			"PLACEHOLDER": {"pool_id":"","token_a":"X","token_b":"Y","fee_tier_bps":0,"tvl_usd":0,"volume_24h_usd":0,"active":false}
		}}`))
	})
	defer server.Close()

	pools, err := client.Pools(context.Background())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("placeholder entries must be filtered, got %d pools", len(pools))
	}
	if pools[0].Name != "SAUCE/WHBAR" || pools[1].Name != "WHBAR/USDC" {
		t.Fatalf("pools not sorted by name: %v, %v", pools[0].Name, pools[1].Name)
	}
	if pools[1].PoolID != "0.0.3948521" || pools[1].TvlUSD != 125000 {
		t.Fatalf("pool fields not mapped: %+v", pools[1])
	}
}

func TestNotFoundNormalized(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	})
	defer server.Close()

	_, err := client.Pools(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServerErrorNormalized(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := client.Health(context.Background())
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}
}

func TestTimeoutNormalized(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	})
	defer server.Close()
	client.httpClient.Timeout = 20 * time.Millisecond

	_, err := client.Health(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestOtherStatusCarriesBackendErrorField(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"pool_id is malformed"}`))
	})
	defer server.Close()

	_, err := client.Pools(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "pool_id is malformed" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestOtherStatusWithoutBodyFallsBackToStatus(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	defer server.Close()

	_, err := client.Pools(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "request failed (HTTP 418)" {
		t.Fatalf("unexpected message: %s", apiErr.Message)
	}
}

func TestTestPoolIDOnlySuccessIsValid(t *testing.T) {
	result := "success"
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pool_id"); got != "0.0.3948521" {
			t.Errorf("pool_id not forwarded, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pool_id":"0.0.3948521","test_result":"` + result + `","message":"ok"}`))
	})
	defer server.Close()

	validation, err := client.TestPoolID(context.Background(), "0.0.3948521")
	if err != nil {
		t.Fatalf("TestPoolID: %v", err)
	}
	if !validation.Valid {
		t.Fatal("test_result success must be valid")
	}

	result = "contract_error"
	validation, err = client.TestPoolID(context.Background(), "0.0.3948521")
	if err != nil {
		t.Fatalf("TestPoolID: %v", err)
	}
	if validation.Valid {
		t.Fatalf("test_result %q must be invalid", result)
	}
}

func TestOHLCVConvertsTimestamps(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("timeframe") != "1h" || q.Get("lookback_days") != "30" {
			t.Errorf("query not forwarded: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ohlcv":[
			{"timestamp":1767182400,"open":0.061,"high":0.064,"low":0.060,"close":0.063,"volume_usd":15000}
		]}`))
	})
	defer server.Close()

	candles, err := client.OHLCV(context.Background(), "0.0.3948521", "1h", 30)
	if err != nil {
		t.Fatalf("OHLCV: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	want := time.Unix(1767182400, 0).UTC()
	if !candles[0].Timestamp.Equal(want) {
		t.Fatalf("timestamp not converted: %v vs %v", candles[0].Timestamp, want)
	}
}

func TestOHLCVRejectsBrokenCandles(t *testing.T) {
	cases := map[string]string{
		"negative price": `{"ohlcv":[{"timestamp":1767182400,"open":-1,"high":2,"low":1,"close":1.5,"volume_usd":0}]}`,
		"high below low": `{"ohlcv":[{"timestamp":1767182400,"open":1,"high":1,"low":2,"close":1.5,"volume_usd":0}]}`,
		"close outside":  `{"ohlcv":[{"timestamp":1767182400,"open":1.5,"high":2,"low":1,"close":3,"volume_usd":0}]}`,
		"zero timestamp": `{"ohlcv":[{"timestamp":0,"open":1,"high":2,"low":1,"close":1.5,"volume_usd":0}]}`,
	}

	for name, payload := range cases {
		body := payload
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		})

		if _, err := client.OHLCV(context.Background(), "0.0.1", "1h", 30); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
		server.Close()
	}
}

func TestAnalyzeSendsAllParams(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		expect := map[string]string{
			"pool_id":           "0.0.3948521",
			"price_lower":       "0.05",
			"price_upper":       "0.08",
			"liquidity_usd":     "1000",
			"bear_case_drop":    "30",
			"bull_case_rise":    "50",
			"time_horizon_days": "30",
			"advanced_mode":     "true",
			"backtest_mode":     "false",
		}
		for key, want := range expect {
			if got := q.Get(key); got != want {
				t.Errorf("param %s = %q, want %q", key, got, want)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pool_id":"0.0.3948521","scenarios":[]}`))
	})
	defer server.Close()

	params := testParams()
	params.AdvancedMode = true
	if _, err := client.Analyze(context.Background(), params); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
}
