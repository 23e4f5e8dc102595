package web

import (
	"bufio"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/saucerview/saucerview/internal/backend"
	"github.com/saucerview/saucerview/internal/dashboard"
	"github.com/saucerview/saucerview/internal/logger"
	"github.com/saucerview/saucerview/internal/offline"
	"github.com/saucerview/saucerview/internal/prefs"
	"github.com/saucerview/saucerview/internal/state"
	"github.com/saucerview/saucerview/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

//go:embed static/*
var staticFiles embed.FS

//go:embed static/index.html
var dashboardHTML []byte

// WebServer handles HTTP requests for the LP range-analysis dashboard.
type WebServer struct {
	router *mux.Router
	port   string
	svc    *dashboard.Service
	worker *offline.Worker
	prefs  *prefs.Store
	hub    *EventHub
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, svc *dashboard.Service, worker *offline.Worker, prefStore *prefs.Store) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		svc:    svc,
		worker: worker,
		prefs:  prefStore,
		hub:    NewEventHub(worker),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Static files
	staticHandler := http.FileServer(http.FS(staticFiles))
	ws.router.PathPrefix("/static/").Handler(http.StripPrefix("/", staticHandler))

	// Dashboard routes
	ws.router.HandleFunc("/", ws.handleDashboard).Methods("GET")
	ws.router.HandleFunc("/dashboard", ws.handleDashboard).Methods("GET")

	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Websocket event feed (sync notifications to open dashboard tabs)
	ws.router.HandleFunc("/ws", ws.hub.handleWebsocket)

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/validate", ws.handleValidatePool).Methods("GET")
	api.HandleFunc("/pools/probe", ws.handleProbePool).Methods("GET")
	api.HandleFunc("/pools/discover", ws.handleDiscoverPools).Methods("GET")
	api.HandleFunc("/ohlcv", ws.handleGetOHLCV).Methods("GET")
	api.HandleFunc("/analysis", ws.handleGetAnalysis).Methods("GET")
	api.HandleFunc("/range-comparison", ws.handleRangeComparison).Methods("GET")
	api.HandleFunc("/liquidity-distribution", ws.handleLiquidityDistribution).Methods("GET")
	api.HandleFunc("/performance", ws.handleGetPerformance).Methods("GET")
	api.HandleFunc("/history", ws.handleGetHistory).Methods("GET")
	api.HandleFunc("/preferences", ws.handleGetPreferences).Methods("GET")
	api.HandleFunc("/preferences", ws.handlePutPreferences).Methods("PUT")
	api.HandleFunc("/cache/clear", ws.handleClearCache).Methods("POST")
	api.HandleFunc("/offline/sync", ws.handleOfflineSync).Methods("POST")
	api.HandleFunc("/offline/message", ws.handleOfflineMessage).Methods("POST")
	api.HandleFunc("/offline/analysis", ws.handleOfflineAnalysis).Methods("GET")

	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the full handler chain including CORS.
func (ws *WebServer) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(ws.router)
}

// Start starts the web server and the websocket event pump.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	go ws.hub.Run()

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns service health, including backend reachability and
// the offline worker's lifecycle state.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	backendHealthy := true
	backendStatus := "unknown"
	if health, err := ws.svc.BackendHealth(ctx); err != nil {
		backendHealthy = false
		backendStatus = "unreachable"
	} else {
		backendStatus = health.Status
	}

	dbHealthy := state.Available()
	if dbHealthy && state.TestDBConnection() != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	if !backendHealthy {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "saucerview-dashboard",
			"version": "1.0.0",
		},
		"backend": map[string]interface{}{
			"healthy": backendHealthy,
			"status":  backendStatus,
		},
		"database_healthy": dbHealthy,
		"offline_worker": map[string]interface{}{
			"state":         ws.worker.State().String(),
			"queued_writes": ws.worker.QueuedCount(),
		},
	}

	statusCode := http.StatusOK
	if !backendHealthy {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleDashboard serves the main dashboard HTML
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(dashboardHTML)
}

func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools, err := ws.svc.Pools(r.Context())
	if err != nil {
		ws.writeBackendError(w, err, "Failed to retrieve pools")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	})
}

func (ws *WebServer) handleValidatePool(w http.ResponseWriter, r *http.Request) {
	poolID := r.URL.Query().Get("pool_id")
	if poolID == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "pool_id is required")
		return
	}

	validation, err := ws.svc.ValidatePool(r.Context(), poolID)
	if err != nil {
		ws.writeBackendError(w, err, "Failed to validate pool")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, validation)
}

func (ws *WebServer) handleProbePool(w http.ResponseWriter, r *http.Request) {
	poolID := r.URL.Query().Get("pool_id")
	if poolID == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "pool_id is required")
		return
	}

	payload, err := ws.svc.ProbePool(r.Context(), poolID)
	if err != nil {
		ws.writeBackendError(w, err, "Failed to probe pool")
		return
	}
	ws.writeRawJSON(w, payload)
}

func (ws *WebServer) handleDiscoverPools(w http.ResponseWriter, r *http.Request) {
	payload, err := ws.svc.DiscoverPools(r.Context())
	if err != nil {
		ws.writeBackendError(w, err, "Failed to discover active pools")
		return
	}
	ws.writeRawJSON(w, payload)
}

func (ws *WebServer) handleGetOHLCV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	poolID := q.Get("pool_id")
	if poolID == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "pool_id is required")
		return
	}

	timeframe := q.Get("timeframe")
	if timeframe == "" {
		timeframe = ws.prefs.Current().DefaultTimeframe
	}

	lookbackDays := 30
	if raw := q.Get("lookback_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "lookback_days must be a positive integer")
			return
		}
		lookbackDays = parsed
	}

	candles, err := ws.svc.OHLCV(r.Context(), poolID, timeframe, lookbackDays)
	if err != nil {
		ws.writeBackendError(w, err, "Failed to retrieve OHLCV data")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id":   poolID,
		"timeframe": timeframe,
		"candles":   candles,
		"count":     len(candles),
	})
}

func (ws *WebServer) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	params, err := ws.parseStrategyParams(r)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, fromCache, err := ws.svc.Analyze(r.Context(), params)
	if err != nil {
		ws.writeBackendError(w, err, "Failed to run analysis")
		return
	}

	w.Header().Set("X-Cache", cacheHeader(fromCache))
	ws.writeJSONResponse(w, http.StatusOK, result)
}

func cacheHeader(fromCache bool) string {
	if fromCache {
		return "HIT"
	}
	return "MISS"
}

func (ws *WebServer) handleRangeComparison(w http.ResponseWriter, r *http.Request) {
	params, err := ws.parseStrategyParams(r)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := ws.svc.RangeComparison(r.Context(), params)
	if err != nil {
		ws.writeBackendError(w, err, "Failed to retrieve range comparison")
		return
	}
	ws.writeRawJSON(w, payload)
}

func (ws *WebServer) handleLiquidityDistribution(w http.ResponseWriter, r *http.Request) {
	poolID := r.URL.Query().Get("pool_id")
	if poolID == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "pool_id is required")
		return
	}

	payload, err := ws.svc.LiquidityDistribution(r.Context(), poolID)
	if err != nil {
		ws.writeBackendError(w, err, "Failed to retrieve liquidity distribution")
		return
	}
	ws.writeRawJSON(w, payload)
}

func (ws *WebServer) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"cache":     ws.svc.Metrics(),
		"timestamp": time.Now().UTC(),
	}

	if state.Available() {
		if summary, err := state.GetRunSummary(); err == nil {
			response["history"] = summary
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if !state.Available() {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "History persistence is not configured")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	runs, err := state.GetRecentRuns(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent analysis runs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	})
}

func (ws *WebServer) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.prefs.Current())
}

func (ws *WebServer) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var p prefs.Preferences
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid preferences payload")
		return
	}
	if p.CacheExpiryMinutes <= 0 || p.MaxCacheSize <= 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "cache_expiry_minutes and max_cache_size must be positive")
		return
	}

	if err := ws.prefs.Update(p); err != nil {
		webLogger.Error().Err(err).Msg("Failed to persist preferences")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to save preferences")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.prefs.Current())
}

func (ws *WebServer) handleClearCache(w http.ResponseWriter, r *http.Request) {
	ws.svc.ClearCache()
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

func (ws *WebServer) handleOfflineSync(w http.ResponseWriter, r *http.Request) {
	replayed, err := ws.worker.Sync(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Background sync pass failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"replayed":  replayed,
		"remaining": ws.worker.QueuedCount(),
	})
}

// handleOfflineMessage is the worker command channel: SKIP_WAITING and
// CACHE_ANALYSIS, matching the offline message protocol.
func (ws *WebServer) handleOfflineMessage(w http.ResponseWriter, r *http.Request) {
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid message payload")
		return
	}

	var cmd offline.Command
	switch msg.Type {
	case "SKIP_WAITING":
		cmd = offline.SkipWaiting{}
	case "CACHE_ANALYSIS":
		if len(msg.Payload) == 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "CACHE_ANALYSIS requires a payload")
			return
		}
		cmd = offline.CacheAnalysis{Payload: msg.Payload}
	default:
		ws.writeErrorResponse(w, http.StatusBadRequest, "Unknown message type: "+msg.Type)
		return
	}

	if err := ws.worker.Handle(cmd); err != nil {
		ws.writeErrorResponse(w, http.StatusConflict, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"accepted": true})
}

func (ws *WebServer) handleOfflineAnalysis(w http.ResponseWriter, r *http.Request) {
	payload, ok := ws.worker.CachedAnalysis()
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "No analysis cached for offline use")
		return
	}
	ws.writeRawJSON(w, payload)
}

// parseStrategyParams reads the strategy form from query parameters.
func (ws *WebServer) parseStrategyParams(r *http.Request) (types.StrategyParams, error) {
	q := r.URL.Query()
	defaults := ws.prefs.Current()

	params := types.StrategyParams{
		PoolID:          q.Get("pool_id"),
		TimeHorizonDays: defaults.Strategy.TimeHorizonDays,
		AdvancedMode:    defaults.AdvancedMode,
		BacktestMode:    defaults.BacktestMode,
	}
	if params.PoolID == "" {
		return params, errors.New("pool_id is required")
	}

	var err error
	if params.PriceLower, err = requiredFloat(q.Get("price_lower"), "price_lower"); err != nil {
		return params, err
	}
	if params.PriceUpper, err = requiredFloat(q.Get("price_upper"), "price_upper"); err != nil {
		return params, err
	}
	if params.PriceLower >= params.PriceUpper {
		return params, errors.New("price_lower must be below price_upper")
	}
	if params.LiquidityUSD, err = optionalFloat(q.Get("liquidity_usd"), defaults.Strategy.LiquidityUSD); err != nil {
		return params, errors.New("liquidity_usd must be a number")
	}
	if params.BearCaseDrop, err = optionalFloat(q.Get("bear_case_drop"), defaults.Strategy.BearCaseDrop); err != nil {
		return params, errors.New("bear_case_drop must be a number")
	}
	if params.BullCaseRise, err = optionalFloat(q.Get("bull_case_rise"), defaults.Strategy.BullCaseRise); err != nil {
		return params, errors.New("bull_case_rise must be a number")
	}
	if raw := q.Get("time_horizon_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return params, errors.New("time_horizon_days must be a positive integer")
		}
		params.TimeHorizonDays = days
	}
	if raw := q.Get("advanced_mode"); raw != "" {
		params.AdvancedMode = raw == "true"
	}
	if raw := q.Get("backtest_mode"); raw != "" {
		params.BacktestMode = raw == "true"
	}

	return params, nil
}

func requiredFloat(raw, name string) (float64, error) {
	if raw == "" {
		return 0, errors.New(name + " is required")
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		return 0, errors.New(name + " must be a positive number")
	}
	return val, nil
}

func optionalFloat(raw string, fallback float64) (float64, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// writeBackendError maps normalized backend errors onto HTTP statuses.
func (ws *WebServer) writeBackendError(w http.ResponseWriter, err error, fallback string) {
	webLogger.Error().Err(err).Msg(fallback)

	switch {
	case errors.Is(err, backend.ErrNotFound):
		ws.writeErrorResponse(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, backend.ErrTimeout):
		ws.writeErrorResponse(w, http.StatusGatewayTimeout, "request timeout")
	case errors.Is(err, backend.ErrServer):
		ws.writeErrorResponse(w, http.StatusBadGateway, "server error")
	default:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			ws.writeErrorResponse(w, http.StatusBadGateway, apiErr.Message)
			return
		}
		ws.writeErrorResponse(w, http.StatusBadGateway, fallback)
	}
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (ws *WebServer) writeRawJSON(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		webLogger.Error().Err(err).Msg("Failed to write JSON payload")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Hijack is required for the websocket upgrade to pass through the wrapper.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
