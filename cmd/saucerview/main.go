package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/saucerview/saucerview/internal/backend"
	"github.com/saucerview/saucerview/internal/config"
	"github.com/saucerview/saucerview/internal/dashboard"
	"github.com/saucerview/saucerview/internal/logger"
	"github.com/saucerview/saucerview/internal/offline"
	"github.com/saucerview/saucerview/internal/prefs"
	"github.com/saucerview/saucerview/internal/state"
	"github.com/saucerview/saucerview/internal/statecache"
	"github.com/saucerview/saucerview/internal/types"
	"github.com/saucerview/saucerview/internal/web"
)

func main() {
	// Load .env file if present. Real deployments set env vars directly.
	_ = godotenv.Load()

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log := logger.GetForComponent("main")

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// History persistence is optional: without DB_HOST the dashboard runs
	// with no run history and /api/history reports unavailable.
	var history dashboard.HistoryStore
	if os.Getenv("DB_HOST") != "" {
		dbPort, err := strconv.Atoi(getenvDefault("DB_PORT", "5432"))
		if err != nil {
			log.Fatal().Err(err).Msg("DB_PORT must be a valid int")
		}
		dbCfg := state.DBConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     dbPort,
			User:     getenvDefault("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getenvDefault("DB_NAME", "saucerview"),
			SSLMode:  getenvDefault("DB_SSLMODE", "disable"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer state.CloseDB()

		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		history = runRecorder{}
	} else {
		log.Info().Msg("DB_HOST not set, running without analysis run history")
	}

	// Env-configured cache tuning seeds the preferences; a persisted
	// preferences file still wins.
	seed := prefs.Defaults()
	seed.CacheExpiryMinutes = int(config.CacheExpiry / time.Minute)
	seed.MaxCacheSize = config.MaxCacheSize
	prefStore := prefs.NewStore(config.DataDir, seed)
	cache := statecache.New(prefStore)

	worker, err := offline.NewWorker(offline.Config{
		Version:        config.OfflineCacheVersion,
		StaticManifest: config.StaticManifest,
		Buckets:        offline.NewFileBuckets(config.OfflineCacheDir),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create offline worker")
	}

	installCtx, cancelInstall := context.WithTimeout(context.Background(), 30*time.Second)
	if err := worker.Install(installCtx); err != nil {
		// A failed install leaves this worker version redundant and the
		// transport passing requests straight through to the network.
		log.Warn().Err(err).Msg("Offline worker install failed, continuing without offline support")
	} else if err := worker.Activate(); err != nil {
		log.Warn().Err(err).Msg("Offline worker activation failed")
	}
	cancelInstall()

	client := backend.NewClient(config.BackendAPI, config.BackendTimeout, offline.NewTransport(worker, nil))
	svc := dashboard.New(cache, client, history)

	server := web.NewWebServer(config.WebPort, svc, worker, prefStore)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("Web server stopped unexpectedly")
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}
}

// runRecorder adapts the state package's package-level store to the
// dashboard's HistoryStore interface.
type runRecorder struct{}

func (runRecorder) RecordAnalysisRun(run types.AnalysisRun) error {
	return state.RecordAnalysisRun(run)
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
