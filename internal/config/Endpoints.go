package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// BackendAPI is the base URL of the analytics backend.
	BackendAPI string
	// BackendTimeout is the fixed wall-clock timeout per backend call.
	BackendTimeout time.Duration
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	BackendAPI, err = getEnv("BACKEND_API")
	if err != nil {
		return err
	}
	BackendAPI = strings.TrimRight(BackendAPI, "/")

	timeoutSeconds, err := getEnvAsIntOrDefault("BACKEND_TIMEOUT_SECONDS", 30)
	if err != nil {
		return err
	}
	BackendTimeout = time.Duration(timeoutSeconds) * time.Second

	log.Debug().
		Str("BackendAPI", BackendAPI).
		Dur("BackendTimeout", BackendTimeout).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
