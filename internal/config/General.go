package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the port the dashboard HTTP server listens on.
	WebPort string

	// CacheExpiry is the default time-to-live for state cache entries.
	// User preferences may override it at runtime.
	CacheExpiry time.Duration
	// MaxCacheSize is the default entry-count bound for the state cache.
	MaxCacheSize int

	// OfflineCacheDir is the directory holding the offline cache buckets.
	OfflineCacheDir string
	// OfflineCacheVersion names the current bucket generation. Bumping it
	// rotates all persisted buckets on the next activation.
	OfflineCacheVersion string
	// StaticManifest is the list of URLs pre-fetched into the static bucket
	// during offline worker install.
	StaticManifest []string

	// DataDir is where persisted user preferences live.
	DataDir string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// BACKEND_API is required; everything else has a sensible default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	if err = loadEndpointConfig(); err != nil {
		return err
	}

	WebPort = getEnvOrDefault("WEB_PORT", "8080")

	expiryMinutes, err := getEnvAsIntOrDefault("CACHE_EXPIRY_MINUTES", 5)
	if err != nil {
		return err
	}
	CacheExpiry = time.Duration(expiryMinutes) * time.Minute

	MaxCacheSize, err = getEnvAsIntOrDefault("MAX_CACHE_SIZE", 50)
	if err != nil {
		return err
	}

	OfflineCacheDir = getEnvOrDefault("OFFLINE_CACHE_DIR", defaultCacheDir())
	OfflineCacheVersion = getEnvOrDefault("OFFLINE_CACHE_VERSION", "v2")

	if manifest := os.Getenv("STATIC_MANIFEST"); manifest != "" {
		for _, u := range strings.Split(manifest, ",") {
			if u = strings.TrimSpace(u); u != "" {
				StaticManifest = append(StaticManifest, u)
			}
		}
	}

	DataDir = getEnvOrDefault("DATA_DIR", filepath.Join(defaultCacheDir(), "data"))

	log.Debug().
		Str("BackendAPI", BackendAPI).
		Str("WebPort", WebPort).
		Dur("CacheExpiry", CacheExpiry).
		Int("MaxCacheSize", MaxCacheSize).
		Str("OfflineCacheDir", OfflineCacheDir).
		Msg("Configuration loaded successfully.")

	return nil
}

func defaultCacheDir() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "saucerview")
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable with a fallback.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsIntOrDefault retrieves an environment variable as an int with a fallback.
// Returns error only when the variable is set but not a valid int.
func getEnvAsIntOrDefault(key string, fallback int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}
