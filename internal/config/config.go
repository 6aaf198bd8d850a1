// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. When set, the server
	// runs in synced mode: records and media live in Postgres and other
	// devices' writes arrive live. When empty, the server runs local-only
	// against LocalDBPath.
	DatabaseURL string

	// LocalDBPath is the SQLite file used in local-only mode.
	// Defaults to "travel-logbook.db".
	LocalDBPath string

	// OwnerID is the identity whose records this server session owns.
	// Defaults to "local". In synced mode set it to the authenticated
	// user's ID.
	OwnerID string

	// BaseURL is the externally reachable server root used to mint media
	// URLs. Defaults to "http://localhost:" + Port.
	BaseURL string

	// MaxUploadBytes caps media upload request bodies. Defaults to 32 MiB.
	MaxUploadBytes int64

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string
}

// Synced reports whether the remote multi-device backend is configured.
// The decision is made once here; nothing downstream branches on it.
func (c Config) Synced() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from environment variables and returns a Config.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LocalDBPath: getEnv("LOCAL_DB_PATH", "travel-logbook.db"),
		OwnerID:     getEnv("OWNER_ID", "local"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}
	cfg.BaseURL = getEnv("BASE_URL", "http://localhost:"+cfg.Port)

	maxUpload := getEnv("MAX_UPLOAD_BYTES", "33554432")
	n, err := strconv.ParseInt(maxUpload, 10, 64)
	if err != nil || n <= 0 {
		return Config{}, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", maxUpload)
	}
	cfg.MaxUploadBytes = n

	if strings.Contains(cfg.OwnerID, ":") {
		// The change-notification payload uses ':' as its separator.
		return Config{}, fmt.Errorf("OWNER_ID must not contain ':'")
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
