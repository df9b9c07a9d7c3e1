// Package config holds server defaults and environment-driven settings.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/clinilog/ecmotrend/pkg/schema"
)

// Server defaults
const (
	DefaultPort        = "8080"
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
)

// Analysis defaults. The rolling window and trend span are caller-supplied
// query parameters; these are the values used when the caller omits them.
const (
	DefaultSmoothingWindow = 3
	DefaultTrendDays       = 7
)

// Upload limits
const (
	MaxRestoreBytes = 8 << 20 // 8 MB of CSV is years of bedside entries
	MaxEditRows     = 10000
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 64
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
)

// Config is the resolved server configuration for one session.
type Config struct {
	Port    string
	Schema  schema.Version
	LogFile string // empty disables file logging
}

// Load resolves configuration from a .env file (when present) and the
// environment. Unset values fall back to defaults.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return Config{
		Port:    getEnv("PORT", DefaultPort),
		Schema:  schema.ByName(os.Getenv("ECMOTREND_SCHEMA")),
		LogFile: os.Getenv("ECMOTREND_LOG_FILE"),
	}
}

// getEnv gets a string from the environment or returns the default.
func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// GetEnvInt gets an int from the environment or returns the default.
func GetEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}
