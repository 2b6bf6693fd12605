package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, shared by the exam client and
// the reference gateway.
type Config struct {
	// Gateway server settings.
	ServerPort string
	GinMode    string
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string

	// Client settings.
	GatewayURL    string
	AttemptDBPath string
	PollInterval  time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		GatewayURL:     getEnv("GATEWAY_URL", "http://localhost:8080"),
		AttemptDBPath:  getEnv("ATTEMPT_DB_PATH", defaultAttemptDBPath()),
		PollInterval:   time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3)) * time.Second,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
	}
}

// defaultAttemptDBPath keeps the attempt database in the user cache dir so a
// reload (or a whole new process) finds the in-progress attempt.
func defaultAttemptDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "attempt.db"
	}
	return dir + "/examsession/attempt.db"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
