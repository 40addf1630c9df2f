package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service settings. Everything comes from the environment,
// with an optional .env file for development.
type Config struct {
	ListenAddr          string
	DiscordToken        string
	DiscordBaseURL      string
	MaxConcurrentOps    int
	ThrottleInterval    time.Duration
	RetentionWindow     time.Duration
	SweepSchedule       string
	MaintenanceSchedule string
	ShutdownTimeout     time.Duration
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return Config{
		ListenAddr:          getEnv("LISTEN_ADDR", ":8080"),
		DiscordToken:        os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordBaseURL:      os.Getenv("DISCORD_API_BASE_URL"), // empty means the real API
		MaxConcurrentOps:    getEnvInt("BULK_MAX_CONCURRENT", 3),
		ThrottleInterval:    getEnvDuration("BULK_THROTTLE_INTERVAL", 100*time.Millisecond),
		RetentionWindow:     getEnvDuration("BULK_RETENTION_WINDOW", 24*time.Hour),
		SweepSchedule:       getEnv("SWEEP_SCHEDULE", ""),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", ""),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// getEnv retrieves a string from environment variable with default fallback
func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt retrieves an integer from environment variable with default fallback
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration from environment variable with default fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultValue
}
