package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	WorkdirRoot string
	DockerBin   string
	LogLevel    string
}

// Load loads configuration from environment variables.
// Automatically loads .env file if present.
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	return &Config{
		WorkdirRoot: getEnv("AIRGAP_WORKDIR", ""),
		DockerBin:   getEnv("DOCKER_BIN", "docker"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
