package config

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// LoadEnv reads the .env file when present. Missing files are fine in
// containerized deployments where the environment comes from the runtime.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		if Logger != nil {
			Logger.Warn("No .env file found, relying on process environment", zap.Error(err))
		}
	}
}

// GetEnv returns the environment value for key, or fallback when unset.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
