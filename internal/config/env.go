package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// loadEnvFile loads .env.<APP_ENV> (or .env.local by default) into the process environment.
// Missing files are not an error; variables already set win over file values.
func loadEnvFile(logger *zap.Logger) string {
	appEnv := getEnv("APP_ENV", "local")

	envFileName := fmt.Sprintf(".env.%s", appEnv)
	if _, err := os.Stat(envFileName); err != nil {
		if logger != nil {
			logger.Warn("No .env file found for environment, relying on environment variables or defaults",
				zap.String("environment", appEnv), zap.String("file", envFileName))
		}
		return appEnv
	}
	if err := godotenv.Load(envFileName); err != nil {
		if logger != nil {
			logger.Warn("Error loading .env file, continuing with environment variables", zap.String("file", envFileName), zap.Error(err))
		}
	} else if logger != nil {
		logger.Info("Loaded configuration", zap.String("file", envFileName))
	}
	return appEnv
}

// Helper function to get env var or default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Helper function to get env var as int or default
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper function to get env var as bool or default
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "dpanic": true, "panic": true, "fatal": true}

func normalizeLogLevel(level string, logger *zap.Logger) string {
	if validLogLevels[level] {
		return level
	}
	if logger != nil {
		logger.Warn("Invalid LOG_LEVEL specified, defaulting to 'info'", zap.String("invalidLevel", level))
	}
	return "info"
}
