package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AllowedOrigin string

	// "redis" или "memory" (локальный запуск без Redis)
	StoreBackend  string
	RedisAddr     string
	RedisPassword string

	LogLevel  string
	LogFormat string
}

// Load читает конфигурацию из окружения; .env подхватывается, если есть
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort:       getEnv("APP_PORT", "3001"),
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		StoreBackend:  getEnv("STORE_BACKEND", "redis"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
