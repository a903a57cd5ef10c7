package config

import (
	"fmt"
	"os"
)

// Config holds all configuration for the console service
type Config struct {
	// HTTP Server
	HTTPAddr          string
	RateLimitRPS      int
	RequestTimeoutSec int

	// Solver backend
	SolverBaseURL       string
	SolverRequestSec    int
	SolverMaxConcurrent int

	// Database
	MySQLDSN string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cache Keys
	InventoryCacheKey string
	SolverHealthKey   string

	// Feature Flags
	EnableSwagger bool
}

// Load reads configuration from environment variables with sensible defaults
func Load() Config {
	return Config{
		// HTTP
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		RateLimitRPS:      getEnvInt("RATE_LIMIT_RPS", 100),
		RequestTimeoutSec: getEnvInt("REQUEST_TIMEOUT_SEC", 60),

		// Solver
		SolverBaseURL:       getEnv("SOLVER_BASE_URL", "http://127.0.0.1:5000"),
		SolverRequestSec:    getEnvInt("SOLVER_REQUEST_SEC", 30),
		SolverMaxConcurrent: getEnvInt("SOLVER_MAX_CONCURRENT", 8),

		// MySQL
		MySQLDSN: getEnv("MYSQL_DSN", "root:password@tcp(127.0.0.1:3306)/timetable_console?parseTime=true"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Cache
		InventoryCacheKey: getEnv("INVENTORY_CACHE_KEY", "solver:inventory"),
		SolverHealthKey:   getEnv("SOLVER_HEALTH_KEY", "solver:health"),

		// Features
		EnableSwagger: getEnvBool("ENABLE_SWAGGER", true),
	}
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
	var out int
	_, err := fmt.Sscanf(v, "%d", &out)
	if err != nil {
		return fallback
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1" || v == "yes"
}
