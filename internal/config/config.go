package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ContextStoreMemory = "memory"
	ContextStoreRedis  = "redis"

	maxHistoryCap = 20
)

type Config struct {
	DatabaseURL  string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string // Optional, sessions are anonymous without it
	GeminiAPIKey string // Optional, enables LLM ticket titles

	ContextStore         string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	ContextIdleTTL       time.Duration
	ContextSweepInterval time.Duration

	SearchLimit int
	MaxHistory  int
}

var AppConfig Config

// LoadConfig populates AppConfig from the environment and an optional .env file.
func LoadConfig() error {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := Config{
		DatabaseURL:  getEnv("DATABASE_URL", "support_hub.db"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		ContextStore:         strings.ToLower(getEnv("CONTEXT_STORE", ContextStoreMemory)),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		ContextIdleTTL:       getEnvAsDuration("CONTEXT_IDLE_TTL", 45*time.Minute),
		ContextSweepInterval: getEnvAsDuration("CONTEXT_SWEEP_INTERVAL", 5*time.Minute),

		SearchLimit: getEnvAsInt("SEARCH_LIMIT", 5),
		MaxHistory:  getEnvAsInt("MAX_HISTORY", maxHistoryCap),
	}

	if cfg.ContextStore != ContextStoreMemory && cfg.ContextStore != ContextStoreRedis {
		return fmt.Errorf("unsupported CONTEXT_STORE %q (want %q or %q)", cfg.ContextStore, ContextStoreMemory, ContextStoreRedis)
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	// History holds whole exchanges only and never more than 20 entries.
	if cfg.MaxHistory < 2 || cfg.MaxHistory%2 != 0 {
		log.Printf("MAX_HISTORY=%d is not a positive even number, using %d", cfg.MaxHistory, maxHistoryCap)
		cfg.MaxHistory = maxHistoryCap
	} else if cfg.MaxHistory > maxHistoryCap {
		log.Printf("MAX_HISTORY=%d exceeds the history cap, using %d", cfg.MaxHistory, maxHistoryCap)
		cfg.MaxHistory = maxHistoryCap
	}
	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET not set, all chat sessions will be anonymous")
	}

	AppConfig = cfg
	return nil
}

func (c Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
