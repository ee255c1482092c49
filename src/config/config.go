package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	MaxUploadSizeBytes int64
	MaxUploadFiles     int
	MaxParallelFiles   int

	// Import preview sessions are held in memory between the upload and
	// commit steps of the wizard.
	SessionTTL time.Duration

	// External security-master lookups.
	FundSearchBaseURL   string
	QuoteLookupBaseURL  string
	ResolverTimeout     time.Duration
	ResolverCacheTTL    time.Duration
	ResolverRateLimit   float64
	ResolverRateBurst   int
	ResolverMaxAttempts int
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES value '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./wealthfolio.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxUploadSizeBytes: maxUploadSizeBytes,
		MaxUploadFiles:     getEnvInt("MAX_UPLOAD_FILES", 10),
		MaxParallelFiles:   getEnvInt("MAX_PARALLEL_FILES", 4),

		SessionTTL: getEnvDuration("IMPORT_SESSION_TTL", 30*time.Minute),

		FundSearchBaseURL:   getEnv("FUND_SEARCH_BASE_URL", "https://api.mfapi.in"),
		QuoteLookupBaseURL:  getEnv("QUOTE_LOOKUP_BASE_URL", "https://query1.finance.yahoo.com"),
		ResolverTimeout:     getEnvDuration("RESOLVER_TIMEOUT", 5*time.Second),
		ResolverCacheTTL:    getEnvDuration("RESOLVER_CACHE_TTL", 7*24*time.Hour),
		ResolverRateLimit:   getEnvFloat("RESOLVER_RATE_LIMIT", 5),
		ResolverRateBurst:   getEnvInt("RESOLVER_RATE_BURST", 10),
		ResolverMaxAttempts: getEnvInt("RESOLVER_MAX_ATTEMPTS", 2),
	}

	log.Printf("Configuration loaded. Port: %s, DB: %s, LogLevel: %s", Cfg.Port, Cfg.DatabasePath, Cfg.LogLevel)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("WARNING: Invalid %s value '%s'. Using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("WARNING: Invalid %s value '%s'. Using default %v. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("WARNING: Invalid %s duration '%s'. Using default %s. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}
