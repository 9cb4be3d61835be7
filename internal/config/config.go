package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EncryptionKey is the raw 32-byte AES-256 key for credential sealing,
	// decoded from the base64 ENCRYPTION_KEY variable.
	EncryptionKey []byte

	PlatformName         string
	PlatformBaseURL      string
	PlatformAuthURL      string
	PlatformTokenURL     string
	PlatformClientID     string
	PlatformClientSecret string
	PlatformRedirectURI  string
	PlatformScopes       []string

	APIConcurrency        int
	CollectorFanout       int
	TokenRefreshThreshold time.Duration

	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	keyRaw := strings.TrimSpace(os.Getenv("ENCRYPTION_KEY"))
	if keyRaw == "" {
		return Config{}, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(keyRaw)
	if err != nil {
		return Config{}, fmt.Errorf("ENCRYPTION_KEY must be base64: %w", err)
	}
	if len(key) != 32 {
		return Config{}, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}

	cfg := Config{
		Environment: getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "adsight-collector"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		EncryptionKey: key,

		PlatformName:         getEnv("PLATFORM_NAME", "tiktok"),
		PlatformBaseURL:      os.Getenv("PLATFORM_BASE_URL"),
		PlatformAuthURL:      os.Getenv("PLATFORM_AUTH_URL"),
		PlatformTokenURL:     os.Getenv("PLATFORM_TOKEN_URL"),
		PlatformClientID:     os.Getenv("PLATFORM_CLIENT_ID"),
		PlatformClientSecret: os.Getenv("PLATFORM_CLIENT_SECRET"),
		PlatformRedirectURI:  os.Getenv("PLATFORM_REDIRECT_URI"),
		PlatformScopes:       getList("PLATFORM_SCOPES", nil),

		APIConcurrency:        getInt("API_CONCURRENCY", 10),
		CollectorFanout:       getInt("COLLECTOR_FANOUT", 4),
		TokenRefreshThreshold: getDuration("TOKEN_REFRESH_THRESHOLD", 5*time.Minute),

		RateLimitRPM:      getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods: getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders: getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.PlatformBaseURL == "" {
		return Config{}, fmt.Errorf("PLATFORM_BASE_URL is required")
	}
	if cfg.PlatformClientID == "" || cfg.PlatformClientSecret == "" {
		return Config{}, fmt.Errorf("PLATFORM_CLIENT_ID and PLATFORM_CLIENT_SECRET are required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
