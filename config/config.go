package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	RegistryURL     string
	RegistryToken   string
	RegistrySecret  string
	RegistryTimeout time.Duration

	SyncEnabled     bool
	SyncInterval    time.Duration
	SyncConcurrency int
	SyncLockTTL     time.Duration
	DefaultPolicy   string

	RedisURL string

	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	SMTPFrom  string
	PublicURL string

	CORSAllowedOrigins []string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intFromEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	registryTimeout, err := durationFromEnv("REGISTRY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	syncEnabled, err := boolFromEnv("SYNC_ENABLED", false)
	if err != nil {
		return nil, err
	}
	syncInterval, err := durationFromEnv("SYNC_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	syncConcurrency, err := intFromEnv("SYNC_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	if syncConcurrency < 1 {
		return nil, fmt.Errorf("SYNC_CONCURRENCY must be positive, got %d", syncConcurrency)
	}
	syncLockTTL, err := durationFromEnv("SYNC_LOCK_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	smtpPort, err := intFromEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		RegistryURL:     strings.TrimRight(os.Getenv("REGISTRY_URL"), "/"),
		RegistryToken:   os.Getenv("REGISTRY_TOKEN"),
		RegistrySecret:  os.Getenv("REGISTRY_SECRET"),
		RegistryTimeout: registryTimeout,

		SyncEnabled:     syncEnabled,
		SyncInterval:    syncInterval,
		SyncConcurrency: syncConcurrency,
		SyncLockTTL:     syncLockTTL,
		DefaultPolicy:   getEnvOrDefault("DEFAULT_POLICY", "DFV"),

		RedisURL: os.Getenv("REDIS_URL"),

		SMTPHost:  os.Getenv("SMTP_HOST"),
		SMTPPort:  smtpPort,
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		SMTPFrom:  os.Getenv("SMTP_FROM"),
		PublicURL: strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

// ArchiveEnabled сообщает, заданы ли все параметры R2 для архива отчётов синхронизации.
func (c *Config) ArchiveEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intFromEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return v, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
