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
	ChatStorePostgres = "postgres"
	ChatStoreRedis    = "redis"
	ChatStoreMemory   = "memory"
)

type Config struct {
	Port                 string
	DBUrl                string
	JWTSecret            string
	AppEnv               string
	LogLevel             string
	ChatStore            string
	RedisURL             string
	ChatKeyPrefix        string
	ChatPollInterval     time.Duration
	ChatSeedDemo         bool
	OTPTTL               time.Duration
	OTPMaxAttempts       int
	MailWebhookURL       string
	CORSAllowedOrigins   string
	EnableMetrics        bool
	DefaultAdminEmail    string
	DefaultAdminPassword string
	DefaultAdminName     string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		DBUrl:                getEnv("DB_URL", ""),
		JWTSecret:            jwtSecret,
		AppEnv:               normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ChatStore:            strings.ToLower(strings.TrimSpace(getEnv("CHAT_STORE", ChatStorePostgres))),
		RedisURL:             getEnv("REDIS_URL", ""),
		ChatKeyPrefix:        getEnv("CHAT_KEY_PREFIX", "voluntrack:chat"),
		ChatPollInterval:     getEnvDuration("CHAT_POLL_INTERVAL", time.Second),
		ChatSeedDemo:         getEnvBool("CHAT_SEED_DEMO", false),
		OTPTTL:               getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts:       getEnvInt("OTP_MAX_ATTEMPTS", 5),
		MailWebhookURL:       getEnv("MAIL_WEBHOOK_URL", ""),
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		EnableMetrics:        getEnvBool("ENABLE_METRICS", true),
		DefaultAdminEmail:    getEnv("DEFAULT_ADMIN_EMAIL", ""),
		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),
		DefaultAdminName:     getEnv("DEFAULT_ADMIN_NAME", "Administrator"),
	}

	switch cfg.ChatStore {
	case ChatStorePostgres, ChatStoreMemory:
	case ChatStoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when CHAT_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported CHAT_STORE %q", cfg.ChatStore)
	}
	if cfg.OTPMaxAttempts <= 0 {
		return nil, fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// UsesKVChatStore reports whether conversations live in the key-value store
// instead of PostgreSQL.
func (c *Config) UsesKVChatStore() bool {
	return c != nil && (c.ChatStore == ChatStoreRedis || c.ChatStore == ChatStoreMemory)
}

func (c *Config) BootstrapAdminEnabled() bool {
	return c != nil && c.DefaultAdminEmail != "" && c.DefaultAdminPassword != ""
}
