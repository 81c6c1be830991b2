package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// DescribeConfig configures the vision model used for image descriptions.
type DescribeConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	RatePerMin  int
	Timeout     time.Duration
	Mock        bool
}

// ServerConfig configures HTTP mode.
type ServerConfig struct {
	Addr              string
	MaxConcurrentJobs int64
	MaxUploadMB       int64
}

// StoreConfig selects the session backend. Empty RedisURL keeps sessions in memory.
type StoreConfig struct {
	RedisURL  string
	KeyPrefix string
	TTL       time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Describe DescribeConfig
	Server   ServerConfig
	Store    StoreConfig
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) Config {
	// .env 不存在时忽略
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_classnotes",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Describe = DescribeConfig{
		APIKey:      getEnv("OPENAI_API_KEY", ""),
		BaseURL:     getEnv("OPENAI_BASE_URL", ""),
		Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
		Temperature: parseFloat(getEnv("OPENAI_TEMPERATURE", "0.5"), 0.5),
		MaxTokens:   parseInt(getEnv("OPENAI_MAX_TOKENS", "1200"), 1200),
		RatePerMin:  parseInt(getEnv("DESCRIBE_RATE_PER_MIN", "0"), 0),
		Timeout:     parseDuration(getEnv("DESCRIBE_TIMEOUT", "60s"), 60*time.Second),
		Mock:        parseBool(getEnv("DESCRIBE_MOCK", "0")),
	}

	cfg.Server = ServerConfig{
		Addr:              getEnv("SERVER_ADDR", ":8080"),
		MaxConcurrentJobs: int64(parseInt(getEnv("MAX_CONCURRENT_JOBS", "2"), 2)),
		MaxUploadMB:       int64(parseInt(getEnv("MAX_UPLOAD_MB", "32"), 32)),
	}
	if cfg.Server.MaxConcurrentJobs <= 0 {
		cfg.Server.MaxConcurrentJobs = 1
	}

	cfg.Store = StoreConfig{
		RedisURL:  getEnv("REDIS_URL", ""),
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "classnotes:"),
		TTL:       parseDuration(getEnv("SESSION_TTL", "24h"), 24*time.Hour),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
