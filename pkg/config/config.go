package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Inference providers
	LLM LLMConfig

	// Analysis pipeline
	Analysis AnalysisConfig

	// Report storage
	Storage StorageConfig

	// Watchlist
	Watchlist WatchlistConfig

	// Scheduler
	Schedule ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ProviderConfig describes one OpenAI-compatible chat completion endpoint
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// LLMConfig holds the ordered inference providers
type LLMConfig struct {
	Primary   ProviderConfig
	Secondary ProviderConfig

	// Rate limit shared across providers (redis sliding window, 0 = off)
	RequestsPerMinute int
}

// AnalysisConfig holds thresholds and budgets for the analysis run
type AnalysisConfig struct {
	ConfidenceThreshold float64
	StableAllocation    int
	RiskyAllocation     int
	StableBenchmark     string
	RiskyBenchmark      string

	Workers int
	RPS     float64

	AnalysisTimeout  time.Duration
	NarrativeTimeout time.Duration
	OutlookTimeout   time.Duration

	SignalDir string
}

// StorageConfig holds report store configuration
type StorageConfig struct {
	Backend             string // file, postgres
	DataDir             string
	OpTimeout           time.Duration
	SignalRetentionDays int
	ReportRetentionDays int // 0 = 2x signal retention
	CacheEnabled        bool
}

// WatchlistConfig holds the instrument universe split by risk category
type WatchlistConfig struct {
	Stable []string
	Risky  []string
}

// ScheduleConfig holds cron specs for the scheduled jobs (with seconds)
type ScheduleConfig struct {
	DailyAnalysis string
	Summary       string
	Cleanup       string
}

var (
	defaultStable = []string{
		"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
		"SPY", "QQQ", "VTI", "VOO", "SCHD",
		"JNJ", "PG", "KO", "WMT", "HD",
		"JPM", "BAC", "BRK-B", "V", "MA",
	}
	defaultRisky = []string{
		"TSLA", "PLTR", "SNOW", "ZM", "UPST",
		"ROKU", "DKNG", "COIN", "TQQQ", "SOXL",
		"ARKK", "SPXL", "TECL", "RIVN", "META",
	}
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		LLM: LLMConfig{
			Primary: ProviderConfig{
				Name:    getEnv("LLM_PRIMARY_NAME", "llm7"),
				APIKey:  getEnv("LLM7_API_KEY", "unused"),
				BaseURL: getEnv("LLM7_BASE_URL", "https://api.llm7.io/v1"),
				Model:   getEnv("LLM7_MODEL", "gpt-4.1-nano-2025-04-14"),
			},
			Secondary: ProviderConfig{
				Name:    getEnv("LLM_SECONDARY_NAME", "openai"),
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   getEnv("OPENAI_MODEL", "gpt-4-1106-preview"),
			},
			RequestsPerMinute: getEnvAsInt("LLM_REQUESTS_PER_MINUTE", 0),
		},

		Analysis: AnalysisConfig{
			ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.6),
			StableAllocation:    getEnvAsInt("STABLE_INVESTMENT", 200),
			RiskyAllocation:     getEnvAsInt("RISKY_INVESTMENT", 50),
			StableBenchmark:     getEnv("STABLE_BENCHMARK", "SPY"),
			RiskyBenchmark:      getEnv("RISKY_BENCHMARK", "QQQ"),
			Workers:             getEnvAsInt("ANALYSIS_WORKERS", 4),
			RPS:                 getEnvAsFloat("INFERENCE_RPS", 2),
			AnalysisTimeout:     getEnvAsDuration("ANALYSIS_TIMEOUT", "30s"),
			NarrativeTimeout:    getEnvAsDuration("NARRATIVE_TIMEOUT", "45s"),
			OutlookTimeout:      getEnvAsDuration("OUTLOOK_TIMEOUT", "30s"),
			SignalDir:           getEnv("SIGNAL_DIR", "data/signals-in"),
		},

		Storage: StorageConfig{
			Backend:             getEnv("STORE_BACKEND", "file"),
			DataDir:             getEnv("STORE_DATA_DIR", "data"),
			OpTimeout:           getEnvAsDuration("STORE_OP_TIMEOUT", "5s"),
			SignalRetentionDays: getEnvAsInt("SIGNAL_RETENTION_DAYS", 30),
			ReportRetentionDays: getEnvAsInt("REPORT_RETENTION_DAYS", 0),
			CacheEnabled:        getEnvAsBool("STORE_CACHE_ENABLED", true),
		},

		Watchlist: WatchlistConfig{
			Stable: getEnvAsList("STABLE_STOCKS", defaultStable),
			Risky:  getEnvAsList("RISKY_STOCKS", defaultRisky),
		},

		Schedule: ScheduleConfig{
			DailyAnalysis: getEnv("SCHEDULE_DAILY_ANALYSIS", "0 30 16 * * MON-FRI"),
			Summary:       getEnv("SCHEDULE_SUMMARY", "0 0 6 1 * *"),
			Cleanup:       getEnv("SCHEDULE_CLEANUP", "0 0 3 * * SUN"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("STORE_DATA_DIR is required for file backend")
		}
	case "postgres":
		// Database URL is required only for postgres backend
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: file, postgres")
	}

	if c.Analysis.ConfidenceThreshold < 0 || c.Analysis.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0, 1]")
	}

	if c.Analysis.Workers < 1 {
		return fmt.Errorf("ANALYSIS_WORKERS must be at least 1")
	}

	if c.Storage.SignalRetentionDays < 1 {
		return fmt.Errorf("SIGNAL_RETENTION_DAYS must be at least 1")
	}

	if len(c.Watchlist.Stable) == 0 && len(c.Watchlist.Risky) == 0 {
		return fmt.Errorf("watchlist is empty")
	}

	return nil
}

// ReportRetention returns the effective report retention in days
// 기본값: 시그널 보관 기간의 2배
func (s StorageConfig) ReportRetention() int {
	if s.ReportRetentionDays > 0 {
		return s.ReportRetentionDays
	}
	return s.SignalRetentionDays * 2
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList parses a comma separated list, upper-casing symbols
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		out := make([]string, len(defaultValue))
		copy(out, defaultValue)
		return out
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
