// Package config provides application configuration management.
// It loads settings from environment variables (and an optional .env file)
// and provides defaults for every tunable.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default provider endpoints.
const (
	DefaultWeatherCurrentURL  = "https://api.weatherapi.com/v1/current.json"
	DefaultWeatherForecastURL = "https://api.weatherapi.com/v1/forecast.json"
	DefaultPriceURL           = "https://call2.tgju.org/ajax.json"
	DefaultOpenAIBaseURL      = "https://api.gapgpt.app/v1"
	DefaultOpenAIModel        = "gpt-5.2"
	DefaultGeminiModel        = "gemini-2.5-flash"
)

// Config holds all application configuration
type Config struct {
	Telegram TelegramConfig

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	EventTimeout    time.Duration // bound on handling one update, provider calls included
	Timezone        string        // IANA zone used for "today" in the Jalali calendar

	// Data Configuration
	DataDir         string
	WeatherCacheTTL time.Duration
	PriceCacheTTL   time.Duration

	// Outbound HTTP
	HTTPTimeout    time.Duration
	HTTPMaxRetries int

	Weather WeatherConfig
	Price   PriceConfig
	AI      AIConfig
	Limits  LimitsConfig
	Sentry  SentryConfig

	BetterStackToken string

	// Metrics Authentication
	MetricsUsername string // Username for /metrics Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics Basic Auth (empty = no auth)
}

// TelegramConfig configures the Bot API transport.
type TelegramConfig struct {
	Token         string
	WebhookURL    string  // public URL of /webhook; empty selects long polling
	WebhookSecret string  // X-Telegram-Bot-Api-Secret-Token value
	SendRPS       float64 // outbound message pacing across all chats
	APIEndpoint   string  // Bot API endpoint format, empty = official
}

// UseWebhook reports whether updates arrive by webhook instead of polling.
func (t TelegramConfig) UseWebhook() bool {
	return t.WebhookURL != ""
}

// WeatherConfig configures the WeatherAPI.com provider.
type WeatherConfig struct {
	APIKey       string
	CurrentURL   string
	ForecastURL  string
	ForecastDays int
}

// PriceConfig configures the TGJU price provider.
type PriceConfig struct {
	URL string
}

// AIConfig configures the AI chat providers. OpenAI-compatible is primary,
// Gemini is the fallback; either may be left unconfigured.
type AIConfig struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string
	HistoryTurns  int // user/assistant pairs kept per user
	MaxRetries    int
}

// Enabled reports whether at least one AI provider is configured.
func (a AIConfig) Enabled() bool {
	return a.OpenAIAPIKey != "" || a.GeminiAPIKey != ""
}

// LimitsConfig holds the flood guard policy and the AI quota.
type LimitsConfig struct {
	FloodWindow      time.Duration
	FloodMaxMessages int
	FloodBan         time.Duration

	AIBurst         float64
	AIRefillPerHour float64
	AIDailyLimit    int // 0 disables the daily window
}

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:         getEnv(EnvTelegramToken, ""),
			WebhookURL:    getEnv(EnvTelegramWebhookURL, ""),
			WebhookSecret: getEnv(EnvTelegramWebhookSecret, ""),
			SendRPS:       getFloatEnv(EnvTelegramSendRPS, 25),
			APIEndpoint:   getEnv(EnvTelegramAPIEndpoint, ""),
		},

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		EventTimeout:    getDurationEnv(EnvEventTimeout, EventProcessing),
		Timezone:        getEnv(EnvTimezone, "Asia/Tehran"),

		DataDir:         getEnv(EnvDataDir, "./data"),
		WeatherCacheTTL: getDurationEnv(EnvWeatherCacheTTL, 30*time.Minute),
		PriceCacheTTL:   getDurationEnv(EnvPriceCacheTTL, time.Minute),

		HTTPTimeout:    getDurationEnv(EnvHTTPTimeout, ProviderRequest),
		HTTPMaxRetries: getIntEnv(EnvHTTPMaxRetries, 2),

		Weather: WeatherConfig{
			APIKey:       getEnv(EnvWeatherAPIKey, ""),
			CurrentURL:   getEnv(EnvWeatherCurrentURL, DefaultWeatherCurrentURL),
			ForecastURL:  getEnv(EnvWeatherForecastURL, DefaultWeatherForecastURL),
			ForecastDays: getIntEnv(EnvWeatherForecastDays, 10),
		},

		Price: PriceConfig{
			URL: getEnv(EnvPriceURL, DefaultPriceURL),
		},

		AI: AIConfig{
			OpenAIAPIKey:  getEnv(EnvOpenAIAPIKey, ""),
			OpenAIBaseURL: getEnv(EnvOpenAIBaseURL, DefaultOpenAIBaseURL),
			OpenAIModel:   getEnv(EnvOpenAIModel, DefaultOpenAIModel),
			GeminiAPIKey:  getEnv(EnvGeminiAPIKey, ""),
			GeminiModel:   getEnv(EnvGeminiModel, DefaultGeminiModel),
			HistoryTurns:  getIntEnv(EnvAIHistoryTurns, 10),
			MaxRetries:    getIntEnv(EnvAIMaxRetries, 2),
		},

		Limits: LimitsConfig{
			FloodWindow:      getDurationEnv(EnvFloodWindow, 10*time.Second),
			FloodMaxMessages: getIntEnv(EnvFloodMaxMessages, 5),
			FloodBan:         getDurationEnv(EnvFloodBan, 30*time.Minute),
			AIBurst:          getFloatEnv(EnvAIBurst, 20),
			AIRefillPerHour:  getFloatEnv(EnvAIRefillPerHour, 20),
			AIDailyLimit:     getIntEnv(EnvAIDailyLimit, 100),
		},

		Sentry: SentryConfig{
			DSN:              getEnv(EnvSentryDSN, ""),
			Environment:      getEnv(EnvSentryEnvironment, "production"),
			Release:          getEnv(EnvSentryRelease, ""),
			SampleRate:       getFloatEnv(EnvSentrySampleRate, 1.0),
			TracesSampleRate: getFloatEnv(EnvSentryTracesSampleRate, 0),
		},

		BetterStackToken: getEnv(EnvBetterStackToken, ""),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvTelegramToken))
	}
	if c.Telegram.UseWebhook() && !strings.HasPrefix(c.Telegram.WebhookURL, "https://") {
		errs = append(errs, fmt.Errorf("%s must be an https URL, got %q", EnvTelegramWebhookURL, c.Telegram.WebhookURL))
	}
	if c.Telegram.SendRPS <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvTelegramSendRPS, c.Telegram.SendRPS))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.EventTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvEventTimeout, c.EventTimeout))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvTimezone, err))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.WeatherCacheTTL <= 0 || c.PriceCacheTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvHTTPTimeout, c.HTTPTimeout))
	}
	if c.HTTPMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvHTTPMaxRetries, c.HTTPMaxRetries))
	}
	if c.Weather.ForecastDays < 1 || c.Weather.ForecastDays > 14 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 14, got %d", EnvWeatherForecastDays, c.Weather.ForecastDays))
	}
	if c.AI.HistoryTurns < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvAIHistoryTurns, c.AI.HistoryTurns))
	}
	if err := c.Limits.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("limits: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks the rate limit policy.
func (l LimitsConfig) Validate() error {
	var errs []error
	if l.FloodWindow <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvFloodWindow, l.FloodWindow))
	}
	if l.FloodMaxMessages <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvFloodMaxMessages, l.FloodMaxMessages))
	}
	if l.FloodBan <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvFloodBan, l.FloodBan))
	}
	if l.AIBurst < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %v", EnvAIBurst, l.AIBurst))
	}
	if l.AIRefillPerHour < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvAIRefillPerHour, l.AIRefillPerHour))
	}
	if l.AIDailyLimit < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvAIDailyLimit, l.AIDailyLimit))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to a fixed +03:30.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("IRST", 3*3600+30*60)
}

// SQLitePath returns the full path to the SQLite cache database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
