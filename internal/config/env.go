package config

// Environment variable keys. A .env file in the working directory is loaded first.
//
//nolint:gosec // Environment variable keys are not credentials.
const (
	// Telegram (required)
	EnvTelegramToken         = "KIARASH_TELEGRAM_TOKEN"
	EnvTelegramWebhookURL    = "KIARASH_TELEGRAM_WEBHOOK_URL" // empty = long polling
	EnvTelegramWebhookSecret = "KIARASH_TELEGRAM_WEBHOOK_SECRET"
	EnvTelegramSendRPS       = "KIARASH_TELEGRAM_SEND_RPS"
	EnvTelegramAPIEndpoint   = "KIARASH_TELEGRAM_API_ENDPOINT"

	// Server
	EnvPort            = "KIARASH_PORT"
	EnvLogLevel        = "KIARASH_LOG_LEVEL"
	EnvShutdownTimeout = "KIARASH_SHUTDOWN_TIMEOUT"
	EnvEventTimeout    = "KIARASH_EVENT_TIMEOUT"
	EnvTimezone        = "KIARASH_TIMEZONE"

	// Data
	EnvDataDir         = "KIARASH_DATA_DIR"
	EnvWeatherCacheTTL = "KIARASH_WEATHER_CACHE_TTL"
	EnvPriceCacheTTL   = "KIARASH_PRICE_CACHE_TTL"

	// Outbound HTTP
	EnvHTTPTimeout    = "KIARASH_HTTP_TIMEOUT"
	EnvHTTPMaxRetries = "KIARASH_HTTP_MAX_RETRIES"

	// Weather
	EnvWeatherAPIKey       = "KIARASH_WEATHER_API_KEY"
	EnvWeatherCurrentURL   = "KIARASH_WEATHER_CURRENT_URL"
	EnvWeatherForecastURL  = "KIARASH_WEATHER_FORECAST_URL"
	EnvWeatherForecastDays = "KIARASH_WEATHER_FORECAST_DAYS"

	// Prices
	EnvPriceURL = "KIARASH_PRICE_URL"

	// AI
	EnvOpenAIAPIKey   = "KIARASH_OPENAI_API_KEY"
	EnvOpenAIBaseURL  = "KIARASH_OPENAI_BASE_URL"
	EnvOpenAIModel    = "KIARASH_OPENAI_MODEL"
	EnvGeminiAPIKey   = "KIARASH_GEMINI_API_KEY"
	EnvGeminiModel    = "KIARASH_GEMINI_MODEL"
	EnvAIHistoryTurns = "KIARASH_AI_HISTORY_TURNS"
	EnvAIMaxRetries   = "KIARASH_AI_MAX_RETRIES"

	// Rate limits
	EnvFloodWindow      = "KIARASH_FLOOD_WINDOW"
	EnvFloodMaxMessages = "KIARASH_FLOOD_MAX_MESSAGES"
	EnvFloodBan         = "KIARASH_FLOOD_BAN"
	EnvAIBurst          = "KIARASH_AI_BURST"
	EnvAIRefillPerHour  = "KIARASH_AI_REFILL_PER_HOUR"
	EnvAIDailyLimit     = "KIARASH_AI_DAILY_LIMIT"

	// Sentry
	EnvSentryDSN              = "KIARASH_SENTRY_DSN"
	EnvSentryEnvironment      = "KIARASH_SENTRY_ENVIRONMENT"
	EnvSentryRelease          = "KIARASH_SENTRY_RELEASE"
	EnvSentrySampleRate       = "KIARASH_SENTRY_SAMPLE_RATE"
	EnvSentryTracesSampleRate = "KIARASH_SENTRY_TRACES_SAMPLE_RATE"

	// Better Stack
	EnvBetterStackToken = "KIARASH_BETTERSTACK_TOKEN"

	// Metrics auth
	EnvMetricsUsername = "KIARASH_METRICS_USERNAME"
	EnvMetricsPassword = "KIARASH_METRICS_PASSWORD"
)
