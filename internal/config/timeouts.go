package config

import "time"

// Event handling
const (
	// EventProcessing bounds the handling of one inbound update, provider calls
	// included. Telegram does not retry webhook deliveries that were answered
	// with 200, so the bot replies late rather than never.
	EventProcessing = 30 * time.Second

	// TelegramPollTimeout is the long-poll timeout passed to getUpdates, in seconds.
	TelegramPollTimeout = 60
)

// HTTP server
const (
	HTTPRead  = 10 * time.Second
	HTTPWrite = EventProcessing + 5*time.Second
	HTTPIdle  = 120 * time.Second

	// ReadinessCheck bounds the database ping behind /ready.
	ReadinessCheck = 3 * time.Second
)

// Outbound requests to weather, price and AI providers
const (
	// ProviderRequest is the default timeout of a single provider request.
	ProviderRequest = 15 * time.Second

	// ProviderRetryInitial is the first backoff step; later steps double it.
	ProviderRetryInitial = 500 * time.Millisecond
)

// Database
const (
	// DatabaseBusyTimeout is the SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 5 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background jobs
const (
	// CacheCleanupInterval is how often expired cache rows are deleted.
	CacheCleanupInterval = time.Hour

	// MetricsUpdateInterval is how often gauges (sessions, tracked users) are refreshed.
	MetricsUpdateInterval = time.Minute

	// RateLimiterCleanupInterval is how often idle AI quota entries are dropped.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// GracefulShutdown is the default timeout for graceful shutdown.
const GracefulShutdown = 30 * time.Second

// SendBudget is the time left to deliver replies after an update was routed.
const SendBudget = 15 * time.Second

// MaxConcurrentUpdates bounds the updates handled at once.
const MaxConcurrentUpdates = 64
