// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/kiarash-bot/kiarash/internal/bot"
	"github.com/kiarash-bot/kiarash/internal/buildinfo"
	"github.com/kiarash-bot/kiarash/internal/config"
	"github.com/kiarash-bot/kiarash/internal/genai"
	"github.com/kiarash-bot/kiarash/internal/httpclient"
	"github.com/kiarash-bot/kiarash/internal/logger"
	"github.com/kiarash-bot/kiarash/internal/metrics"
	"github.com/kiarash-bot/kiarash/internal/price"
	"github.com/kiarash-bot/kiarash/internal/ratelimit"
	"github.com/kiarash-bot/kiarash/internal/sentry"
	"github.com/kiarash-bot/kiarash/internal/storage"
	"github.com/kiarash-bot/kiarash/internal/weather"
	"github.com/kiarash-bot/kiarash/internal/webhook"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg         *config.Config
	logger      *logger.Logger
	logShutdown func(context.Context) error
	db          *storage.DB
	metrics     *metrics.Metrics
	registry    *prometheus.Registry
	api         *tgbotapi.BotAPI
	flood       *ratelimit.FloodGuard
	aiQuota     *ratelimit.KeyedLimiter
	assistant   *genai.Assistant // nil when no AI provider is configured
	router      *bot.Router
	handler     *webhook.Handler
	server      *http.Server
	wg          sync.WaitGroup // background jobs
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log, logShutdown := logger.Setup(logger.Options{
		Level:            cfg.LogLevel,
		BetterStackToken: cfg.BetterStackToken,
	})
	log = log.WithField("service", "kiarash")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog calls pick up request ids through the context handler.
	slog.SetDefault(log.Logger)

	log.WithField("release", buildinfo.Release()).Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.Info("Better Stack logging enabled")
	}

	release := cfg.Sentry.Release
	if release == "" {
		release = buildinfo.Release()
	}
	if err := sentry.Initialize(sentry.Config{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		Release:          release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed, error reporting disabled")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.Sentry.Environment).Info("Sentry error reporting enabled")
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	api, err := newBotAPI(cfg.Telegram, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.WithField("username", api.Self.UserName).
		WithField("bot_id", api.Self.ID).
		Info("Authorized on Telegram")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	providerHTTP := httpclient.New(httpclient.Options{
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.HTTPMaxRetries,
		InitialDelay: config.ProviderRetryInitial,
	})
	weatherClient := weather.NewClient(weather.Config{
		APIKey:       cfg.Weather.APIKey,
		CurrentURL:   cfg.Weather.CurrentURL,
		ForecastURL:  cfg.Weather.ForecastURL,
		ForecastDays: cfg.Weather.ForecastDays,
	}, providerHTTP, weather.NewForecastCache(db, cfg.WeatherCacheTTL), m, log)
	priceClient := price.NewClient(cfg.Price.URL, providerHTTP, price.NewSnapshotCache(db, cfg.PriceCacheTTL), m, log)

	assistant, err := genai.CreateAssistant(ctx, buildAIConfig(cfg.AI), m)
	if err != nil {
		log.WithError(err).Warn("AI assistant initialization failed, AI chat disabled")
		assistant = nil
	}

	aiQuota := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "ai",
		Burst:         cfg.Limits.AIBurst,
		RefillRate:    cfg.Limits.AIRefillPerHour / 3600.0, // hourly to per-second
		DailyLimit:    cfg.Limits.AIDailyLimit,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	floodLog := log.WithModule("flood")
	flood := ratelimit.NewFloodGuard(ratelimit.FloodConfig{
		Window:      cfg.Limits.FloodWindow,
		MaxMessages: cfg.Limits.FloodMaxMessages,
		BanDuration: cfg.Limits.FloodBan,
		OnBan: func(userID int64, until time.Time) {
			m.RecordFloodBan()
			floodLog.WithField("user_id", userID).
				WithField("until", until.Format(time.RFC3339)).
				Info("User banned for flooding")
		},
		OnReject: func(int64) {
			m.RecordFloodReject()
		},
	})

	app := &Application{
		cfg:         cfg,
		logger:      log,
		logShutdown: logShutdown,
		db:          db,
		metrics:     m,
		registry:    registry,
		api:         api,
		flood:       flood,
		aiQuota:     aiQuota,
		assistant:   assistant,
	}

	routerCfg := bot.Config{
		Weather:      weatherClient,
		Prices:       priceClient,
		AIQuota:      aiQuota,
		Flood:        flood,
		Logger:       log,
		Metrics:      m,
		BotUsername:  api.Self.UserName,
		EventTimeout: cfg.EventTimeout,
		Location:     cfg.Location(),
		// The handler is created below; typing only fires once updates flow.
		Typing: func(ctx context.Context, chatID int64) {
			app.handler.Typing(ctx, chatID)
		},
	}
	if assistant != nil {
		routerCfg.AI = assistant
	}
	app.router = bot.NewRouter(routerCfg)

	app.handler = webhook.NewHandler(webhook.HandlerConfig{
		API:     api,
		Router:  app.router,
		BotID:   api.Self.ID,
		Secret:  cfg.Telegram.WebhookSecret,
		SendRPS: cfg.Telegram.SendRPS,
		Timeout: cfg.EventTimeout + config.SendBudget,
		Logger:  log,
		Metrics: m,
	})

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.newEngine(),
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.WithField("mode", app.receiveMode()).
		WithField("ai", assistant != nil).
		Info("Initialization complete")
	return app, nil
}

func buildAIConfig(ai config.AIConfig) genai.Config {
	retry := genai.DefaultRetryConfig()
	retry.MaxAttempts = ai.MaxRetries + 1
	return genai.Config{
		OpenAIAPIKey:  ai.OpenAIAPIKey,
		OpenAIBaseURL: ai.OpenAIBaseURL,
		OpenAIModel:   ai.OpenAIModel,
		GeminiAPIKey:  ai.GeminiAPIKey,
		GeminiModel:   ai.GeminiModel,
		HistoryTurns:  ai.HistoryTurns,
		Retry:         retry,
	}
}

func (a *Application) receiveMode() string {
	if a.cfg.Telegram.UseWebhook() {
		return "webhook"
	}
	return "polling"
}

// Run serves HTTP and receives updates until ctx is canceled or either fails.
//
// Shutdown sequence:
//  1. ctx is canceled (SIGINT/SIGTERM) or the server or receiver fails
//  2. background jobs are stopped and awaited
//  3. the HTTP server stops and in-flight updates drain
//  4. resources are closed (AI clients, limiters, database, Sentry, logger)
func (a *Application) Run(ctx context.Context) error {
	jobsCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	a.startBackgroundJobs(jobsCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.receiveUpdates(gctx)
	})

	<-gctx.Done()
	a.logger.Info("Shutting down...")

	cancelJobs()
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	a.shutdown()
	return g.Wait()
}

// receiveUpdates registers the webhook, or long-polls until ctx is done.
func (a *Application) receiveUpdates(ctx context.Context) error {
	if a.cfg.Telegram.UseWebhook() {
		if err := webhook.RegisterWebhook(a.api, a.cfg.Telegram.WebhookURL, a.cfg.Telegram.WebhookSecret); err != nil {
			return err
		}
		a.logger.WithField("url", a.cfg.Telegram.WebhookURL).Info("Webhook registered")
		return nil
	}

	if err := webhook.DeleteWebhook(a.api); err != nil {
		return err
	}
	updates := a.api.GetUpdatesChan(webhook.PollConfig())
	a.logger.Info("Long polling started")

	a.handler.Poll(ctx, updates)
	a.api.StopReceivingUpdates()
	a.logger.Debug("Long polling stopped")
	return nil
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.cacheCleanup(ctx)
	})
	a.wg.Go(func() {
		a.housekeeping(ctx)
	})
}

// shutdown stops the HTTP server, drains updates and closes resources.
// Background jobs must already be stopped.
func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for in-flight updates to complete...")
	if err := a.handler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Update handler shutdown timeout")
	}

	a.logger.Info("Closing resources...")

	if a.assistant != nil {
		if err := a.assistant.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "assistant").Error("Component close error")
		}
	}

	if a.aiQuota != nil {
		a.aiQuota.Stop()
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if sentry.IsEnabled() && !sentry.Flush(2*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	a.logger.Info("Shutdown complete")
	if a.logShutdown != nil {
		if err := a.logShutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("Logger shutdown timed out")
		}
	}
}
