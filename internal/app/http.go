package app

import (
	"context"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiarash-bot/kiarash/internal/config"
	"github.com/kiarash-bot/kiarash/internal/ctxutil"
	"github.com/kiarash-bot/kiarash/internal/logger"
	"github.com/kiarash-bot/kiarash/internal/sentry"
	"github.com/kiarash-bot/kiarash/internal/storage"
)

// cachedNamespaces are reported by the readiness check.
var cachedNamespaces = []string{"forecast", "price"}

// newEngine builds the Gin engine serving health, metrics and the webhook.
func (a *Application) newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if sentry.IsEnabled() {
		engine.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	engine.Use(securityHeadersMiddleware())
	engine.Use(loggingMiddleware(a.logger))

	engine.GET("/", a.redirectToBot)
	engine.GET("/healthz", a.livenessCheck)
	engine.HEAD("/healthz", a.livenessCheck)
	engine.GET("/ready", a.readinessCheck)
	engine.HEAD("/ready", a.readinessCheck)
	if a.cfg.Telegram.UseWebhook() {
		engine.POST("/webhook", a.handler.Handle)
	}
	engine.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return engine
}

func (a *Application) redirectToBot(c *gin.Context) {
	if a.api == nil || a.api.Self.UserName == "" {
		c.Status(http.StatusNotFound)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, "https://t.me/"+a.api.Self.UserName)
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (a *Application) features() map[string]bool {
	return map[string]bool{
		"ai":      a.assistant != nil,
		"webhook": a.cfg != nil && a.cfg.Telegram.UseWebhook(),
		"sentry":  sentry.IsEnabled(),
	}
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheck)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"cache":    cacheStats(ctx, a.db, a.logger),
		"features": a.features(),
	})
}

func cacheStats(ctx context.Context, db *storage.DB, log *logger.Logger) map[string]int {
	stats := make(map[string]int, len(cachedNamespaces))
	for _, ns := range cachedNamespaces {
		count, err := db.Count(ctx, ns)
		if err != nil {
			log.WithError(err).WithField("namespace", ns).Warn("Failed to count cache entries")
			continue
		}
		stats[ns] = count
	}
	return stats
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID != "" {
			c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		}

		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("http_method", c.Request.Method).
			WithField("http_path", c.Request.URL.Path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())
		if requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		case status >= 400:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
