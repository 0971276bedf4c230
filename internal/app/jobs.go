package app

import (
	"context"
	"time"

	"github.com/kiarash-bot/kiarash/internal/config"
)

// cacheCleanup deletes expired provider cache rows every CacheCleanupInterval.
func (a *Application) cacheCleanup(ctx context.Context) {
	a.logger.Debug("Cache cleanup job started")
	defer a.logger.Debug("Cache cleanup job stopped")

	ticker := time.NewTicker(config.CacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runCacheCleanup(ctx)
		}
	}
}

func (a *Application) runCacheCleanup(ctx context.Context) {
	start := time.Now()
	deleted, err := a.db.DeleteExpired(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Failed to delete expired cache entries")
		return
	}
	a.logger.WithField("deleted", deleted).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Cache cleanup completed")
}

// housekeeping drops idle flood records and refreshes the gauges.
func (a *Application) housekeeping(ctx context.Context) {
	a.logger.Debug("Housekeeping job started")
	defer a.logger.Debug("Housekeeping job stopped")

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.runHousekeeping(now)
		}
	}
}

func (a *Application) runHousekeeping(now time.Time) {
	removed := a.flood.Sweep(now)
	if removed > 0 {
		a.logger.WithField("removed", removed).Debug("Idle flood records dropped")
	}
	if a.metrics == nil {
		return
	}
	a.metrics.SetRateLimiterUsers("flood", a.flood.Tracked())
	a.metrics.SetActiveSessions(a.router.Sessions().Len())
}
