package app

import (
	"context"
	"time"

	"github.com/garyellow/weamind-linebot-go/internal/config"
	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
)

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	if a.snapshots != nil {
		a.snapshots.Start(ctx, a.db)
	}
	a.wg.Go(func() {
		a.forecastCleanup(ctx)
	})
	a.wg.Go(func() {
		a.updateStorageMetrics(ctx)
	})
}

// nextDailyRun returns the next occurrence of hour:00 in Taipei after now.
func nextDailyRun(now time.Time, hour int) time.Time {
	tz := lineutil.Taipei()
	local := now.In(tz)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, tz)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// forecastCleanup runs daily at ForecastCleanupHour Taiwan time, exits on context cancellation.
func (a *Application) forecastCleanup(ctx context.Context) {
	a.logger.Debug("Forecast cleanup job started")
	defer a.logger.Debug("Forecast cleanup job stopped")

	for {
		next := nextDailyRun(time.Now(), config.ForecastCleanupHour)
		a.logger.WithField("next_run", next.Format(time.RFC3339)).
			Info("Scheduled next forecast cleanup (Taiwan time)")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			a.runForecastCleanup(ctx)
		}
	}
}

// runForecastCleanup deletes forecast windows that ended before the retention cutoff.
func (a *Application) runForecastCleanup(ctx context.Context) {
	start := time.Now()
	cutoff := start.Add(-a.cfg.ForecastRetention)

	deleted, err := a.db.DeleteForecastsBefore(ctx, cutoff)
	if err != nil {
		a.logger.WithError(err).Error("Failed to delete old forecasts")
		return
	}
	if deleted > 0 {
		if err := a.db.Vacuum(ctx); err != nil {
			a.logger.WithError(err).Warn("Failed to VACUUM database")
		}
	}

	a.logger.WithField("deleted", deleted).
		WithField("cutoff", cutoff.Format(time.RFC3339)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Forecast cleanup completed")
}

// updateStorageMetrics periodically records catalog and database gauges.
func (a *Application) updateStorageMetrics(ctx context.Context) {
	a.recordStorageMetrics(ctx)

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordStorageMetrics(ctx)
		}
	}
}

func (a *Application) recordStorageMetrics(ctx context.Context) {
	locations, err := a.db.CountLocations(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count locations for metrics")
	}
	users, err := a.db.CountActiveUsers(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count users for metrics")
	}

	a.metrics.SetStorageGauges(locations, users, a.db.SizeBytes())
	a.metrics.SetDroppedRemoteLogs(a.logger.DroppedRemoteLogs())
}
