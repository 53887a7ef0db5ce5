package app

import (
	"context"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/weamind-linebot-go/internal/buildinfo"
	"github.com/garyellow/weamind-linebot-go/internal/sentry"
)

// readinessCheckTimeout bounds the database probes of /readyz.
const readinessCheckTimeout = 3 * time.Second

// routes builds the HTTP router. Handlers that were not configured are not mounted.
func (a *Application) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.root)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)

	if a.webhookHandler != nil {
		router.POST("/webhook", a.webhookHandler.Handle)
	}

	if a.users != nil {
		users := router.Group("/users", corsMiddleware(a.allowedOrigin()))
		users.OPTIONS("/locations")
		users.POST("/locations", a.users.setLocation)
	}

	router.GET("/metrics",
		metricsAuthMiddleware(metricsCredentials{
			enabled:  a.cfg.MetricsAuthEnabled,
			username: a.cfg.MetricsUsername,
			password: a.cfg.MetricsPassword,
		}, a.metrics),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return router
}

func (a *Application) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to WeaMind API",
		"version": buildinfo.VersionOrDev(),
		"commit":  buildinfo.Revision(),
	})
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessCheckTimeout)
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
		"catalog":  a.catalogStats(ctx),
		"features": a.features(),
	})
}

func (a *Application) catalogStats(ctx context.Context) gin.H {
	stats := gin.H{}
	if count, err := a.db.CountLocations(ctx); err == nil {
		stats["locations"] = count
	} else {
		a.logger.WithError(err).Warn("Failed to count locations in readiness stats")
	}
	if count, err := a.db.CountForecasts(ctx); err == nil {
		stats["forecasts"] = count
	} else {
		a.logger.WithError(err).Warn("Failed to count forecasts in readiness stats")
	}
	if a.snapshots != nil {
		stats["snapshot_etag"] = a.snapshots.CurrentETag()
	}
	return stats
}

func (a *Application) features() map[string]bool {
	return map[string]bool{
		"snapshot_sync":   a.snapshots != nil,
		"processing_lock": a.redisClient != nil,
		"error_reporting": sentry.IsEnabled(),
	}
}
