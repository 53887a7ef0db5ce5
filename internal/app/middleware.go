package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/weamind-linebot-go/internal/ctxutil"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
)

// securityHeaders are sent on every response. The API only serves JSON.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'none'"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
}

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range securityHeaders {
			c.Header(h[0], h[1])
		}
		c.Next()
	}
}

// maxRequestIDLength bounds a client-supplied request ID before it reaches the logs.
const maxRequestIDLength = 64

// requestID reuses X-Request-Id or X-Correlation-Id from the proxy, or makes a new UUID.
func requestID(c *gin.Context) string {
	for _, h := range []string{"X-Request-Id", "X-Correlation-Id"} {
		if id := c.GetHeader(h); id != "" && len(id) <= maxRequestIDLength {
			return id
		}
	}
	return uuid.NewString()
}

// requestLevel maps a response status to a log level. Successful requests and
// 404 scans are debug noise; other 4xx are warnings and 5xx errors.
func requestLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400 && status != http.StatusNotFound:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// loggingMiddleware tags the request context with a request ID, echoes it in
// X-Request-Id and logs the outcome.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := requestID(c)
		c.Header("X-Request-Id", id)
		ctx := ctxutil.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		log.WithFields(map[string]any{
			"http_method": c.Request.Method,
			"http_path":   c.Request.URL.Path,
			"http_status": status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}).Log(ctx, requestLevel(status), "HTTP "+http.StatusText(status))
	}
}

// corsMiddleware lets the LIFF pages on allowedOrigin call the users API.
// Preflight requests are answered here; other origins get no CORS headers.
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && origin == allowedOrigin {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+idTokenHeader)
			c.Header("Access-Control-Max-Age", "600")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
