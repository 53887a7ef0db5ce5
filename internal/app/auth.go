package app

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/weamind-linebot-go/internal/metrics"
)

const metricsRealm = `Basic realm="weamind-metrics"`

// metricsCredentials guards /metrics. The zero value disables authentication.
type metricsCredentials struct {
	enabled  bool
	username string
	password string
}

func (c metricsCredentials) match(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(c.password)) == 1
	return userOK && passOK
}

// metricsAuthMiddleware enforces Basic Auth on /metrics when creds are enabled.
// Rejected scrapes are counted as unauthorized errors of the metrics endpoint.
func metricsAuthMiddleware(creds metricsCredentials, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !creds.enabled {
			c.Next()
			return
		}

		if user, pass, ok := c.Request.BasicAuth(); ok && creds.match(user, pass) {
			c.Next()
			return
		}

		if m != nil {
			m.RecordHTTPError("unauthorized", "metrics")
		}
		c.Header("WWW-Authenticate", metricsRealm)
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}
