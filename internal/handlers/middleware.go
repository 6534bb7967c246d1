package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rizalap/digishop/internal/orders"
)

const identityKey = "identity"

// Identity extracts the caller identity the upstream gateway attaches
// as headers after authenticating the session. Requests without a
// user id and email are rejected; the role defaults to user.
func Identity(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := orders.Identity{
			UserID: c.GetHeader("X-User-Id"),
			Role:   c.GetHeader("X-User-Role"),
			Email:  c.GetHeader("X-User-Email"),
			Name:   c.GetHeader("X-User-Name"),
			Phone:  c.GetHeader("X-User-Phone"),
		}
		if ident.UserID == "" || ident.Email == "" {
			log.Warnf("request without identity headers from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
			return
		}
		if ident.Role != orders.RoleAdmin {
			ident.Role = orders.RoleUser
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

func callerFrom(c *gin.Context) orders.Identity {
	ident, _ := c.Get(identityKey)
	caller, _ := ident.(orders.Identity)
	return caller
}

// RequestLogger logs one line per completed request with method, path,
// status and latency.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"remote_ip":  c.ClientIP(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request completed with server error")
		case c.Writer.Status() >= 400:
			entry.Warn("request completed with client error")
		default:
			entry.Info("request completed")
		}
	}
}
