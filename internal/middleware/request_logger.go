package middleware

import (
	"log/slog"
	"time"

	"github.com/dtorrez/rentora-api/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs each request after it completes, with the authenticated
// principal and organization attached when the auth middleware ran. Health
// probes are skipped to keep the log readable.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if path == "/api/v1/health" {
			return
		}

		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Request.UserAgent()),
		}

		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			attrs = append(attrs, slog.String("error", errs))
		}
		if userID, ok := c.Get("userID"); ok {
			attrs = append(attrs, slog.Any("user_id", userID))
		}
		if orgID, ok := c.Get("orgID"); ok {
			attrs = append(attrs, slog.Any("org_id", orgID))
		}

		msg := "Incoming request"
		switch {
		case status >= 500:
			logger.Log.Error(msg, attrs...)
		case status >= 400:
			logger.Log.Warn(msg, attrs...)
		default:
			logger.Log.Info(msg, attrs...)
		}
	}
}
