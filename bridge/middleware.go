package bridge

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/resilience"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

const requestIDKey = "request_id"

// requestID propagates an incoming request ID or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// recovery turns a handler panic into a 500 and logs it.
func recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", logger.Fields(
					logger.FieldRequestID, c.GetString(requestIDKey),
					"path", c.Request.URL.Path,
					"panic", fmt.Sprint(r),
				))
				abortWithError(c, errors.Internal(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}

// requestLogger logs each request at a level derived from its status.
// Health and info probes are only logged at debug.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logger.Fields(
			logger.FieldRequestID, c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			logger.FieldStatus, c.Writer.Status(),
			logger.FieldDuration, time.Since(start).Milliseconds(),
		)
		if len(c.Errors) > 0 {
			fields[logger.FieldError] = c.Errors.String()
		}

		status := c.Writer.Status()
		switch {
		case isProbe(c.Request.URL.Path):
			log.Debug("request", fields)
		case status >= http.StatusInternalServerError:
			log.Error("request", fields)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields)
		default:
			log.Info("request", fields)
		}
	}
}

func isProbe(path string) bool {
	return path == "/health" || path == "/info" || strings.HasPrefix(path, "/health/")
}

// rateLimit rejects requests with 429 once rl is exhausted. A nil limiter
// lets everything through.
func rateLimit(rl *resilience.RateLimiter, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl != nil && !rl.Allow() {
			abortWithError(c, errors.RateLimited(name))
			return
		}
		c.Next()
	}
}
