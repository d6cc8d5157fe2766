package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"modelswap/internal/logger"
	"modelswap/internal/metrics"
	"modelswap/internal/models"
	"modelswap/internal/ratelimit"
)

// MemoryTracker samples memory around a request and can hand freed memory
// back to the OS.
type MemoryTracker interface {
	Track(label string) func()
	Reclaim()
}

// RequestLogger logs every request once it completes and records it in
// collector when one is given.
func RequestLogger(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"duration":  elapsed.String(),
			"client_ip": c.ClientIP(),
			"size":      c.Writer.Size(),
		})
		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}

		if collector != nil {
			collector.RecordHTTPRequest(c.Request.Method, route, status, elapsed)
		}
	}
}

// BodyLimit rejects bodies above max. A declared Content-Length is checked up
// front; otherwise the body reader stops at max and the handler sees
// *http.MaxBytesError.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			logger.WithFields(logrus.Fields{
				"contentLength": c.Request.ContentLength,
				"limit":         max,
			}).Warn("Request body too large")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "File too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}

// RateLimit applies rules per client IP under scope.
func RateLimit(limiter *ratelimit.Limiter, scope string, rules []ratelimit.Rule, collector *metrics.Collector) gin.HandlerFunc {
	descr := make([]string, 0, len(rules))
	for _, r := range rules {
		descr = append(descr, r.String())
	}
	return func(c *gin.Context) {
		ok, hit := limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP(), rules)
		if ok {
			c.Next()
			return
		}

		logger.WithFields(logrus.Fields{
			"scope":     scope,
			"client_ip": c.ClientIP(),
			"rule":      hit.String(),
			"rules":     strings.Join(descr, "; "),
		}).Warn("Rate limit exceeded")
		if collector != nil {
			collector.RecordRateLimited(scope)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
			Error:   "Rate limit exceeded",
			Message: hit.String(),
		})
	}
}

// MemoryTracking logs memory before and after the request and reclaims
// memory once it completes.
func MemoryTracking(tracker MemoryTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := tracker.Track(c.Request.Method + " " + c.Request.URL.Path)
		defer done()
		c.Next()
	}
}

// Recovery turns a panic into a generic 500 and reclaims memory.
func Recovery(tracker MemoryTracker) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"panic": recovered,
		}).Error("Internal server error")
		if tracker != nil {
			tracker.Reclaim()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	})
}
