package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"modelswap/internal/config"
	"modelswap/internal/metrics"
	"modelswap/internal/models"
	"modelswap/internal/ratelimit"
)

// Monitor is what the router needs from services.ResourceMonitor.
type Monitor interface {
	MemoryTracker
	MemorySampler
}

type Dependencies struct {
	Config    *config.Config
	Service   Converter
	Available func() bool
	Monitor   Monitor
	// Limiter is nil when rate limiting is disabled.
	Limiter *ratelimit.Limiter
	Metrics *metrics.Collector
}

func NewRouter(deps Dependencies) (*gin.Engine, error) {
	uploadRules, err := ratelimit.ParseRules(deps.Config.RateLimit.Upload)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_UPLOAD: %w", err)
	}
	defaultRules, err := ratelimit.ParseRules(deps.Config.RateLimit.Default)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_DEFAULT: %w", err)
	}

	router := gin.New()
	router.MaxMultipartMemory = deps.Config.Limits.MaxMultipartMemory
	router.Use(RequestLogger(deps.Metrics))
	router.Use(Recovery(deps.Monitor))
	router.Use(cors())

	limit := func(scope string, rules []ratelimit.Rule) gin.HandlerFunc {
		if deps.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return RateLimit(deps.Limiter, scope, rules, deps.Metrics)
	}

	convert := NewConvertHandler(deps.Service)
	health := NewHealthHandler(deps.Monitor, deps.Available)

	tracked := router.Group("/", MemoryTracking(deps.Monitor))
	{
		tracked.POST("/upload",
			limit("upload", uploadRules),
			BodyLimit(deps.Config.Limits.MaxContentLength),
			convert.Upload)
		tracked.GET("/download/:filename", limit("download", defaultRules), convert.Download)
		tracked.POST("/cleanup", limit("cleanup", defaultRules), convert.Cleanup)
	}

	router.GET("/health", health.Health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Not found"})
	})

	return router, nil
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
