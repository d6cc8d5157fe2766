package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"modelswap/internal/config"
	"modelswap/internal/handlers"
	"modelswap/internal/logger"
	"modelswap/internal/mesh"
	"modelswap/internal/metrics"
	"modelswap/internal/ratelimit"
	"modelswap/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	collector := metrics.NewCollector()
	monitor, err := services.NewResourceMonitor(cfg.Limits.ReclaimMemory, collector)
	if err != nil {
		return err
	}

	library := mesh.NewLibrary()
	service, err := services.NewConversionService(cfg, library, collector)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"formats":   library.Formats(),
		"available": service.Available(),
	}).Info("Mesh library loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ctx, cfg.RateLimit.RedisURL)
		defer func() {
			if err := limiter.Close(); err != nil {
				logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to close rate limiter")
			}
		}()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handlers.NewRouter(handlers.Dependencies{
		Config:    cfg,
		Service:   service,
		Available: service.Available,
		Monitor:   monitor,
		Limiter:   limiter,
		Metrics:   collector,
	})
	if err != nil {
		return fmt.Errorf("router setup failed: %w", err)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.Port,
			"environment": cfg.Environment,
		}).Info("Service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("Server stopped cleanly")
	return nil
}
