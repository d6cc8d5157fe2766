package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"modelswap/internal/logger"
	"modelswap/internal/models"
	"modelswap/internal/services"
)

const serviceName = "modelswap"

// MemorySampler reports this process's memory use.
type MemorySampler interface {
	Snapshot() (services.MemorySnapshot, error)
}

type HealthHandler struct {
	monitor   MemorySampler
	available func() bool
}

func NewHealthHandler(monitor MemorySampler, available func() bool) *HealthHandler {
	return &HealthHandler{monitor: monitor, available: available}
}

func (h *HealthHandler) Health(c *gin.Context) {
	snap, err := h.monitor.Snapshot()
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err.Error()}).Error("Health check failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"service": serviceName,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:               "healthy",
		Service:              serviceName,
		MeshLibraryAvailable: h.available(),
		MemoryUsageMB:        round2(snap.RSSMB),
		MemoryPercent:        round2(snap.Percent),
	})
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
