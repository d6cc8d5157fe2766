package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"modelswap/internal/logger"
	"modelswap/internal/models"
	"modelswap/internal/services"
)

// Converter is the part of services.ConversionService the HTTP layer uses.
type Converter interface {
	Process(ctx context.Context, req services.ConversionRequest) (*services.RequestOutcome, error)
	Open(name string) (string, error)
	Cleanup(ctx context.Context) (*services.CleanupReport, error)
}

type ConvertHandler struct {
	service Converter
}

func NewConvertHandler(service Converter) *ConvertHandler {
	return &ConvertHandler{service: service}
}

func (h *ConvertHandler) Upload(c *gin.Context) {
	// Parsing here honours the engine's MaxMultipartMemory; the bind below
	// reuses the parsed form.
	mf, err := c.MultipartForm()
	if err != nil {
		if bodyTooLarge(err) {
			logger.Warn("Request body too large")
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "File too large"})
			return
		}
		logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to parse upload form")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: services.ErrNoFilesProvided.Error()})
		return
	}
	defer func() { _ = mf.RemoveAll() }()

	var form models.UploadForm
	if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
		logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to bind upload form")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: services.ErrNoFilesProvided.Error()})
		return
	}

	outcome, err := h.service.Process(c.Request.Context(), services.ConversionRequest{
		Files:        form.Files,
		OutputFormat: form.OutputFormat,
	})
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: verr.Message})
			return
		}
		logger.WithFields(logrus.Fields{"error": err.Error()}).Error("Upload failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}

	converted := make([]models.ConvertedFile, 0, len(outcome.Converted))
	for _, f := range outcome.Converted {
		converted = append(converted, models.ConvertedFile{
			OriginalName:  f.OriginalName,
			ConvertedName: f.ConvertedName,
			DownloadURL:   "/download/" + url.PathEscape(f.ConvertedName),
		})
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		Success:        true,
		ConvertedFiles: converted,
		Errors:         outcome.Errors,
	})
}

func (h *ConvertHandler) Download(c *gin.Context) {
	name := c.Param("filename")
	path, err := h.service.Open(name)
	if err != nil {
		if !errors.Is(err, services.ErrArtifactNotFound) {
			logger.WithFields(logrus.Fields{
				"file":  name,
				"error": err.Error(),
			}).Error("Download failed")
		}
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "File not found"})
		return
	}

	if mt, err := mimetype.DetectFile(path); err == nil {
		c.Header("Content-Type", mt.String())
	}
	logger.WithFields(logrus.Fields{"file": name}).Info("Serving download")
	c.FileAttachment(path, name)
}

func (h *ConvertHandler) Cleanup(c *gin.Context) {
	report, err := h.service.Cleanup(c.Request.Context())
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err.Error()}).Error("Cleanup failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, models.CleanupResponse{
		Success:      true,
		Message:      "Cleanup completed",
		RemovedFiles: report.Removed,
	})
}

// bodyTooLarge matches the error http.MaxBytesReader produces. The multipart
// reader does not always wrap it, so the message is checked as well.
func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
