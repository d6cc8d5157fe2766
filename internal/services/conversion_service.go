package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"modelswap/internal/config"
	"modelswap/internal/formats"
	"modelswap/internal/logger"
	"modelswap/internal/metrics"
)

type ConversionRequest struct {
	Files        []*multipart.FileHeader
	OutputFormat string
}

type ConvertedFile struct {
	OriginalName  string
	ConvertedName string
	Path          string
}

// RequestOutcome maps every admitted file to a conversion or an error message.
type RequestOutcome struct {
	Converted []ConvertedFile
	Errors    []string
}

type CleanupReport struct {
	Removed int
}

// ConversionService runs the upload-convert-publish pipeline.
//
// Every file conversion holds the workspace lock for reading and Cleanup holds
// it for writing, so a cleanup never deletes files of an in-flight conversion.
// The lock is per process; replicas sharing the directories are not covered.
type ConversionService struct {
	intake    *IntakeValidator
	staging   *StagingStore
	converter *Converter
	relocator *Relocator
	metrics   *metrics.Collector

	workspace sync.RWMutex
}

func NewConversionService(cfg *config.Config, lib MeshLibrary, collector *metrics.Collector) (*ConversionService, error) {
	staging, err := NewStagingStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload folder: %w", err)
	}
	relocator, err := NewRelocator(cfg.Storage.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("output folder: %w", err)
	}
	if cfg.Storage.ConversionDir != "" {
		if _, err := ensureDir(cfg.Storage.ConversionDir); err != nil {
			return nil, fmt.Errorf("conversion temp dir: %w", err)
		}
	}

	return &ConversionService{
		intake:    NewIntakeValidator(cfg.Limits),
		staging:   staging,
		converter: NewConverter(lib, cfg.Storage.ConversionDir),
		relocator: relocator,
		metrics:   collector,
	}, nil
}

func (s *ConversionService) Available() bool {
	return s.converter.Available()
}

// Process validates the request and converts each admitted file in order.
// A *ValidationError means nothing was processed; per-file failures are
// reported in the outcome instead.
func (s *ConversionService) Process(ctx context.Context, req ConversionRequest) (*RequestOutcome, error) {
	admission, err := s.intake.Validate(req.Files, req.OutputFormat)
	if err != nil {
		return nil, err
	}

	outcome := &RequestOutcome{
		Converted: []ConvertedFile{},
		Errors:    []string{},
	}
	for _, rej := range admission.Rejections {
		s.recordRejection(rej.Reason)
		outcome.Errors = append(outcome.Errors, rej.Message)
	}

	for _, c := range admission.Files {
		converted, err := s.processFile(ctx, c, admission.Target)
		if err != nil {
			msg := fmt.Sprintf("Error converting %s: %v", c.OriginalName, err)
			logger.WithFields(logrus.Fields{
				"file":   c.Filename,
				"target": admission.Target,
				"kind":   conversionKind(err),
			}).Error(msg)
			outcome.Errors = append(outcome.Errors, msg)
			continue
		}
		logger.WithFields(logrus.Fields{
			"file":      c.Filename,
			"converted": converted.ConvertedName,
		}).Info("Successfully converted")
		outcome.Converted = append(outcome.Converted, *converted)
	}

	logger.WithFields(logrus.Fields{
		"successful": len(outcome.Converted),
		"errors":     len(outcome.Errors),
	}).Info("Upload completed")
	return outcome, nil
}

// processFile walks one file through Staged, Converting and Published or
// Failed. The staged upload is released before it returns.
func (s *ConversionService) processFile(ctx context.Context, c Candidate, target formats.Format) (_ *ConvertedFile, err error) {
	s.workspace.RLock()
	defer s.workspace.RUnlock()

	start := time.Now()
	defer func() {
		outcome := "published"
		if err != nil {
			outcome = "failed"
		}
		if s.metrics != nil {
			s.metrics.RecordConversion(string(c.Source), string(target), outcome, time.Since(start))
		}
	}()

	src, err := c.Header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer src.Close()

	var result *ConvertedFile
	err = s.staging.Hold(c.Filename, src, func(staged *StagedFile) error {
		entry := logger.WithFields(logrus.Fields{"file": c.Filename, "staged": staged.Name})
		entry.Debug("Staged")

		logger.WithFields(logrus.Fields{
			"file":   c.Filename,
			"target": target,
		}).Info("Converting file")
		output, err := s.converter.Convert(ctx, staged.Path, target)
		if err != nil {
			entry.Debug("Failed")
			return err
		}

		artifact, err := s.relocator.Publish(output, fileStem(c.Filename), target)
		if err != nil {
			removeQuietly(output)
			entry.Debug("Failed")
			return err
		}
		entry.WithField("artifact", artifact.Name).Debug("Published")

		result = &ConvertedFile{
			OriginalName:  c.Filename,
			ConvertedName: artifact.Name,
			Path:          artifact.Path,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Open resolves a published artifact for download.
func (s *ConversionService) Open(name string) (string, error) {
	return s.relocator.Open(name)
}

// Cleanup deletes every regular file in the upload and output directories.
// It waits for in-flight conversions and is a no-op when both are empty.
func (s *ConversionService) Cleanup(ctx context.Context) (*CleanupReport, error) {
	s.workspace.Lock()
	defer s.workspace.Unlock()

	report := &CleanupReport{}
	var errs []error
	for _, dir := range []string{s.staging.Dir(), s.relocator.Dir()} {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := purgeDir(dir)
		report.Removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	logger.WithFields(logrus.Fields{"removed": report.Removed}).Info("Cleanup completed")
	return report, errors.Join(errs...)
}

func purgeDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *ConversionService) recordRejection(reason string) {
	if s.metrics != nil {
		s.metrics.RecordRejection(reason)
	}
}

func conversionKind(err error) string {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind.String()
	}
	return "other"
}
