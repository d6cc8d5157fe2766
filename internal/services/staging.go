package services

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"modelswap/internal/logger"
)

// StagedFile is a raw upload persisted in the upload directory. It belongs to
// the request that staged it and is deleted by Release.
type StagedFile struct {
	Name string
	Path string
	Size int64

	once sync.Once
}

// Release deletes the staged file. Only the first call has an effect, and a
// failed delete is logged rather than returned.
func (f *StagedFile) Release() {
	f.once.Do(func() {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			logger.WithFields(logrus.Fields{
				"path":  f.Path,
				"error": err.Error(),
			}).Warn("Failed to clean up staged upload")
			return
		}
		logger.WithFields(logrus.Fields{"path": f.Path}).Debug("Staged upload released")
	})
}

type StagingStore struct {
	dir string
}

func NewStagingStore(dir string) (*StagingStore, error) {
	abs, err := ensureDir(dir)
	if err != nil {
		return nil, err
	}
	return &StagingStore{dir: abs}, nil
}

func (s *StagingStore) Dir() string {
	return s.dir
}

// Stage copies src into the upload directory under "<token>_<sanitized name>".
func (s *StagingStore) Stage(originalName string, src io.Reader) (*StagedFile, error) {
	name := SanitizeFilename(originalName)
	if name == "" {
		return nil, fmt.Errorf("invalid filename %q", originalName)
	}
	token := uuid.New()
	name = hex.EncodeToString(token[:]) + "_" + name
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	size, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	return &StagedFile{Name: name, Path: path, Size: size}, nil
}

// Hold stages src, runs fn with the staged file and releases it on every
// exit path, including a panic in fn.
func (s *StagingStore) Hold(originalName string, src io.Reader, fn func(*StagedFile) error) error {
	staged, err := s.Stage(originalName, src)
	if err != nil {
		return err
	}
	defer staged.Release()
	return fn(staged)
}

func ensureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}
