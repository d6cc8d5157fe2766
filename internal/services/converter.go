package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"modelswap/internal/formats"
	"modelswap/internal/logger"
	"modelswap/internal/mesh"
)

// MeshLibrary is the geometry backend used by Converter.
type MeshLibrary interface {
	Load(path string) (mesh.Geometry, error)
	Export(m *mesh.Mesh, path string, format formats.Format) error
	Available() bool
}

type Converter struct {
	lib     MeshLibrary
	tempDir string
}

// NewConverter writes outputs to tempDir, or to the OS temp dir when empty.
func NewConverter(lib MeshLibrary, tempDir string) *Converter {
	return &Converter{lib: lib, tempDir: tempDir}
}

func (c *Converter) Available() bool {
	return c.lib != nil && c.lib.Available()
}

// Convert loads inputPath and exports it to a fresh temp file in target
// format, returning the temp path. On failure no output file remains.
// The library call is not interruptible; ctx is checked before it starts.
func (c *Converter) Convert(ctx context.Context, inputPath string, target formats.Format) (output string, err error) {
	if !c.Available() {
		return "", ErrLibraryUnavailable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	geometry, err := c.load(inputPath)
	if err != nil {
		return "", classify(LoadFailure, err)
	}
	m := exportable(geometry)
	if m == nil {
		return "", &ConversionError{Kind: UnsupportedMeshShape, Err: errInvalidMesh}
	}

	tmp, err := os.CreateTemp(c.tempDir, "modelswap-*"+target.Ext())
	if err != nil {
		return "", classify(ExportFailure, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err != nil {
			removeQuietly(tmpPath)
		}
	}()

	if err := c.export(m, tmpPath, target); err != nil {
		return "", classify(ExportFailure, err)
	}
	return tmpPath, nil
}

// load and export turn a codec panic into an error so one hostile upload
// fails alone.
func (c *Converter) load(path string) (g mesh.Geometry, err error) {
	defer recoverCodec("load", &err)
	return c.lib.Load(path)
}

func (c *Converter) export(m *mesh.Mesh, path string, target formats.Format) (err error) {
	defer recoverCodec("export", &err)
	return c.lib.Export(m, path, target)
}

func recoverCodec(op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	logger.WithFields(logrus.Fields{
		"op":    op,
		"panic": fmt.Sprint(r),
		"stack": string(debug.Stack()),
	}).Error("Mesh library panicked")
	*err = fmt.Errorf("%w: %v", errCodecPanic, r)
}

// exportable picks the mesh to export. Of a scene only the first exportable
// part is kept; parts are not merged.
func exportable(g mesh.Geometry) *mesh.Mesh {
	switch v := g.(type) {
	case *mesh.Mesh:
		if v.Exportable() {
			return v
		}
	case mesh.Scene:
		return v.First()
	}
	return nil
}

func classify(kind ConversionErrorKind, err error) *ConversionError {
	if errors.Is(err, mesh.ErrIncompatibleVersion) {
		kind = KnownDependencyIncompatibility
	}
	return &ConversionError{Kind: kind, Err: err}
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.WithFields(logrus.Fields{
			"path":  path,
			"error": err.Error(),
		}).Warn("Failed to remove temporary output")
	}
}
