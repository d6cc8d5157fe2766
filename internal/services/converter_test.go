package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelswap/internal/formats"
	"modelswap/internal/mesh"
)

type fakeLibrary struct {
	unavailable bool
	geometry    mesh.Geometry
	loadErr     error
	exportErr   error
	exported    *mesh.Mesh
	onLoad      func()
	loadPanic   any
	exportPanic any
}

func (f *fakeLibrary) Load(string) (mesh.Geometry, error) {
	if f.onLoad != nil {
		f.onLoad()
	}
	if f.loadPanic != nil {
		panic(f.loadPanic)
	}
	return f.geometry, f.loadErr
}

// Export leaves a partial file behind when it fails.
func (f *fakeLibrary) Export(m *mesh.Mesh, path string, _ formats.Format) error {
	f.exported = m
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		return err
	}
	if f.exportPanic != nil {
		panic(f.exportPanic)
	}
	return f.exportErr
}

func (f *fakeLibrary) Available() bool { return !f.unavailable }

func part(name string) *mesh.Mesh {
	return &mesh.Mesh{
		Name:     name,
		Vertices: []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    [][3]int{{0, 1, 2}},
	}
}

func TestConverter_Success(t *testing.T) {
	tmp := t.TempDir()
	lib := &fakeLibrary{geometry: part("a")}
	out, err := NewConverter(lib, tmp).Convert(context.Background(), "in.obj", formats.STL)
	require.NoError(t, err)

	assert.Equal(t, tmp, filepath.Dir(out))
	assert.Equal(t, ".stl", filepath.Ext(out))
	assert.FileExists(t, out)
}

func TestConverter_SceneUsesFirstExportablePart(t *testing.T) {
	lib := &fakeLibrary{geometry: mesh.Scene{&mesh.Mesh{Name: "empty"}, part("second"), part("third")}}
	_, err := NewConverter(lib, t.TempDir()).Convert(context.Background(), "in.glb", formats.OBJ)
	require.NoError(t, err)
	assert.Equal(t, "second", lib.exported.Name)
}

func TestConverter_Failures(t *testing.T) {
	tests := []struct {
		name     string
		lib      *fakeLibrary
		kind     ConversionErrorKind
		contains string
	}{
		{
			name:     "load failure",
			lib:      &fakeLibrary{loadErr: fmt.Errorf("load obj: %w", mesh.ErrMalformed)},
			kind:     LoadFailure,
			contains: "Conversion failed: load obj: malformed mesh data",
		},
		{
			name:     "empty scene",
			lib:      &fakeLibrary{geometry: mesh.Scene{}},
			kind:     UnsupportedMeshShape,
			contains: "Conversion failed: invalid mesh format",
		},
		{
			name:     "mesh without faces",
			lib:      &fakeLibrary{geometry: &mesh.Mesh{Vertices: []mesh.Vec3{{1, 2, 3}}}},
			kind:     UnsupportedMeshShape,
			contains: "invalid mesh format",
		},
		{
			name:     "export failure",
			lib:      &fakeLibrary{geometry: part("a"), exportErr: errors.New("disk full")},
			kind:     ExportFailure,
			contains: "Conversion failed: disk full",
		},
		{
			name:     "load panic",
			lib:      &fakeLibrary{loadPanic: "index out of range"},
			kind:     LoadFailure,
			contains: "Conversion failed: mesh library failed unexpectedly: index out of range",
		},
		{
			name:     "export panic",
			lib:      &fakeLibrary{geometry: part("a"), exportPanic: "nil map"},
			kind:     ExportFailure,
			contains: "Conversion failed: mesh library failed unexpectedly: nil map",
		},
		{
			name:     "incompatible version",
			lib:      &fakeLibrary{loadErr: fmt.Errorf("load ply: %w", mesh.ErrIncompatibleVersion)},
			kind:     KnownDependencyIncompatibility,
			contains: "Incompatible mesh format version detected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			out, err := NewConverter(tt.lib, tmp).Convert(context.Background(), "in.obj", formats.STL)
			require.Error(t, err)
			assert.Empty(t, out)

			var ce *ConversionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Empty(t, dirEntries(t, tmp), "no temp output survives a failure")
		})
	}
}

func TestConverter_UnavailableAndCancelled(t *testing.T) {
	tmp := t.TempDir()

	_, err := NewConverter(&fakeLibrary{unavailable: true}, tmp).Convert(context.Background(), "in.obj", formats.STL)
	assert.ErrorIs(t, err, ErrLibraryUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewConverter(&fakeLibrary{geometry: part("a")}, tmp).Convert(ctx, "in.obj", formats.STL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirEntries(t, tmp))
}
