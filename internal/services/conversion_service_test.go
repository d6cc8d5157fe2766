package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelswap/internal/config"
	"modelswap/internal/formats"
	"modelswap/internal/mesh"
	"modelswap/internal/metrics"
)

type workspace struct {
	cfg       *config.Config
	collector *metrics.Collector
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	return workspace{
		cfg: &config.Config{
			Storage: config.StorageConfig{
				UploadDir:     filepath.Join(root, "uploads"),
				OutputDir:     filepath.Join(root, "outputs"),
				ConversionDir: filepath.Join(root, "conv"),
			},
			Limits: config.LimitsConfig{
				MaxFileSize:        1024,
				MaxFilesPerRequest: 2,
			},
		},
		collector: metrics.NewCollector(),
	}
}

func (w workspace) service(t *testing.T, lib MeshLibrary) *ConversionService {
	t.Helper()
	svc, err := NewConversionService(w.cfg, lib, w.collector)
	require.NoError(t, err)
	return svc
}

func (w workspace) assertEmpty(t *testing.T) {
	t.Helper()
	assert.Empty(t, dirEntries(t, w.cfg.Storage.UploadDir), "uploads")
	assert.Empty(t, dirEntries(t, w.cfg.Storage.ConversionDir), "conversion temp")
}

func TestNewConversionService_CreatesDirectories(t *testing.T) {
	w := newWorkspace(t)
	w.service(t, mesh.NewLibrary())
	for _, dir := range []string{w.cfg.Storage.UploadDir, w.cfg.Storage.OutputDir, w.cfg.Storage.ConversionDir} {
		assert.DirExists(t, dir)
	}
}

func TestProcess_ObjToStl(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, mesh.NewLibrary())

	out, err := svc.Process(context.Background(), ConversionRequest{
		Files:        fileHeaders(t, upload{"my cube.obj", triangleOBJ}),
		OutputFormat: "stl",
	})
	require.NoError(t, err)
	require.Len(t, out.Converted, 1)
	assert.Empty(t, out.Errors)

	got := out.Converted[0]
	assert.Equal(t, "my_cube.obj", got.OriginalName)
	assert.Equal(t, "my_cube.stl", got.ConvertedName)
	assert.Equal(t, []string{"my_cube.stl"}, dirEntries(t, w.cfg.Storage.OutputDir))
	w.assertEmpty(t)

	geometry, err := mesh.NewLibrary().Load(got.Path)
	require.NoError(t, err)
	m, ok := geometry.(*mesh.Mesh)
	require.True(t, ok)
	assert.Len(t, m.Faces, 1)

	path, err := svc.Open("my_cube.stl")
	require.NoError(t, err)
	assert.Equal(t, got.Path, path)

	assert.Contains(t, scrape(t, w.collector),
		`modelswap_conversions_total{outcome="published",source="obj",target="stl"} 1`)
}

func TestProcess_NonASCIIStem(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, mesh.NewLibrary())

	out, err := svc.Process(context.Background(), ConversionRequest{
		Files:        fileHeaders(t, upload{"日本.obj", triangleOBJ}),
		OutputFormat: "stl",
	})
	require.NoError(t, err)
	assert.Empty(t, out.Errors)
	require.Len(t, out.Converted, 1)
	assert.Equal(t, "obj.stl", out.Converted[0].ConvertedName)
	w.assertEmpty(t)
}

func TestProcess_RequestLevelRejection(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, mesh.NewLibrary())

	_, err := svc.Process(context.Background(), ConversionRequest{
		Files:        fileHeaders(t, upload{"cube.obj", triangleOBJ}),
		OutputFormat: "fbx",
	})
	assert.Same(t, ErrUnsupportedOutputFormat, err)
	w.assertEmpty(t)
	assert.Empty(t, dirEntries(t, w.cfg.Storage.OutputDir))
}

func TestProcess_PerFileErrors(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, mesh.NewLibrary())
	big := make([]byte, 2048)

	out, err := svc.Process(context.Background(), ConversionRequest{
		Files: fileHeaders(t,
			upload{"model.xyz", triangleOBJ},
			upload{"big.obj", string(big)},
		),
		OutputFormat: "obj",
	})
	require.NoError(t, err)
	assert.Empty(t, out.Converted)
	assert.Equal(t, []string{
		"Invalid file format: model.xyz",
		"File too large: big.obj (max 1KB per file)",
	}, out.Errors)
	w.assertEmpty(t)

	text := scrape(t, w.collector)
	assert.Contains(t, text, `modelswap_rejected_files_total{reason="invalid_format"} 1`)
	assert.Contains(t, text, `modelswap_rejected_files_total{reason="too_large"} 1`)
}

func TestProcess_FailureDoesNotAffectSibling(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, mesh.NewLibrary())

	out, err := svc.Process(context.Background(), ConversionRequest{
		Files: fileHeaders(t,
			upload{"broken.obj", "v 0 0 0\nf 1 2 3\n"},
			upload{"good.obj", triangleOBJ},
		),
		OutputFormat: "ply",
	})
	require.NoError(t, err)
	require.Len(t, out.Converted, 1)
	assert.Equal(t, "good.ply", out.Converted[0].ConvertedName)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "Error converting broken.obj: Conversion failed:")

	assert.Equal(t, []string{"good.ply"}, dirEntries(t, w.cfg.Storage.OutputDir))
	w.assertEmpty(t)
}

func TestProcess_HostileHeadersFailPerFile(t *testing.T) {
	plyNaN := "ply\nformat ascii 1.0\n" +
		"element vertex 3\nproperty float x\nproperty float y\nproperty float z\n" +
		"element face 1\nproperty list uchar int vertex_indices\nend_header\n" +
		"0 0 0\n1 0 0\n0 1 0\nnan 0 1 2\n"
	uploads := []upload{
		{"neg.off", "OFF\n1 -1 0\n0 0 0\n"},
		{"negv.off", "OFF\n-1 1 0\n3 0 0 0\n"},
		{"nan.ply", plyNaN},
	}
	for _, u := range uploads {
		t.Run(u.name, func(t *testing.T) {
			w := newWorkspace(t)
			svc := w.service(t, mesh.NewLibrary())

			out, err := svc.Process(context.Background(), ConversionRequest{
				Files:        fileHeaders(t, u),
				OutputFormat: "stl",
			})
			require.NoError(t, err)
			assert.Empty(t, out.Converted)
			require.Len(t, out.Errors, 1)
			assert.Contains(t, out.Errors[0], "Error converting "+u.name+": Conversion failed:")
			assert.Contains(t, out.Errors[0], "malformed mesh data")

			w.assertEmpty(t)
			assert.Empty(t, dirEntries(t, w.cfg.Storage.OutputDir))
		})
	}
}

func TestProcess_CodecPanicFailsPerFile(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, &fakeLibrary{geometry: part("a"), exportPanic: "boom"})

	out, err := svc.Process(context.Background(), ConversionRequest{
		Files:        fileHeaders(t, upload{"cube.obj", triangleOBJ}),
		OutputFormat: "stl",
	})
	require.NoError(t, err)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "Error converting cube.obj: Conversion failed:")
	w.assertEmpty(t)
	assert.Empty(t, dirEntries(t, w.cfg.Storage.OutputDir))
}

func TestProcess_IncompatibleVersionMessage(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, mesh.NewLibrary())

	ply := "ply\nformat ascii 2.0\nelement vertex 0\nelement face 0\nend_header\n"
	out, err := svc.Process(context.Background(), ConversionRequest{
		Files:        fileHeaders(t, upload{"old.ply", ply}),
		OutputFormat: "obj",
	})
	require.NoError(t, err)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "Error converting old.ply: Incompatible mesh format version detected")
	w.assertEmpty(t)
}

func TestProcess_LibraryUnavailable(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, &fakeLibrary{unavailable: true})
	assert.False(t, svc.Available())

	out, err := svc.Process(context.Background(), ConversionRequest{
		Files:        fileHeaders(t, upload{"cube.obj", triangleOBJ}),
		OutputFormat: "stl",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Error converting cube.obj: " + ErrLibraryUnavailable.Error()}, out.Errors)
	w.assertEmpty(t)
}

func TestCleanup_RemovesFilesAndIsIdempotent(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, mesh.NewLibrary())

	_, err := svc.Process(context.Background(), ConversionRequest{
		Files:        fileHeaders(t, upload{"cube.obj", triangleOBJ}),
		OutputFormat: "off",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(w.cfg.Storage.UploadDir, "stale.obj"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(w.cfg.Storage.OutputDir, "keep"), 0o755))

	report, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Removed)
	assert.Empty(t, dirEntries(t, w.cfg.Storage.UploadDir))
	assert.Equal(t, []string{"keep"}, dirEntries(t, w.cfg.Storage.OutputDir))

	report, err = svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Removed)

	_, err = svc.Open("cube.off")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestCleanup_RecreatesMissingDirectories(t *testing.T) {
	w := newWorkspace(t)
	svc := w.service(t, mesh.NewLibrary())
	require.NoError(t, os.RemoveAll(w.cfg.Storage.OutputDir))

	_, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.DirExists(t, w.cfg.Storage.OutputDir)
}

func TestCleanup_WaitsForInFlightConversion(t *testing.T) {
	w := newWorkspace(t)
	loading := make(chan struct{})
	proceed := make(chan struct{})
	lib := &fakeLibrary{
		geometry: part("a"),
		onLoad: func() {
			close(loading)
			<-proceed
		},
	}
	svc := w.service(t, lib)
	files := fileHeaders(t, upload{"cube.obj", triangleOBJ})

	var (
		wg  sync.WaitGroup
		out *RequestOutcome
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		out, err = svc.Process(context.Background(), ConversionRequest{
			Files:        files,
			OutputFormat: string(formats.STL),
		})
		assert.NoError(t, err)
	}()
	<-loading

	cleaned := make(chan *CleanupReport, 1)
	go func() {
		report, err := svc.Cleanup(context.Background())
		assert.NoError(t, err)
		cleaned <- report
	}()

	select {
	case <-cleaned:
		t.Fatal("cleanup ran during an in-flight conversion")
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)
	wg.Wait()
	require.Len(t, out.Converted, 1)

	report := <-cleaned
	assert.Equal(t, 1, report.Removed, "the published artifact is removed after the conversion finishes")
	assert.Empty(t, dirEntries(t, w.cfg.Storage.OutputDir))
}
