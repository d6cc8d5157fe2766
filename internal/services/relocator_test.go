package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelswap/internal/formats"
)

func TestRelocator_PublishOverwrites(t *testing.T) {
	out := t.TempDir()
	r, err := NewRelocator(out)
	require.NoError(t, err)

	for _, content := range []string{"first", "second"} {
		tmp := filepath.Join(t.TempDir(), "modelswap-1.stl")
		require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))

		a, err := r.Publish(tmp, "cube", formats.STL)
		require.NoError(t, err)
		assert.Equal(t, "cube.stl", a.Name)
		assert.Equal(t, filepath.Join(r.Dir(), "cube.stl"), a.Path)
		assert.NoFileExists(t, tmp)
	}

	data, err := os.ReadFile(filepath.Join(out, "cube.stl"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data), "last writer wins")
	assert.Equal(t, []string{"cube.stl"}, dirEntries(t, out))
}

func TestRelocator_PublishMissingSource(t *testing.T) {
	r, err := NewRelocator(t.TempDir())
	require.NoError(t, err)
	_, err = r.Publish(filepath.Join(t.TempDir(), "missing.stl"), "cube", formats.STL)
	assert.Error(t, err)
}

func TestRelocator_Open(t *testing.T) {
	out := t.TempDir()
	r, err := NewRelocator(out)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(out, "cube.stl"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(out, "sub"), 0o755))

	path, err := r.Open("cube.stl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "cube.stl"), path)

	for _, name := range []string{"", "missing.obj", "../cube.stl", "sub", ".", "..", "a/b.stl"} {
		_, err := r.Open(name)
		assert.ErrorIs(t, err, ErrArtifactNotFound, name)
	}
}
