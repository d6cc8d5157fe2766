package mesh

import (
	"fmt"
	"os"

	"modelswap/internal/formats"
)

type codec interface {
	decode(path string) (Geometry, error)
	encode(m *Mesh, path string) error
}

// Library dispatches load and export calls to the codec of each format.
type Library struct {
	codecs map[formats.Format]codec
}

// NewLibrary returns a Library with a codec for every registered format.
func NewLibrary() *Library {
	return &Library{
		codecs: map[formats.Format]codec{
			formats.OBJ:  objCodec{},
			formats.STL:  stlCodec{},
			formats.PLY:  plyCodec{},
			formats.OFF:  offCodec{},
			formats.DAE:  daeCodec{},
			formats.GLTF: gltfCodec{binary: false},
			formats.GLB:  gltfCodec{binary: true},
		},
	}
}

// Available reports whether the library can convert at all.
func (l *Library) Available() bool {
	return l != nil && len(l.codecs) > 0
}

// Formats lists the formats the library has codecs for.
func (l *Library) Formats() []formats.Format {
	var out []formats.Format
	for _, f := range formats.All() {
		if _, ok := l.codecs[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Load reads the file at path, choosing the codec from its extension.
func (l *Library) Load(path string) (Geometry, error) {
	f, ok := formats.FromFilename(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	c, ok := l.codecs[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	g, err := c.decode(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", f, err)
	}
	return g, nil
}

// Export writes m to path in the given format. A partially written file is
// left for the caller to remove.
func (l *Library) Export(m *Mesh, path string, format formats.Format) error {
	c, ok := l.codecs[format]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if !m.Exportable() {
		return fmt.Errorf("%w: mesh has no faces", ErrMalformed)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := c.encode(m, path); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	return nil
}

func createFile(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return f, nil
}

func meshName(m *Mesh) string {
	if m.Name != "" {
		return m.Name
	}
	return "mesh"
}
