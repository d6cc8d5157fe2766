package mesh

import (
	"fmt"

	"github.com/hschendel/stl"
)

type stlCodec struct{}

// decode merges coincident corners so that indexed vertex counts survive an
// STL round trip.
func (stlCodec) decode(path string) (Geometry, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m := &Mesh{Name: solid.Name}
	seen := make(map[stl.Vec3]int)
	for _, t := range solid.Triangles {
		var face [3]int
		for i, v := range t.Vertices {
			idx, ok := seen[v]
			if !ok {
				idx = len(m.Vertices)
				seen[v] = idx
				m.Vertices = append(m.Vertices, Vec3{float64(v[0]), float64(v[1]), float64(v[2])})
			}
			face[i] = idx
		}
		m.Faces = append(m.Faces, face)
	}
	return m, nil
}

func (stlCodec) encode(m *Mesh, path string) error {
	solid := &stl.Solid{
		Name:      meshName(m),
		Triangles: make([]stl.Triangle, len(m.Faces)),
	}
	for i, face := range m.Faces {
		a, b, c := m.Vertices[face[0]], m.Vertices[face[1]], m.Vertices[face[2]]
		solid.Triangles[i] = stl.Triangle{
			Normal:   toVec32(normal(a, b, c)),
			Vertices: [3]stl.Vec3{toVec32(a), toVec32(b), toVec32(c)},
		}
	}
	return solid.WriteFile(path)
}

func toVec32(v Vec3) stl.Vec3 {
	return stl.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}
