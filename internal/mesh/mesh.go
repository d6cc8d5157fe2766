// Package mesh loads and exports triangle meshes in the interchange formats
// listed by the formats registry.
package mesh

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported mesh format")
	ErrMalformed           = errors.New("malformed mesh data")
	ErrIncompatibleVersion = errors.New("incompatible format version")
)

// Vec3 is a vertex position.
type Vec3 [3]float64

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Name     string
	Vertices []Vec3
	Faces    [][3]int
}

// Scene is an ordered collection of mesh parts, as produced by formats that
// can hold more than one object.
type Scene []*Mesh

// Geometry is the result of a load: either a *Mesh or a Scene.
type Geometry interface {
	geometry()
}

func (*Mesh) geometry() {}
func (Scene) geometry() {}

// Exportable reports whether m holds at least one face.
func (m *Mesh) Exportable() bool {
	return m != nil && len(m.Vertices) > 0 && len(m.Faces) > 0
}

// Validate checks that every face index points at a vertex.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("%w: face %d references vertex %d of %d", ErrMalformed, i, idx, n)
			}
		}
	}
	return nil
}

// First returns the first exportable part of the scene, or nil.
func (s Scene) First() *Mesh {
	for _, m := range s {
		if m.Exportable() {
			return m
		}
	}
	return nil
}

// triangulate fans a polygon into triangles.
func triangulate(poly []int) [][3]int {
	if len(poly) < 3 {
		return nil
	}
	tris := make([][3]int, 0, len(poly)-2)
	for i := 1; i+1 < len(poly); i++ {
		tris = append(tris, [3]int{poly[0], poly[i], poly[i+1]})
	}
	return tris
}

// compact keeps only the vertices referenced by faces, renumbering the faces.
func compact(vertices []Vec3, faces [][3]int) ([]Vec3, [][3]int) {
	remap := make(map[int]int)
	out := make([]Vec3, 0)
	renum := make([][3]int, len(faces))
	for i, f := range faces {
		for j, idx := range f {
			n, ok := remap[idx]
			if !ok {
				n = len(out)
				remap[idx] = n
				out = append(out, vertices[idx])
			}
			renum[i][j] = n
		}
	}
	return out, renum
}

// normal returns the unit normal of a triangle, or the zero vector when degenerate.
func normal(a, b, c Vec3) Vec3 {
	u := Vec3{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := Vec3{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := Vec3{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
	l := n[0]*n[0] + n[1]*n[1] + n[2]*n[2]
	if l == 0 {
		return Vec3{}
	}
	l = math.Sqrt(l)
	return Vec3{n[0] / l, n[1] / l, n[2] / l}
}
