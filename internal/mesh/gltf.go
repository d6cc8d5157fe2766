package mesh

import (
	"fmt"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

type gltfCodec struct {
	binary bool
}

// decode returns one part per triangle primitive.
func (gltfCodec) decode(path string) (Geometry, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return nil, fmt.Errorf("%w: gltf asset version %q", ErrIncompatibleVersion, doc.Asset.Version)
	}

	var parts Scene
	for _, gm := range doc.Meshes {
		for _, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			m, err := readPrimitive(doc, gm.Name, prim)
			if err != nil {
				return nil, err
			}
			parts = append(parts, m)
		}
	}
	switch len(parts) {
	case 0:
		return Scene{}, nil
	case 1:
		return parts[0], nil
	default:
		return parts, nil
	}
}

func readPrimitive(doc *gltf.Document, name string, prim *gltf.Primitive) (*Mesh, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok || posIdx < 0 || posIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: primitive without POSITION", ErrMalformed)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var indices []uint32
	if prim.Indices != nil {
		if *prim.Indices < 0 || *prim.Indices >= len(doc.Accessors) {
			return nil, fmt.Errorf("%w: index accessor out of range", ErrMalformed)
		}
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	m := &Mesh{Name: name, Vertices: make([]Vec3, len(positions))}
	for i, p := range positions {
		m.Vertices[i] = Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
	}
	for i := 0; i+2 < len(indices); i += 3 {
		m.Faces = append(m.Faces, [3]int{int(indices[i]), int(indices[i+1]), int(indices[i+2])})
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (c gltfCodec) encode(m *Mesh, path string) error {
	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
	}
	indices := make([]uint32, 0, len(m.Faces)*3)
	for _, face := range m.Faces {
		indices = append(indices, uint32(face[0]), uint32(face[1]), uint32(face[2]))
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "modelswap"
	posAccessor := modeler.WritePosition(doc, positions)
	idxAccessor := modeler.WriteIndices(doc, indices)
	doc.Meshes = []*gltf.Mesh{{
		Name: meshName(m),
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idxAccessor),
			Attributes: map[string]int{gltf.POSITION: posAccessor},
			Mode:       gltf.PrimitiveTriangles,
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: meshName(m), Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	if c.binary {
		return gltf.SaveBinary(doc, path)
	}
	// A standalone .gltf carries its buffer inline as a data URI.
	for _, b := range doc.Buffers {
		b.EmbeddedResource()
	}
	return gltf.Save(doc, path)
}
