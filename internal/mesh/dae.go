package mesh

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const colladaNamespace = "http://www.collada.org/2005/11/COLLADASchema"

type colladaDoc struct {
	XMLName    xml.Name          `xml:"COLLADA"`
	Xmlns      string            `xml:"xmlns,attr,omitempty"`
	Version    string            `xml:"version,attr"`
	Asset      colladaAsset      `xml:"asset"`
	Geometries []colladaGeometry `xml:"library_geometries>geometry"`
	Scenes     []colladaVisual   `xml:"library_visual_scenes>visual_scene"`
	Scene      *colladaSceneRef  `xml:"scene,omitempty"`
}

type colladaAsset struct {
	Tool   string `xml:"contributor>authoring_tool,omitempty"`
	UpAxis string `xml:"up_axis,omitempty"`
}

type colladaGeometry struct {
	ID   string      `xml:"id,attr"`
	Name string      `xml:"name,attr,omitempty"`
	Mesh colladaMesh `xml:"mesh"`
}

type colladaMesh struct {
	Sources   []colladaSource    `xml:"source"`
	Vertices  colladaVertices    `xml:"vertices"`
	Triangles []colladaPrimitive `xml:"triangles"`
	Polylists []colladaPrimitive `xml:"polylist"`
}

type colladaSource struct {
	ID         string            `xml:"id,attr"`
	FloatArray colladaFloatArray `xml:"float_array"`
	Accessor   colladaAccessor   `xml:"technique_common>accessor"`
}

type colladaFloatArray struct {
	ID    string `xml:"id,attr"`
	Count int    `xml:"count,attr"`
	Data  string `xml:",chardata"`
}

type colladaAccessor struct {
	Source string         `xml:"source,attr"`
	Count  int            `xml:"count,attr"`
	Stride int            `xml:"stride,attr"`
	Params []colladaParam `xml:"param"`
}

type colladaParam struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type colladaVertices struct {
	ID     string         `xml:"id,attr"`
	Inputs []colladaInput `xml:"input"`
}

type colladaInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

type colladaPrimitive struct {
	Count  int            `xml:"count,attr"`
	Inputs []colladaInput `xml:"input"`
	VCount string         `xml:"vcount,omitempty"`
	P      string         `xml:"p"`
}

type colladaVisual struct {
	ID    string        `xml:"id,attr"`
	Nodes []colladaNode `xml:"node"`
}

type colladaNode struct {
	ID       string              `xml:"id,attr"`
	Instance colladaInstanceGeom `xml:"instance_geometry"`
}

type colladaInstanceGeom struct {
	URL string `xml:"url,attr"`
}

type colladaSceneRef struct {
	Visual colladaInstanceGeom `xml:"instance_visual_scene"`
}

type daeCodec struct{}

func (daeCodec) decode(path string) (Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc colladaDoc
	if err := xml.NewDecoder(bufio.NewReader(f)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !strings.HasPrefix(doc.Version, "1.4") && !strings.HasPrefix(doc.Version, "1.5") {
		return nil, fmt.Errorf("%w: collada %q", ErrIncompatibleVersion, doc.Version)
	}

	var parts Scene
	for _, g := range doc.Geometries {
		m, err := g.toMesh()
		if err != nil {
			return nil, fmt.Errorf("geometry %q: %w", g.ID, err)
		}
		if len(m.Faces) > 0 {
			parts = append(parts, m)
		}
	}
	switch len(parts) {
	case 0:
		return nil, fmt.Errorf("%w: no triangle geometry", ErrMalformed)
	case 1:
		return parts[0], nil
	default:
		return parts, nil
	}
}

func (g colladaGeometry) toMesh() (*Mesh, error) {
	positions := ""
	for _, in := range g.Mesh.Vertices.Inputs {
		if in.Semantic == "POSITION" {
			positions = strings.TrimPrefix(in.Source, "#")
		}
	}
	var src *colladaSource
	for i := range g.Mesh.Sources {
		if g.Mesh.Sources[i].ID == positions {
			src = &g.Mesh.Sources[i]
		}
	}
	if src == nil {
		return nil, fmt.Errorf("%w: missing POSITION source", ErrMalformed)
	}
	values, err := parseFloats(src.FloatArray.Data)
	if err != nil {
		return nil, err
	}
	stride := src.Accessor.Stride
	if stride < 3 {
		stride = 3
	}

	name := g.Name
	if name == "" {
		name = g.ID
	}
	m := &Mesh{Name: name}
	for i := 0; i+2 < len(values); i += stride {
		m.Vertices = append(m.Vertices, Vec3{values[i], values[i+1], values[i+2]})
	}

	for _, tri := range g.Mesh.Triangles {
		idx, err := tri.vertexIndices()
		if err != nil {
			return nil, err
		}
		for i := 0; i+2 < len(idx); i += 3 {
			m.Faces = append(m.Faces, [3]int{idx[i], idx[i+1], idx[i+2]})
		}
	}
	for _, poly := range g.Mesh.Polylists {
		idx, err := poly.vertexIndices()
		if err != nil {
			return nil, err
		}
		counts, err := parseInts(poly.VCount)
		if err != nil {
			return nil, err
		}
		pos := 0
		for _, n := range counts {
			if n < 0 || n > len(idx)-pos {
				return nil, fmt.Errorf("%w: polylist vcount exceeds indices", ErrMalformed)
			}
			m.Faces = append(m.Faces, triangulate(idx[pos:pos+n])...)
			pos += n
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// vertexIndices extracts the VERTEX index stream from interleaved <p> data.
func (p colladaPrimitive) vertexIndices() ([]int, error) {
	stride, offset := 1, -1
	for _, in := range p.Inputs {
		if in.Offset < 0 {
			return nil, fmt.Errorf("%w: negative input offset %d", ErrMalformed, in.Offset)
		}
		if in.Offset+1 > stride {
			stride = in.Offset + 1
		}
		if in.Semantic == "VERTEX" {
			offset = in.Offset
		}
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: primitive without VERTEX input", ErrMalformed)
	}
	raw, err := parseInts(p.P)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(raw)/stride)
	for i := offset; i < len(raw); i += stride {
		out = append(out, raw[i])
	}
	return out, nil
}

func (daeCodec) encode(m *Mesh, path string) error {
	const id = "mesh0"
	coords := make([]string, 0, len(m.Vertices)*3)
	for _, v := range m.Vertices {
		coords = append(coords, formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]))
	}
	indices := make([]string, 0, len(m.Faces)*3)
	for _, face := range m.Faces {
		for _, idx := range face {
			indices = append(indices, strconv.Itoa(idx))
		}
	}

	doc := colladaDoc{
		Xmlns:   colladaNamespace,
		Version: "1.4.1",
		Asset:   colladaAsset{Tool: "modelswap", UpAxis: "Y_UP"},
		Geometries: []colladaGeometry{{
			ID:   id,
			Name: meshName(m),
			Mesh: colladaMesh{
				Sources: []colladaSource{{
					ID: id + "-positions",
					FloatArray: colladaFloatArray{
						ID:    id + "-positions-array",
						Count: len(coords),
						Data:  strings.Join(coords, " "),
					},
					Accessor: colladaAccessor{
						Source: "#" + id + "-positions-array",
						Count:  len(m.Vertices),
						Stride: 3,
						Params: []colladaParam{{"X", "float"}, {"Y", "float"}, {"Z", "float"}},
					},
				}},
				Vertices: colladaVertices{
					ID:     id + "-vertices",
					Inputs: []colladaInput{{Semantic: "POSITION", Source: "#" + id + "-positions"}},
				},
				Triangles: []colladaPrimitive{{
					Count:  len(m.Faces),
					Inputs: []colladaInput{{Semantic: "VERTEX", Source: "#" + id + "-vertices"}},
					P:      strings.Join(indices, " "),
				}},
			},
		}},
		Scenes: []colladaVisual{{
			ID:    "scene",
			Nodes: []colladaNode{{ID: "node0", Instance: colladaInstanceGeom{URL: "#" + id}}},
		}},
		Scene: &colladaSceneRef{Visual: colladaInstanceGeom{URL: "#scene"}},
	}

	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out[i] = n
	}
	return out, nil
}
