package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

type plyCodec struct{}

type plyProperty struct {
	name      string
	typ       string
	list      bool
	countType string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   string
	elements []*plyElement
}

const maxPLYList = 1 << 16

var plySizes = map[string]int{
	"char": 1, "uchar": 1, "int8": 1, "uint8": 1,
	"short": 2, "ushort": 2, "int16": 2, "uint16": 2,
	"int": 4, "uint": 4, "int32": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

func (plyCodec) decode(path string) (Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := readPLYHeader(r)
	if err != nil {
		return nil, err
	}

	var read func(typ string) (float64, error)
	switch h.format {
	case "ascii":
		words := &plyWords{r: r}
		read = func(string) (float64, error) { return words.next() }
	case "binary_little_endian":
		read = binaryReader(r, binary.LittleEndian)
	case "binary_big_endian":
		read = binaryReader(r, binary.BigEndian)
	default:
		return nil, fmt.Errorf("%w: unknown ply format %q", ErrMalformed, h.format)
	}

	m := &Mesh{}
	for _, el := range h.elements {
		for i := 0; i < el.count; i++ {
			var (
				v    Vec3
				poly []int
			)
			for _, p := range el.props {
				if p.list {
					n, err := read(p.countType)
					if err != nil {
						return nil, err
					}
					if !(n >= 0 && n <= maxPLYList) || n != math.Trunc(n) {
						return nil, fmt.Errorf("%w: list length %v", ErrMalformed, n)
					}
					items := make([]int, int(n))
					for j := range items {
						x, err := read(p.typ)
						if err != nil {
							return nil, err
						}
						items[j] = int(x)
					}
					if el.name == "face" && (p.name == "vertex_indices" || p.name == "vertex_index") {
						poly = items
					}
					continue
				}
				x, err := read(p.typ)
				if err != nil {
					return nil, err
				}
				if el.name == "vertex" {
					switch p.name {
					case "x":
						v[0] = x
					case "y":
						v[1] = x
					case "z":
						v[2] = x
					}
				}
			}
			switch el.name {
			case "vertex":
				m.Vertices = append(m.Vertices, v)
			case "face":
				m.Faces = append(m.Faces, triangulate(poly)...)
			}
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func readPLYHeader(r *bufio.Reader) (*plyHeader, error) {
	magic, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("%w: missing ply magic", ErrMalformed)
	}

	h := &plyHeader{}
	var current *plyElement
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated header", ErrMalformed)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: bad format line", ErrMalformed)
			}
			if fields[2] != "1.0" {
				return nil, fmt.Errorf("%w: ply %s", ErrIncompatibleVersion, fields[2])
			}
			h.format = fields[1]
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: bad element line", ErrMalformed)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad element count %q", ErrMalformed, fields[2])
			}
			current = &plyElement{name: fields[1], count: n}
			h.elements = append(h.elements, current)
		case "property":
			if current == nil {
				return nil, fmt.Errorf("%w: property before element", ErrMalformed)
			}
			p, err := parsePLYProperty(fields)
			if err != nil {
				return nil, err
			}
			current.props = append(current.props, p)
		case "end_header":
			if h.format == "" {
				return nil, fmt.Errorf("%w: missing format line", ErrMalformed)
			}
			return h, nil
		}
	}
}

func parsePLYProperty(fields []string) (plyProperty, error) {
	if len(fields) == 5 && fields[1] == "list" {
		p := plyProperty{list: true, countType: fields[2], typ: fields[3], name: fields[4]}
		if plySizes[p.countType] == 0 || plySizes[p.typ] == 0 {
			return p, fmt.Errorf("%w: unknown list types %s %s", ErrMalformed, p.countType, p.typ)
		}
		return p, nil
	}
	if len(fields) != 3 || plySizes[fields[1]] == 0 {
		return plyProperty{}, fmt.Errorf("%w: bad property %q", ErrMalformed, strings.Join(fields, " "))
	}
	return plyProperty{typ: fields[1], name: fields[2]}, nil
}

func binaryReader(r io.Reader, order binary.ByteOrder) func(string) (float64, error) {
	var buf [8]byte
	return func(typ string) (float64, error) {
		size := plySizes[typ]
		if _, err := io.ReadFull(r, buf[:size]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		b := buf[:size]
		switch typ {
		case "char", "int8":
			return float64(int8(b[0])), nil
		case "uchar", "uint8":
			return float64(b[0]), nil
		case "short", "int16":
			return float64(int16(order.Uint16(b))), nil
		case "ushort", "uint16":
			return float64(order.Uint16(b)), nil
		case "int", "int32":
			return float64(int32(order.Uint32(b))), nil
		case "uint", "uint32":
			return float64(order.Uint32(b)), nil
		case "float", "float32":
			return float64(math.Float32frombits(order.Uint32(b))), nil
		default:
			return math.Float64frombits(order.Uint64(b)), nil
		}
	}
}

type plyWords struct {
	r      *bufio.Reader
	buffer []string
}

func (w *plyWords) next() (float64, error) {
	for len(w.buffer) == 0 {
		line, err := w.r.ReadString('\n')
		w.buffer = strings.Fields(line)
		if err != nil && len(w.buffer) == 0 {
			return 0, fmt.Errorf("%w: unexpected end of data", ErrMalformed)
		}
	}
	tok := w.buffer[0]
	w.buffer = w.buffer[1:]
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

func (plyCodec) encode(m *Mesh, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ply\nformat binary_little_endian 1.0\ncomment modelswap\n")
	fmt.Fprintf(w, "element vertex %d\nproperty float x\nproperty float y\nproperty float z\n", len(m.Vertices))
	fmt.Fprintf(w, "element face %d\nproperty list uchar int vertex_indices\nend_header\n", len(m.Faces))

	for _, v := range m.Vertices {
		for _, c := range v {
			if err := binary.Write(w, binary.LittleEndian, float32(c)); err != nil {
				return err
			}
		}
	}
	for _, face := range m.Faces {
		if err := w.WriteByte(3); err != nil {
			return err
		}
		for _, idx := range face {
			if err := binary.Write(w, binary.LittleEndian, int32(idx)); err != nil {
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
