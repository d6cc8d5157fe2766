package mesh

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type objCodec struct{}

type objObject struct {
	name  string
	faces [][3]int
}

func (objCodec) decode(path string) (Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		vertices []Vec3
		objects  = []*objObject{{}}
	)
	current := objects[0]

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrMalformed, line)
			}
			var v Vec3
			for i := 0; i < 3; i++ {
				c, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
				}
				v[i] = c
			}
			vertices = append(vertices, v)
		case "f":
			poly := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				idx, err := objIndex(tok, len(vertices))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
				}
				poly = append(poly, idx)
			}
			if len(poly) < 3 {
				return nil, fmt.Errorf("%w: line %d: face needs 3 vertices", ErrMalformed, line)
			}
			current.faces = append(current.faces, triangulate(poly)...)
		case "o":
			name := strings.TrimSpace(strings.TrimPrefix(text, "o"))
			if len(current.faces) == 0 {
				current.name = name
				continue
			}
			current = &objObject{name: name}
			objects = append(objects, current)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var parts Scene
	for _, o := range objects {
		if len(o.faces) == 0 {
			continue
		}
		v, faces := compact(vertices, o.faces)
		parts = append(parts, &Mesh{Name: o.name, Vertices: v, Faces: faces})
	}
	switch len(parts) {
	case 0:
		return &Mesh{Vertices: vertices}, nil
	case 1:
		return parts[0], nil
	default:
		return parts, nil
	}
}

// objIndex resolves a face token such as "3", "3/1" or "-1//2" to a zero-based index.
func objIndex(tok string, count int) (int, error) {
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		tok = tok[:i]
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, err
	}
	switch {
	case n > 0:
		n--
	case n < 0:
		n = count + n
	default:
		return 0, fmt.Errorf("vertex index 0 is invalid")
	}
	if n < 0 || n >= count {
		return 0, fmt.Errorf("vertex index %s out of range", tok)
	}
	return n, nil
}

func (objCodec) encode(m *Mesh, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# modelswap\no %s\n", meshName(m))
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "v %s %s %s\n", formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]))
	}
	for _, face := range m.Faces {
		fmt.Fprintf(w, "f %d %d %d\n", face[0]+1, face[1]+1, face[2]+1)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
