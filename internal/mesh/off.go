package mesh

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type offCodec struct{}

func (offCodec) decode(path string) (Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		if fields := strings.Fields(text); len(fields) > 0 {
			lines = append(lines, fields)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(lines) == 0 || !strings.HasSuffix(lines[0][0], "OFF") {
		return nil, fmt.Errorf("%w: missing OFF header", ErrMalformed)
	}

	// Counts may follow the keyword on the header line.
	counts := lines[0][1:]
	body := lines[1:]
	if len(counts) == 0 {
		if len(body) == 0 {
			return nil, fmt.Errorf("%w: missing element counts", ErrMalformed)
		}
		counts, body = body[0], body[1:]
	}
	if len(counts) < 2 {
		return nil, fmt.Errorf("%w: missing element counts", ErrMalformed)
	}
	nv, err := atoi(counts[0])
	if err != nil {
		return nil, err
	}
	nf, err := atoi(counts[1])
	if err != nil {
		return nil, err
	}
	if nv < 0 || nf < 0 || nv > len(body) || nf > len(body)-nv {
		return nil, fmt.Errorf("%w: expected %d vertices and %d faces", ErrMalformed, nv, nf)
	}

	m := &Mesh{Vertices: make([]Vec3, nv)}
	for i := 0; i < nv; i++ {
		row := body[i]
		if len(row) < 3 {
			return nil, fmt.Errorf("%w: vertex %d needs 3 coordinates", ErrMalformed, i)
		}
		for j := 0; j < 3; j++ {
			c, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			m.Vertices[i][j] = c
		}
	}
	for _, row := range body[nv : nv+nf] {
		n, err := atoi(row[0])
		if err != nil {
			return nil, err
		}
		if n < 0 || n > len(row)-1 {
			return nil, fmt.Errorf("%w: face lists %d of %d indices", ErrMalformed, len(row)-1, n)
		}
		poly := make([]int, n)
		for j := range poly {
			if poly[j], err = atoi(row[j+1]); err != nil {
				return nil, err
			}
		}
		m.Faces = append(m.Faces, triangulate(poly)...)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (offCodec) encode(m *Mesh, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "OFF\n%d %d 0\n", len(m.Vertices), len(m.Faces))
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "%s %s %s\n", formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]))
	}
	for _, face := range m.Faces {
		fmt.Fprintf(w, "3 %d %d %d\n", face[0], face[1], face[2])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return n, nil
}
