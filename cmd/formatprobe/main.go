// Command formatprobe exports a unit triangle in each candidate format and
// reports which ones the mesh library supports.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"

	"modelswap/internal/formats"
	"modelswap/internal/mesh"
)

// extra are formats other converters commonly offer.
var extra = []string{"wrl", "x3d", "3ds"}

type result struct {
	format string
	err    error
}

func main() {
	keep := flag.Bool("keep", false, "keep the exported files")
	flag.Parse()

	dir, err := os.MkdirTemp("", "formatprobe-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	if *keep {
		fmt.Println("Writing probes to", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	fmt.Println("Testing available export formats...")
	results := probe(mesh.NewLibrary(), dir, candidates())
	render(os.Stdout, results)
}

func candidates() []string {
	var out []string
	for _, f := range formats.All() {
		out = append(out, string(f))
	}
	return append(out, extra...)
}

// probe exports a triangle to each format and loads it back.
func probe(lib *mesh.Library, dir string, names []string) []result {
	tri := &mesh.Mesh{
		Name:     "probe",
		Vertices: []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    [][3]int{{0, 1, 2}},
	}

	results := make([]result, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, "probe."+name)
		err := lib.Export(tri, path, formats.Format(name))
		if err == nil {
			_, err = lib.Load(path)
		}
		results = append(results, result{format: name, err: err})
	}
	return results
}

func render(w io.Writer, results []result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Format", "Status", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, r := range results {
		status, detail := "SUPPORTED", ""
		if r.err != nil {
			status, detail = "NOT SUPPORTED", r.err.Error()
		}
		table.Append([]string{r.format, status, detail})
	}
	table.Render()
}
