package formats

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Format identifies a mesh interchange format. The same set is valid as a
// source and as a conversion target.
type Format string

const (
	OBJ  Format = "obj"
	STL  Format = "stl"
	PLY  Format = "ply"
	DAE  Format = "dae"
	GLTF Format = "gltf"
	GLB  Format = "glb"
	OFF  Format = "off"
)

// Default is used when a request does not declare an output format.
const Default = OBJ

var supported = map[Format]struct{}{
	OBJ:  {},
	STL:  {},
	PLY:  {},
	DAE:  {},
	GLTF: {},
	GLB:  {},
	OFF:  {},
}

// IsSupported reports whether ext (without the leading dot) is a registered format.
func IsSupported(ext string) bool {
	_, ok := supported[Format(ext)]
	return ok
}

// Parse returns the Format for s, which must match a registered identifier exactly.
func Parse(s string) (Format, error) {
	if !IsSupported(s) {
		return "", fmt.Errorf("unsupported format: %q", s)
	}
	return Format(s), nil
}

// FromFilename derives the format from the extension after the last dot.
// The comparison is case-insensitive.
func FromFilename(name string) (Format, bool) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "", false
	}
	ext = strings.ToLower(ext)
	if !IsSupported(ext) {
		return "", false
	}
	return Format(ext), true
}

// All returns every registered format in lexical order.
func All() []Format {
	all := lo.Keys(supported)
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) String() string {
	return string(f)
}
