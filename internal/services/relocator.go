package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"modelswap/internal/formats"
)

// Artifact is a converted file published in the output directory.
type Artifact struct {
	Name string
	Path string
}

// Relocator moves conversion outputs into the output directory.
type Relocator struct {
	dir string
}

func NewRelocator(dir string) (*Relocator, error) {
	abs, err := ensureDir(dir)
	if err != nil {
		return nil, err
	}
	return &Relocator{dir: abs}, nil
}

func (r *Relocator) Dir() string {
	return r.dir
}

// Publish moves tempPath to "<stem>.<target>" in the output directory,
// replacing any artifact with the same name.
func (r *Relocator) Publish(tempPath, stem string, target formats.Format) (*Artifact, error) {
	name := stem + target.Ext()
	final := filepath.Join(r.dir, name)

	if err := os.Rename(tempPath, final); err != nil {
		// Rename fails across filesystems; copy beside the target and rename
		// there so readers never see a partial file.
		if err := copyInto(tempPath, r.dir, final); err != nil {
			return nil, fmt.Errorf("failed to publish %s: %w", name, err)
		}
		removeQuietly(tempPath)
	}
	return &Artifact{Name: name, Path: final}, nil
}

// Open resolves a download name to a path inside the output directory.
func (r *Relocator) Open(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || SanitizeFilename(name) != name {
		return "", ErrArtifactNotFound
	}
	path := filepath.Join(r.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrArtifactNotFound
	}
	return path, nil
}

func copyInto(src, dir, final string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, ".publish-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
