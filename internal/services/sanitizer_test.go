package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cube.obj", "cube.obj"},
		{"my model.stl", "my_model.stl"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\me\part.ply`, "C_Users_me_part.ply"},
		{"modèle.glb", "modele.glb"},
		{".hidden.obj", "hidden.obj"},
		{"weird<>|:*?.off", "weird.off"},
		{"..", ""},
		{"", ""},
		{"日本.obj", "obj"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "cube", fileStem("cube.obj"))
	assert.Equal(t, "scene.v2", fileStem("scene.v2.glb"))
	assert.Equal(t, "noext", fileStem("noext"))
}
