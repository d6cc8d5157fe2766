package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces an untrusted upload name to a safe base name.
// Path separators become underscores, so "../../etc/passwd" yields
// "etc_passwd". The result may be empty.
func SanitizeFilename(name string) string {
	if name == "" {
		return ""
	}

	// Decompose accents so "é" keeps its base letter, then drop non-ASCII.
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	sanitized := strings.NewReplacer("/", " ", "\\", " ").Replace(b.String())
	sanitized = strings.Join(strings.Fields(sanitized), "_")
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "")
	return strings.Trim(sanitized, "._")
}

// fileStem returns name without its final extension.
func fileStem(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
