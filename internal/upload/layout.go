package upload

import (
	"path/filepath"
	"strings"
)

// Layout maps public upload URLs to files on disk and back.
type Layout struct {
	Dir    string
	Prefix string
}

// PathFor returns the file behind url, or false when url is not an upload
// or would escape Dir.
func (l Layout) PathFor(url string) (string, bool) {
	rel, ok := strings.CutPrefix(url, l.Prefix)
	if !ok || rel == "" || strings.ContainsRune(rel, 0) {
		return "", false
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(l.Dir, clean), true
}

// URLFor returns the public URL of a file inside Dir.
func (l Layout) URLFor(path string) (string, bool) {
	rel, err := filepath.Rel(l.Dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return l.Prefix + filepath.ToSlash(rel), true
}
