package upload

import (
	"path"
	"strings"

	"archsite/internal/content"
)

const (
	maxStemLen = 60
	maxExtLen  = 10
)

// SanitizeName reduces a client-supplied file name to a safe
// "<slug>.<ext>" form: directories, NULs, separators and dot segments are
// dropped.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ReplaceAll(name, "\x00", "")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		name = ""
	}

	ext := strings.ToLower(path.Ext(name))
	stem := strings.TrimSuffix(name, path.Ext(name))
	ext = cleanExt(ext)

	stem = content.Slugify(stem)
	if len(stem) > maxStemLen {
		stem = strings.TrimRight(stem[:maxStemLen], "-")
	}
	if stem == "" {
		stem = "file"
	}
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

func cleanExt(ext string) string {
	var b strings.Builder
	for _, r := range strings.TrimPrefix(ext, ".") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > maxExtLen {
		return ""
	}
	return s
}
