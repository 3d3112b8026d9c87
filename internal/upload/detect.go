package upload

import (
	"net/http"
	"path"
	"strings"

	"archsite/internal/content"
)

var sniffedTypes = map[string]content.MediaKind{
	"image/jpeg": content.MediaImage,
	"image/png":  content.MediaImage,
	"image/gif":  content.MediaImage,
	"image/webp": content.MediaImage,
	"video/mp4":  content.MediaVideo,
	"video/webm": content.MediaVideo,
	"video/avi":  content.MediaVideo,
}

// Containers the sniffer reports as octet-stream; trusted by extension only
// when the sniffer has nothing better.
var extVideoTypes = map[string]string{
	".mov": "video/quicktime",
	".m4v": "video/x-m4v",
	".mkv": "video/x-matroska",
	".mp4": "video/mp4",
	".3gp": "video/3gpp",
}

// classify sniffs head (the first bytes of the file) and falls back to the
// file extension for video containers.
func classify(head []byte, name string) (content.MediaKind, string, error) {
	mime := http.DetectContentType(head)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if kind, ok := sniffedTypes[mime]; ok {
		return kind, mime, nil
	}
	if mime == "application/octet-stream" {
		if m, ok := extVideoTypes[strings.ToLower(path.Ext(name))]; ok {
			return content.MediaVideo, m, nil
		}
	}
	return "", mime, ErrUnsupportedType
}
