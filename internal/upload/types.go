package upload

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"archsite/internal/content"
)

var (
	ErrTooLarge        = errors.New("upload too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrSessionMismatch = errors.New("chunk does not match upload session")
	ErrBadChunk        = errors.New("invalid chunk")
	ErrNoSession       = errors.New("upload session not found")
)

const (
	defaultMaxImageBytes = 20 << 20
	defaultMaxVideoBytes = 2 << 30
	defaultMaxChunkBytes = 16 << 20
	defaultSessionTTL    = 24 * time.Hour
	maxChunks            = 100000
)

// Config holds upload limits and locations.
type Config struct {
	Dir           string // public root, served under Prefix
	TempDir       string // chunk sessions; default <Dir>/.chunks
	Prefix        string // URL prefix; default "/uploads/"
	MaxImageBytes int64
	MaxVideoBytes int64
	MaxChunkBytes int64
	SessionTTL    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "/uploads/"
	}
	if c.TempDir == "" && c.Dir != "" {
		c.TempDir = filepath.Join(c.Dir, ".chunks")
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = defaultMaxImageBytes
	}
	if c.MaxVideoBytes <= 0 {
		c.MaxVideoBytes = defaultMaxVideoBytes
	}
	if c.MaxChunkBytes <= 0 {
		c.MaxChunkBytes = defaultMaxChunkBytes
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	return c
}

// Registrar records stored files. *content.Manager implements it.
type Registrar interface {
	RegisterMedia(ctx context.Context, actor string, m *content.Media) error
}

// Transcoder schedules background processing of an uploaded video.
type Transcoder interface {
	Enabled() bool
	Schedule(mediaID int64, srcPath string) error
}

// Chunk describes one piece of a chunked upload.
type Chunk struct {
	UploadID string // empty on the first request: the server assigns one
	Index    int
	Total    int
	FileName string
}

// ChunkStatus reports a chunked upload's progress.
type ChunkStatus struct {
	UploadID string         `json:"uploadId"`
	FileName string         `json:"fileName"`
	Total    int            `json:"totalChunks"`
	Received []int          `json:"received"`
	Bytes    int64          `json:"bytes"`
	Complete bool           `json:"complete"`
	Media    *content.Media `json:"media,omitempty"`
}
