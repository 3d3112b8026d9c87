package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"archsite/internal/content"
	"archsite/internal/eventbus"
	logx "archsite/pkg/logx"
)

const sniffLen = 512

// Service owns the uploads directory and the chunk session table.
type Service struct {
	mu  sync.Mutex
	cfg Config

	reg   Registrar
	trans Transcoder
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time

	sessions map[string]*session
}

// New prepares the directories and rediscovers chunk sessions left on disk.
// trans may be nil.
func New(cfg Config, reg Registrar, trans Transcoder, bus eventbus.Bus, log logx.Logger) (*Service, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, errors.New("uploads.dir is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	for _, d := range []string{cfg.Dir, cfg.TempDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	s := &Service{
		cfg:      cfg,
		reg:      reg,
		trans:    trans,
		bus:      bus,
		log:      log.With(logx.String("comp", "upload")),
		now:      time.Now,
		sessions: map[string]*session{},
	}
	if n, err := s.rediscover(); err != nil {
		s.log.Warn("chunk session rediscovery failed", logx.Err(err))
	} else if n > 0 {
		s.log.Info("chunk sessions resumed", logx.Int("count", n))
	}
	return s, nil
}

// Apply swaps limits and TTL. Directory changes require a restart.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Dir, cfg.TempDir, cfg.Prefix = s.cfg.Dir, s.cfg.TempDir, s.cfg.Prefix
	s.cfg = cfg.withDefaults()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Layout returns the URL/path mapping of the uploads directory.
func (s *Service) Layout() Layout {
	cfg := s.config()
	return Layout{Dir: cfg.Dir, Prefix: cfg.Prefix}
}

// MaxChunkBytes is the per-chunk limit clients should split uploads by.
func (s *Service) MaxChunkBytes() int64 { return s.config().MaxChunkBytes }

func (cfg Config) limitFor(kind content.MediaKind) int64 {
	if kind == content.MediaVideo {
		return cfg.MaxVideoBytes
	}
	return cfg.MaxImageBytes
}

// Save stores a single-request upload and registers it as media.
func (s *Service) Save(ctx context.Context, actor, name string, r io.Reader) (*content.Media, error) {
	cfg := s.config()
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedType)
	}
	kind, mime, err := classify(head, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, mime)
	}

	f, err := os.CreateTemp(cfg.Dir, ".upload-*")
	if err != nil {
		return nil, err
	}
	tmp := f.Name()
	limit := cfg.limitFor(kind)
	n, err := io.Copy(f, io.LimitReader(ctxReader{ctx, br}, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return s.commit(ctx, actor, tmp, name, n, kind, mime)
}

// commit moves tmp to its final dated location, registers the media row and
// schedules a transcode for videos.
func (s *Service) commit(ctx context.Context, actor, tmp, name string, size int64, kind content.MediaKind, mime string) (*content.Media, error) {
	cfg := s.config()
	now := s.now()
	rel := filepath.Join(fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())),
		uuid.NewString()+"-"+SanitizeName(name))
	dst := filepath.Join(cfg.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		s.log.Debug("chmod upload failed", logx.Err(err))
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("place upload: %w", err)
	}
	url, _ := Layout{Dir: cfg.Dir, Prefix: cfg.Prefix}.URLFor(dst)

	transcode := kind == content.MediaVideo && s.trans != nil && s.trans.Enabled()
	md := &content.Media{
		Kind:         kind,
		URL:          url,
		OriginalName: name,
		Size:         size,
		MimeType:     mime,
		Status:       content.MediaReady,
	}
	if transcode {
		md.Status = content.MediaProcessing
	}
	if s.reg != nil {
		if err := s.reg.RegisterMedia(ctx, actor, md); err != nil {
			_ = os.Remove(dst)
			return nil, err
		}
	}
	if transcode {
		if err := s.trans.Schedule(md.ID, dst); err != nil {
			// The row stays "processing"; startup resume retries it.
			s.log.Warn("transcode not scheduled", logx.Int64("media", md.ID), logx.Err(err))
		}
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.UploadCompleted, Time: now, Data: *md})
	}
	s.log.Info("upload stored", logx.String("url", url), logx.String("kind", string(kind)), logx.Int64("bytes", size))
	return md, nil
}

// Remove deletes the file behind an upload URL. Missing files are not an
// error.
func (s *Service) Remove(url string) error {
	p, ok := s.Layout().PathFor(url)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ctxReader stops a long copy when the request goes away.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
