package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"archsite/internal/content"
	logx "archsite/pkg/logx"
)

const metaFile = "meta.json"

var uploadIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

type session struct {
	mu sync.Mutex

	id       string
	dir      string
	fileName string
	actor    string
	total    int
	parts    map[int]int64
	bytes    int64
	kind     content.MediaKind
	created  time.Time
	updated  time.Time

	done    bool
	removed bool
	media   *content.Media
}

type sessionMeta struct {
	FileName string    `json:"fileName"`
	Total    int       `json:"totalChunks"`
	Actor    string    `json:"actor"`
	Created  time.Time `json:"created"`
}

func (ss *session) status() ChunkStatus {
	st := ChunkStatus{
		UploadID: ss.id,
		FileName: ss.fileName,
		Total:    ss.total,
		Received: make([]int, 0, len(ss.parts)),
		Bytes:    ss.bytes,
		Complete: ss.done,
		Media:    ss.media,
	}
	for i := range ss.parts {
		st.Received = append(st.Received, i)
	}
	sort.Ints(st.Received)
	return st
}

func partPath(dir string, idx int) string {
	return filepath.Join(dir, strconv.Itoa(idx)+".part")
}

// WriteChunk stores one chunk. The request that delivers the last missing
// chunk assembles the file; later duplicates get the finished status.
func (s *Service) WriteChunk(ctx context.Context, actor string, c Chunk, r io.Reader) (*ChunkStatus, error) {
	if c.Total < 1 || c.Total > maxChunks || c.Index < 0 || c.Index >= c.Total {
		return nil, fmt.Errorf("%w: index %d of %d", ErrBadChunk, c.Index, c.Total)
	}
	if strings.TrimSpace(c.FileName) == "" {
		return nil, fmt.Errorf("%w: fileName is required", ErrBadChunk)
	}
	if c.UploadID == "" {
		c.UploadID = uuid.NewString()
	} else if !uploadIDRe.MatchString(c.UploadID) {
		return nil, fmt.Errorf("%w: malformed uploadId", ErrBadChunk)
	}

	sess, err := s.openSession(c, actor)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		st := sess.status()
		return &st, nil
	}
	if sess.removed {
		return nil, ErrNoSession
	}

	cfg := s.config()
	if err := s.writePart(ctx, sess, c.Index, r, cfg); err != nil {
		if errors.Is(err, ErrUnsupportedType) {
			s.dropSession(sess)
		}
		return nil, err
	}
	if len(sess.parts) < sess.total {
		st := sess.status()
		return &st, nil
	}

	md, err := s.assemble(ctx, sess, cfg)
	if err != nil {
		s.dropSession(sess)
		return nil, err
	}
	sess.done, sess.media, sess.updated = true, md, s.now()
	if err := os.RemoveAll(sess.dir); err != nil {
		s.log.Warn("chunk dir cleanup failed", logx.String("upload", sess.id), logx.Err(err))
	}
	st := sess.status()
	return &st, nil
}

func (s *Service) openSession(c Chunk, actor string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[c.UploadID]; ok {
		if sess.total != c.Total || sess.fileName != c.FileName {
			return nil, fmt.Errorf("%w: expected %q in %d chunks", ErrSessionMismatch, sess.fileName, sess.total)
		}
		return sess, nil
	}

	dir := filepath.Join(s.cfg.TempDir, c.UploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	now := s.now()
	meta, _ := json.Marshal(sessionMeta{FileName: c.FileName, Total: c.Total, Actor: actor, Created: now})
	if err := os.WriteFile(filepath.Join(dir, metaFile), meta, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	sess := &session{
		id:       c.UploadID,
		dir:      dir,
		fileName: c.FileName,
		actor:    actor,
		total:    c.Total,
		parts:    map[int]int64{},
		created:  now,
		updated:  now,
	}
	s.sessions[c.UploadID] = sess
	s.log.Debug("chunk session opened", logx.String("upload", sess.id), logx.Int("chunks", sess.total))
	return sess, nil
}

// writePart stores chunk idx atomically and enforces the per-chunk and
// cumulative limits. Caller holds sess.mu.
func (s *Service) writePart(ctx context.Context, sess *session, idx int, r io.Reader, cfg Config) error {
	dst := partPath(sess.dir, idx)
	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, io.LimitReader(ctxReader{ctx, r}, cfg.MaxChunkBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > cfg.MaxChunkBytes {
		err = fmt.Errorf("%w: chunk exceeds %d bytes", ErrTooLarge, cfg.MaxChunkBytes)
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: empty chunk", ErrBadChunk)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if idx == 0 {
		kind, mime, err := sniffFile(tmp, sess.fileName)
		if err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("%w: %s", err, mime)
		}
		sess.kind = kind
	}
	limit := cfg.MaxVideoBytes
	if sess.kind != "" {
		limit = cfg.limitFor(sess.kind)
	}
	if next := sess.bytes - sess.parts[idx] + n; next > limit {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: upload exceeds %d bytes", ErrTooLarge, limit)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	sess.bytes += n - sess.parts[idx]
	sess.parts[idx] = n
	sess.updated = s.now()
	return nil
}

// assemble concatenates the parts in index order into a temp file and
// commits it. Caller holds sess.mu.
func (s *Service) assemble(ctx context.Context, sess *session, cfg Config) (*content.Media, error) {
	kind, mime, err := sniffFile(partPath(sess.dir, 0), sess.fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, mime)
	}
	if sess.bytes > cfg.limitFor(kind) {
		return nil, ErrTooLarge
	}

	out, err := os.CreateTemp(cfg.Dir, ".upload-*")
	if err != nil {
		return nil, err
	}
	tmp := out.Name()
	var size int64
	for i := 0; i < sess.total && err == nil; i++ {
		var n int64
		n, err = appendFile(out, partPath(sess.dir, i))
		size += n
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("assemble upload: %w", err)
	}
	return s.commit(ctx, sess.actor, tmp, sess.fileName, size, kind, mime)
}

func appendFile(dst io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(dst, f)
}

func sniffFile(path, name string) (content.MediaKind, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", err
	}
	return classify(head[:n], name)
}

// Status reports which chunks of id have arrived.
func (s *Service) Status(id string) (*ChunkStatus, error) {
	sess := s.lookup(id)
	if sess == nil {
		return nil, ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return nil, ErrNoSession
	}
	st := sess.status()
	return &st, nil
}

// Abort discards a session and its chunks.
func (s *Service) Abort(id string) error {
	sess := s.lookup(id)
	if sess == nil {
		return ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return ErrNoSession
	}
	s.dropSession(sess)
	return nil
}

func (s *Service) lookup(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// dropSession forgets sess and deletes its directory. Caller holds sess.mu.
func (s *Service) dropSession(sess *session) {
	sess.removed = true
	s.mu.Lock()
	if s.sessions[sess.id] == sess {
		delete(s.sessions, sess.id)
	}
	s.mu.Unlock()
	if err := os.RemoveAll(sess.dir); err != nil {
		s.log.Warn("chunk dir cleanup failed", logx.String("upload", sess.id), logx.Err(err))
	}
}
