package upload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"archsite/internal/content"
	logx "archsite/pkg/logx"
)

type fakeRegistrar struct {
	mu     sync.Mutex
	nextID int64
	media  []content.Media
}

func (f *fakeRegistrar) RegisterMedia(_ context.Context, _ string, m *content.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.ID = f.nextID
	f.media = append(f.media, *m)
	return nil
}

func (f *fakeRegistrar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.media)
}

type fakeTranscoder struct {
	mu        sync.Mutex
	enabled   bool
	scheduled map[int64]string
}

func (f *fakeTranscoder) Enabled() bool { return f.enabled }

func (f *fakeTranscoder) Schedule(id int64, src string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduled == nil {
		f.scheduled = map[int64]string{}
	}
	f.scheduled[id] = src
	return nil
}

func pngBytes(n int) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, n)...)
}

func mp4Bytes(n int) []byte {
	b := []byte{0, 0, 0, 0x18}
	b = append(b, "ftypmp42"...)
	b = append(b, 0, 0, 0, 0)
	b = append(b, "mp42isom"...)
	return append(b, bytes.Repeat([]byte{0x07}, n)...)
}

func newService(t *testing.T, cfg Config, trans Transcoder) (*Service, *fakeRegistrar) {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	reg := &fakeRegistrar{}
	s, err := New(cfg, reg, trans, nil, logx.Nop())
	require.NoError(t, err)
	return s, reg
}

func TestSaveImage(t *testing.T) {
	s, reg := newService(t, Config{}, nil)
	md, err := s.Save(context.Background(), "admin", "../My Photo.PNG", bytes.NewReader(pngBytes(100)))
	require.NoError(t, err)

	require.Equal(t, content.MediaImage, md.Kind)
	require.Equal(t, content.MediaReady, md.Status)
	require.Equal(t, "image/png", md.MimeType)
	require.EqualValues(t, 108, md.Size)
	now := time.Now()
	require.True(t, strings.HasPrefix(md.URL, "/uploads/"+now.Format("2006/01")+"/"), md.URL)
	require.True(t, strings.HasSuffix(md.URL, "-my-photo.png"), md.URL)
	require.Equal(t, 1, reg.count())

	path, ok := s.Layout().PathFor(md.URL)
	require.True(t, ok)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, pngBytes(100), got)
}

func TestSaveRejects(t *testing.T) {
	dir := t.TempDir()
	s, reg := newService(t, Config{Dir: dir, MaxImageBytes: 50}, nil)

	_, err := s.Save(context.Background(), "admin", "notes.txt", strings.NewReader("plain text is not media"))
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save(context.Background(), "admin", "big.png", bytes.NewReader(pngBytes(100)))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = s.Save(context.Background(), "admin", "empty.png", bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrUnsupportedType)

	require.Zero(t, reg.count())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.Equal(t, ".chunks", e.Name(), "leftover %s", e.Name())
	}
}

func TestSaveVideoSchedulesTranscode(t *testing.T) {
	trans := &fakeTranscoder{enabled: true}
	s, _ := newService(t, Config{}, trans)
	md, err := s.Save(context.Background(), "admin", "walk.mp4", bytes.NewReader(mp4Bytes(64)))
	require.NoError(t, err)
	require.Equal(t, content.MediaVideo, md.Kind)
	require.Equal(t, content.MediaProcessing, md.Status)

	path, _ := s.Layout().PathFor(md.URL)
	require.Equal(t, path, trans.scheduled[md.ID])

	trans.enabled = false
	md, err = s.Save(context.Background(), "admin", "clip.mov", bytes.NewReader(append([]byte{0, 0, 0, 0x14}, []byte("ftypqt  \x00\x00\x00\x00qt  padding")...)))
	require.NoError(t, err)
	require.Equal(t, "video/quicktime", md.MimeType)
	require.Equal(t, content.MediaReady, md.Status)
}

func TestChunkedOutOfOrder(t *testing.T) {
	s, reg := newService(t, Config{}, nil)
	ctx := context.Background()
	data := mp4Bytes(300)
	parts := [][]byte{data[:100], data[100:200], data[200:]}

	st, err := s.WriteChunk(ctx, "admin", Chunk{Index: 2, Total: 3, FileName: "tour.mp4"}, bytes.NewReader(parts[2]))
	require.NoError(t, err)
	require.NotEmpty(t, st.UploadID)
	require.Equal(t, []int{2}, st.Received)
	id := st.UploadID

	st, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 0, Total: 3, FileName: "tour.mp4"}, bytes.NewReader(parts[0]))
	require.NoError(t, err)
	require.False(t, st.Complete)

	// Retrying a chunk overwrites it.
	_, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 0, Total: 3, FileName: "tour.mp4"}, bytes.NewReader(parts[0]))
	require.NoError(t, err)

	status, err := s.Status(id)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, status.Received)
	require.EqualValues(t, len(parts[0])+len(parts[2]), status.Bytes)

	st, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 1, Total: 3, FileName: "tour.mp4"}, bytes.NewReader(parts[1]))
	require.NoError(t, err)
	require.True(t, st.Complete)
	require.NotNil(t, st.Media)

	path, ok := s.Layout().PathFor(st.Media.URL)
	require.True(t, ok)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.NoDirExists(t, filepath.Join(s.config().TempDir, id))

	// A late duplicate sees the finished upload.
	dup, err := s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 1, Total: 3, FileName: "tour.mp4"}, bytes.NewReader(parts[1]))
	require.NoError(t, err)
	require.True(t, dup.Complete)
	require.Equal(t, st.Media.ID, dup.Media.ID)
	require.Equal(t, 1, reg.count())
}

func TestChunkedConcurrentFinalizeOnce(t *testing.T) {
	s, reg := newService(t, Config{}, nil)
	ctx := context.Background()
	data := pngBytes(64)
	const id = "upload-concurrent-1"

	_, err := s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 0, Total: 2, FileName: "a.png"}, bytes.NewReader(data[:40]))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*ChunkStatus, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 1, Total: 2, FileName: "a.png"}, bytes.NewReader(data[40:]))
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		require.True(t, results[i].Complete)
		require.Equal(t, results[0].Media.URL, results[i].Media.URL)
	}
	require.Equal(t, 1, reg.count())
}

func TestChunkValidation(t *testing.T) {
	s, _ := newService(t, Config{MaxChunkBytes: 64}, nil)
	ctx := context.Background()

	_, err := s.WriteChunk(ctx, "admin", Chunk{Index: 3, Total: 3, FileName: "x.png"}, bytes.NewReader(pngBytes(1)))
	require.ErrorIs(t, err, ErrBadChunk)
	_, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: "../../etc", Index: 0, Total: 1, FileName: "x.png"}, bytes.NewReader(pngBytes(1)))
	require.ErrorIs(t, err, ErrBadChunk)

	const id = "upload-validation-1"
	_, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 1, Total: 2, FileName: "x.png"}, bytes.NewReader(pngBytes(4)))
	require.NoError(t, err)
	_, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 0, Total: 3, FileName: "x.png"}, bytes.NewReader(pngBytes(4)))
	require.ErrorIs(t, err, ErrSessionMismatch)
	_, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 0, Total: 2, FileName: "x.png"}, bytes.NewReader(pngBytes(100)))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 0, Total: 2, FileName: "x.png"}, strings.NewReader("#!/bin/sh\necho pwned\n"))
	require.ErrorIs(t, err, ErrUnsupportedType)
	_, err = s.Status(id)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestChunkCumulativeLimit(t *testing.T) {
	s, reg := newService(t, Config{MaxImageBytes: 100, MaxChunkBytes: 64}, nil)
	ctx := context.Background()
	const id = "upload-cumulative-1"

	first := pngBytes(52)
	require.Len(t, first, 60)
	_, err := s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 0, Total: 3, FileName: "big.png"}, bytes.NewReader(first))
	require.NoError(t, err)

	_, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 1, Total: 3, FileName: "big.png"}, bytes.NewReader(bytes.Repeat([]byte{0x42}, 60)))
	require.ErrorIs(t, err, ErrTooLarge)
	require.Zero(t, reg.count())

	st, err := s.Status(id)
	require.NoError(t, err)
	require.Equal(t, []int{0}, st.Received)
	require.False(t, st.Complete)
}

func TestChunkSessionSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	s1, _ := newService(t, Config{Dir: dir}, nil)
	ctx := context.Background()
	data := pngBytes(50)
	const id = "upload-restart-1"

	_, err := s1.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 0, Total: 2, FileName: "r.png"}, bytes.NewReader(data[:30]))
	require.NoError(t, err)

	s2, reg := newService(t, Config{Dir: dir}, nil)
	st, err := s2.Status(id)
	require.NoError(t, err)
	require.Equal(t, []int{0}, st.Received)
	require.Equal(t, "r.png", st.FileName)

	st, err = s2.WriteChunk(ctx, "admin", Chunk{UploadID: id, Index: 1, Total: 2, FileName: "r.png"}, bytes.NewReader(data[30:]))
	require.NoError(t, err)
	require.True(t, st.Complete)
	require.Equal(t, 1, reg.count())
	require.EqualValues(t, len(data), st.Media.Size)
}

func TestCleanupStaleAndAbort(t *testing.T) {
	s, _ := newService(t, Config{}, nil)
	ctx := context.Background()

	_, err := s.WriteChunk(ctx, "admin", Chunk{UploadID: "upload-stale-01", Index: 0, Total: 2, FileName: "s.png"}, bytes.NewReader(pngBytes(8)))
	require.NoError(t, err)
	_, err = s.WriteChunk(ctx, "admin", Chunk{UploadID: "upload-abort-01", Index: 0, Total: 2, FileName: "a.png"}, bytes.NewReader(pngBytes(8)))
	require.NoError(t, err)

	require.NoError(t, s.Abort("upload-abort-01"))
	require.ErrorIs(t, s.Abort("upload-abort-01"), ErrNoSession)
	require.NoDirExists(t, filepath.Join(s.config().TempDir, "upload-abort-01"))

	n, err := s.CleanupStale(ctx, time.Hour)
	require.NoError(t, err)
	require.Zero(t, n)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = s.CleanupStale(ctx, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = s.Status("upload-stale-01")
	require.ErrorIs(t, err, ErrNoSession)
	require.NoDirExists(t, filepath.Join(s.config().TempDir, "upload-stale-01"))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"photo.jpg", "photo.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\Villa Plan (final).PNG`, "villa-plan-final.png"},
		{"evil\x00.mp4", "evil.mp4"},
		{"..", "file"},
		{"", "file"},
		{"صورة.jpg", "file.jpg"},
		{"archive.tar.gz", "archive-tar.gz"},
		{"x.verylongextension", "x"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, SanitizeName(tt.in), "SanitizeName(%q)", tt.in)
	}
}

func TestLayoutPathFor(t *testing.T) {
	l := Layout{Dir: "/srv/uploads", Prefix: "/uploads/"}
	p, ok := l.PathFor("/uploads/2024/05/a.jpg")
	require.True(t, ok)
	require.Equal(t, filepath.Join("/srv/uploads", "2024", "05", "a.jpg"), p)

	for _, bad := range []string{"/uploads/../secret", "/static/a.css", "/uploads/", "/uploads/a/../../b"} {
		_, ok := l.PathFor(bad)
		require.False(t, ok, bad)
	}
	u, ok := l.URLFor(filepath.Join("/srv/uploads", "2024", "05", "a.mp4"))
	require.True(t, ok)
	require.Equal(t, "/uploads/2024/05/a.mp4", u)
}
