package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"archsite/internal/content"
	"archsite/internal/notifier"
	"archsite/internal/task/engine"
	"archsite/internal/upload"
	logx "archsite/pkg/logx"
)

// TaskGroup is the engine concurrency group shared by all transcodes.
const TaskGroup = "transcode"

// Config controls ffmpeg invocation.
type Config struct {
	Enabled    bool
	FFmpegPath string
	Timeout    time.Duration
	CRF        int
	Preset     string
	MaxHeight  int
	ExtraArgs  []string
}

func (c Config) withDefaults() Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
	if c.CRF <= 0 {
		c.CRF = 23
	}
	if c.Preset == "" {
		c.Preset = "veryfast"
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = 1080
	}
	return c
}

// Store is the media side of content.Manager.
type Store interface {
	GetMedia(ctx context.Context, id int64) (*content.Media, error)
	UpdateMedia(ctx context.Context, m *content.Media) error
	ListMedia(ctx context.Context, limit, offset int) ([]content.Media, error)
	ReplaceMediaURL(ctx context.Context, oldURL, newURL string) (int64, error)
}

// Enqueuer is the task engine.
type Enqueuer interface {
	Enqueue(t engine.Task) error
}

type Transcoder struct {
	mu     sync.Mutex
	cfg    Config
	store  Store
	eng    Enqueuer
	layout upload.Layout
	runner Runner
	alerts content.Alerter
	log    logx.Logger
}

func New(cfg Config, store Store, eng Enqueuer, layout upload.Layout, log logx.Logger) *Transcoder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Transcoder{
		cfg:    cfg.withDefaults(),
		store:  store,
		eng:    eng,
		layout: layout,
		runner: execRunner{},
		log:    log.With(logx.String("comp", "media")),
	}
}

// SetRunner swaps the process runner.
func (t *Transcoder) SetRunner(r Runner) {
	t.mu.Lock()
	t.runner = r
	t.mu.Unlock()
}

// SetAlerter routes transcode failures to admins.
func (t *Transcoder) SetAlerter(a content.Alerter) {
	t.mu.Lock()
	t.alerts = a
	t.mu.Unlock()
}

func (t *Transcoder) Apply(cfg Config) {
	t.mu.Lock()
	t.cfg = cfg.withDefaults()
	t.mu.Unlock()
}

func (t *Transcoder) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg.Enabled
}

func (t *Transcoder) snapshot() (Config, Runner, content.Alerter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg, t.runner, t.alerts
}

// Probe reports whether the ffmpeg binary can be found.
func (t *Transcoder) Probe() error {
	cfg, _, _ := t.snapshot()
	_, err := exec.LookPath(cfg.FFmpegPath)
	return err
}

// Schedule queues a transcode of srcPath for media id without waiting.
// A transcode already queued or running for the same media is not
// duplicated.
func (t *Transcoder) Schedule(id int64, srcPath string) error {
	cfg, _, _ := t.snapshot()
	err := t.eng.Enqueue(engine.Task{
		Name:    "media.transcode",
		Key:     "media.transcode:" + strconv.FormatInt(id, 10),
		Group:   TaskGroup,
		Timeout: cfg.Timeout,
		Opt:     engine.TaskOptions{RetryMax: 1, RetryBase: 10 * time.Second, RetryMaxDelay: time.Minute},
		Run: func(ctx context.Context) error {
			return t.TranscodeAndUpdate(ctx, id, srcPath)
		},
	})
	if errors.Is(err, engine.ErrOverlapSkip) {
		return nil
	}
	return err
}

// outputPaths derives the MP4 and poster names next to src.
func outputPaths(src string) (mp4, poster string) {
	stem := strings.TrimSuffix(src, filepath.Ext(src))
	mp4 = stem + ".mp4"
	if mp4 == src {
		mp4 = stem + ".h264.mp4"
	}
	return mp4, stem + ".jpg"
}

func (t *Transcoder) videoArgs(cfg Config, src, dst string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", src,
		"-map", "0:v:0", "-map", "0:a:0?",
		"-c:v", "libx264", "-preset", cfg.Preset, "-crf", strconv.Itoa(cfg.CRF),
		"-pix_fmt", "yuv420p",
		"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", cfg.MaxHeight),
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
	}
	args = append(args, cfg.ExtraArgs...)
	return append(args, "-f", "mp4", dst)
}

func posterArgs(src, dst string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", src,
		"-vf", "thumbnail,scale=-2:'min(720,ih)'",
		"-frames:v", "1", "-q:v", "3",
		"-f", "image2", dst,
	}
}

// TranscodeAndUpdate converts srcPath to MP4 plus a JPEG poster, then points
// the media row and all content references at the new file. On failure the
// original upload is kept and the row is marked failed.
func (t *Transcoder) TranscodeAndUpdate(ctx context.Context, id int64, srcPath string) error {
	cfg, runner, _ := t.snapshot()
	log := t.log.With(logx.Int64("media", id))

	md, err := t.store.GetMedia(ctx, id)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return engine.NoRetry(err)
		}
		return err
	}
	if md.Status != content.MediaProcessing || md.Error != "" {
		md.Status, md.Error = content.MediaProcessing, ""
		if err := t.store.UpdateMedia(ctx, md); err != nil {
			return err
		}
	}
	if _, err := os.Stat(srcPath); err != nil {
		return t.fail(ctx, md, engine.NoRetry(fmt.Errorf("source missing: %w", err)))
	}

	outPath, posterPath := outputPaths(srcPath)
	tmpOut, tmpPoster := outPath+".part", posterPath+".part"
	cleanup := func() {
		_ = os.Remove(tmpOut)
		_ = os.Remove(tmpPoster)
	}

	start := time.Now()
	if out, err := runner.Run(ctx, cfg.FFmpegPath, t.videoArgs(cfg, srcPath, tmpOut)...); err != nil {
		cleanup()
		if errors.Is(err, exec.ErrNotFound) {
			err = engine.NoRetry(fmt.Errorf("ffmpeg not found: %w", err))
		} else {
			err = fmt.Errorf("ffmpeg: %w: %s", err, tail(out, 400))
		}
		return t.fail(ctx, md, err)
	}
	posterOK := true
	if out, err := runner.Run(ctx, cfg.FFmpegPath, posterArgs(srcPath, tmpPoster)...); err != nil {
		posterOK = false
		_ = os.Remove(tmpPoster)
		log.Warn("poster extraction failed", logx.Err(err), logx.String("output", tail(out, 200)))
	}

	if err := os.Rename(tmpOut, outPath); err != nil {
		cleanup()
		return t.fail(ctx, md, err)
	}
	if posterOK {
		if err := os.Rename(tmpPoster, posterPath); err != nil {
			posterOK = false
			_ = os.Remove(tmpPoster)
		}
	}

	newURL, ok := t.layout.URLFor(outPath)
	if !ok {
		return t.fail(ctx, md, engine.NoRetry(fmt.Errorf("output %s outside uploads dir", outPath)))
	}
	// References are keyed on the source file, not md.URL, which a failed
	// earlier attempt may already have moved to newURL.
	oldURL, ok := t.layout.URLFor(srcPath)
	if !ok {
		oldURL = md.URL
	}
	n, err := t.store.ReplaceMediaURL(ctx, oldURL, newURL)
	if err != nil {
		return err
	}
	md.URL, md.MimeType, md.Status, md.Error = newURL, "video/mp4", content.MediaReady, ""
	if info, err := os.Stat(outPath); err == nil {
		md.Size = info.Size()
	}
	if posterOK {
		md.PosterURL, _ = t.layout.URLFor(posterPath)
	}
	if err := t.store.UpdateMedia(ctx, md); err != nil {
		return err
	}
	if outPath != srcPath {
		if err := os.Remove(srcPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("original not removed", logx.Err(err))
		}
	}
	log.Info("transcode finished", logx.String("url", newURL), logx.Int64("refs", n), logx.Duration("took", time.Since(start)))
	return nil
}

// fail records cause on the media row and alerts admins. It returns cause
// so the engine can decide on retries.
func (t *Transcoder) fail(ctx context.Context, md *content.Media, cause error) error {
	_, _, alerts := t.snapshot()
	bg := context.WithoutCancel(ctx)
	md.Status, md.Error = content.MediaFailed, errText(cause)
	if err := t.store.UpdateMedia(bg, md); err != nil {
		t.log.Error("mark media failed", logx.Int64("media", md.ID), logx.Err(err))
	}
	if alerts != nil {
		_ = alerts.Notify(bg, notifier.Notification{
			Kind:     "transcode",
			Priority: notifier.PriorityWarn,
			Text:     fmt.Sprintf("Transcode failed for %s: %s", md.OriginalName, md.Error),
		})
	}
	return cause
}

// ResumePending reschedules videos left in processing by a previous run.
// With transcoding disabled they are published as uploaded.
func (t *Transcoder) ResumePending(ctx context.Context) (int, error) {
	all, err := t.store.ListMedia(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range all {
		md := &all[i]
		if md.Kind != content.MediaVideo || md.Status != content.MediaProcessing {
			continue
		}
		src, ok := t.layout.PathFor(md.URL)
		if !t.Enabled() || !ok {
			md.Status = content.MediaReady
			if err := t.store.UpdateMedia(ctx, md); err != nil {
				return n, err
			}
			continue
		}
		if err := t.Schedule(md.ID, src); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func errText(err error) string {
	var s string
	if errors.Is(err, exec.ErrNotFound) {
		s = "ffmpeg not found"
	} else {
		s = err.Error()
	}
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "…" + s[len(s)-n:]
	}
	return s
}
