package upload

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	logx "archsite/pkg/logx"
)

// CleanupStale drops chunk sessions idle for longer than olderThan (the
// configured TTL when zero) and removes orphaned temp directories.
func (s *Service) CleanupStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cfg := s.config()
	if olderThan <= 0 {
		olderThan = cfg.SessionTTL
	}
	cutoff := s.now().Add(-olderThan)

	s.mu.Lock()
	candidates := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.Unlock()

	removed := 0
	for _, sess := range candidates {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sess.mu.Lock()
		if !sess.removed && sess.updated.Before(cutoff) {
			s.dropSession(sess)
			if !sess.done {
				removed++
				s.log.Info("stale chunk session removed", logx.String("upload", sess.id), logx.Int("received", len(sess.parts)), logx.Int("chunks", sess.total))
			}
		}
		sess.mu.Unlock()
	}

	// Directories without a live session (e.g. unreadable meta.json).
	entries, err := os.ReadDir(cfg.TempDir)
	if err != nil {
		return removed, err
	}
	for _, e := range entries {
		if !e.IsDir() || s.lookup(e.Name()) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(cfg.TempDir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// rediscover loads chunk sessions persisted by a previous process.
func (s *Service) rediscover() (int, error) {
	entries, err := os.ReadDir(s.cfg.TempDir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() || !uploadIDRe.MatchString(e.Name()) {
			continue
		}
		sess, err := loadSession(filepath.Join(s.cfg.TempDir, e.Name()))
		if err != nil {
			s.log.Debug("skip chunk dir", logx.String("dir", e.Name()), logx.Err(err))
			continue
		}
		if _, ok := sess.parts[0]; ok {
			if kind, _, err := sniffFile(partPath(sess.dir, 0), sess.fileName); err == nil {
				sess.kind = kind
			}
		}
		s.sessions[sess.id] = sess
		n++
	}
	return n, nil
}

func loadSession(dir string) (*session, error) {
	b, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, err
	}
	var meta sessionMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, err
	}
	sess := &session{
		id:       filepath.Base(dir),
		dir:      dir,
		fileName: meta.FileName,
		actor:    meta.Actor,
		total:    meta.Total,
		parts:    map[int]int64{},
		created:  meta.Created,
		updated:  meta.Created,
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".part")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 || idx >= sess.total {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sess.parts[idx] = info.Size()
		sess.bytes += info.Size()
		if info.ModTime().After(sess.updated) {
			sess.updated = info.ModTime()
		}
	}
	return sess, nil
}
