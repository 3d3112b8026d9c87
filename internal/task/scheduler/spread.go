package scheduler

import (
	"hash/fnv"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 30 * time.Second

// offsetSchedule shifts an interval job by a fixed per-name offset so the
// maintenance jobs registered at boot do not all hit SQLite in the same
// second. The offset is stable across restarts.
type offsetSchedule struct {
	every time.Duration
	first time.Time
}

func (s offsetSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return t.Add(s.every - t.Sub(s.first)%s.every)
}

func nameOffset(name string, window time.Duration) time.Duration {
	secs := uint64(window / time.Second)
	if secs == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return time.Duration(h.Sum64()%secs) * time.Second
}

func intervalSchedule(every time.Duration, now time.Time, name string) (cron.Schedule, time.Duration) {
	if every < time.Second {
		every = time.Second
	}
	off := nameOffset(name, min(every, maxStartupSpread))
	if off == 0 {
		return cron.Every(every), 0
	}
	return offsetSchedule{every: every, first: now.Add(every + off)}, off
}
