package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"archsite/internal/task/engine"
	logx "archsite/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

var ErrUnknownSchedule = errors.New("unknown schedule")

// AddSchedule registers (or replaces) the named job. Each trigger enqueues
// one engine task named after the schedule; a trigger that fires while the
// previous run is still queued or running is skipped.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("schedule name required")
	}
	if job == nil {
		return errors.New("schedule job required")
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	d := &scheduleDef{
		name:    name,
		spec:    ps,
		timeout: timeout,
		job:     job,
		opt:     engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning},
	}
	s.defs = append(s.defs, d)
	if s.c != nil {
		s.addCronLocked(d)
	}
	s.log.Debug("schedule registered",
		logx.String("name", name),
		logx.String("spec", ps.Spec()),
		logx.Duration("timeout", timeout),
		logx.Duration("startup_spread", d.spread),
	)
	return nil
}

// Remove unregisters the named job and reports whether it existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(strings.TrimSpace(name))
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

func (s *Service) removeLocked(name string) bool {
	for i, d := range s.defs {
		if d.name != name {
			continue
		}
		if s.c != nil && d.entryID != 0 {
			s.c.Remove(d.entryID)
		}
		s.defs = append(s.defs[:i], s.defs[i+1:]...)
		return true
	}
	return false
}

// Trigger enqueues the named job immediately, outside its schedule.
func (s *Service) Trigger(name string) error {
	s.mu.Lock()
	var def *scheduleDef
	for _, d := range s.defs {
		if d.name == name {
			def = d
		}
	}
	s.mu.Unlock()
	if def == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	return s.enqueue(def)
}

func (s *Service) enqueue(d *scheduleDef) error {
	if s.engine == nil {
		return engine.ErrStopped
	}
	return s.engine.Enqueue(engine.Task{Name: d.name, Timeout: d.timeout, Run: d.job, Opt: d.opt})
}

func (s *Service) addCronLocked(d *scheduleDef) {
	job := cron.FuncJob(func() {
		s.reportEnqueueError(d.name, s.enqueue(d))
	})
	if d.spec.Kind == SpecInterval {
		sched, spread := intervalSchedule(d.spec.Every, time.Now().In(s.loc), d.name)
		d.spread = spread
		d.entryID = s.c.Schedule(sched, job)
		return
	}
	// Specs are validated by ParseSchedule; an error here means the parser changed.
	id, err := s.c.AddJob(d.spec.Cron, job)
	if err != nil {
		s.log.Error("schedule register failed", logx.String("name", d.name), logx.String("spec", d.spec.Cron), logx.Err(err))
		return
	}
	d.entryID = id
}

func (s *Service) reportEnqueueError(name string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("schedule trigger skipped", logx.String("schedule", name), logx.Err(err))
		return
	}

	now := time.Now()
	s.enqMu.Lock()
	last := s.lastEnqWarn[name]
	if !last.IsZero() && now.Sub(last) < enqueueWarnThrottle {
		s.enqMu.Unlock()
		return
	}
	s.lastEnqWarn[name] = now
	s.enqMu.Unlock()

	s.log.Warn("schedule failed to enqueue task", logx.String("schedule", name), logx.Err(err))
}
