package engine

import (
	"sync"
	"time"
)

// circuitState counts consecutive failures of one task name. Once the count
// reaches the trip threshold the circuit opens for a cooldown that doubles
// with every further failure; a success closes it.
type circuitState struct {
	fails       int
	openUntil   time.Time
	lastFailure time.Time
}

type circuitStore struct {
	mu sync.Mutex
	m  map[string]*circuitState
}

// locked returns the state for name with c.mu held; callers must unlock.
func (c *circuitStore) locked(name string) *circuitState {
	c.mu.Lock()
	if c.m == nil {
		c.m = make(map[string]*circuitState)
	}
	st := c.m[name]
	if st == nil {
		st = &circuitState{}
		c.m[name] = st
	}
	return st
}

func tripThreshold(cfg Config, opt TaskOptions) int {
	if cfg.CircuitTripFailures < 0 || opt.CircuitTripFailures < 0 {
		return 0
	}
	if opt.CircuitTripFailures > 0 {
		return opt.CircuitTripFailures
	}
	return cfg.CircuitTripFailures
}

func (st *circuitState) expire(now time.Time, resetAfter time.Duration) {
	if !st.lastFailure.IsZero() && now.Sub(st.lastFailure) > resetAfter {
		*st = circuitState{}
	}
}

func (s *Service) circuitIsOpen(now time.Time, name string, cfg Config, opt TaskOptions) (bool, time.Time) {
	if tripThreshold(cfg, opt) == 0 {
		return false, time.Time{}
	}
	st := s.circuits.locked(name)
	defer s.circuits.mu.Unlock()

	st.expire(now, cfg.CircuitResetAfter)
	if now.Before(st.openUntil) {
		return true, st.openUntil
	}
	return false, time.Time{}
}

func (s *Service) circuitRecordResult(now time.Time, name string, cfg Config, opt TaskOptions, err error) {
	trip := tripThreshold(cfg, opt)
	if trip == 0 {
		return
	}
	st := s.circuits.locked(name)
	defer s.circuits.mu.Unlock()

	st.expire(now, cfg.CircuitResetAfter)
	if err == nil {
		*st = circuitState{}
		return
	}
	st.fails++
	st.lastFailure = now
	if st.fails < trip {
		return
	}
	d := cfg.CircuitBaseDelay
	for i := 0; i < st.fails-trip && d < cfg.CircuitMaxDelay; i++ {
		d *= 2
	}
	st.openUntil = now.Add(min(d, cfg.CircuitMaxDelay))
}

func (s *Service) circuitSnapshot(now time.Time, cfg Config) (total, open int) {
	if cfg.CircuitTripFailures < 0 {
		return 0, 0
	}
	s.circuits.mu.Lock()
	defer s.circuits.mu.Unlock()
	for _, st := range s.circuits.m {
		total++
		if now.Before(st.openUntil) {
			open++
		}
	}
	return total, open
}
