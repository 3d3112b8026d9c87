package engine

import (
	"errors"
	"time"
)

var (
	ErrStopped     = errors.New("task engine stopped")
	ErrStopping    = errors.New("task engine stopping")
	ErrQueueFull   = errors.New("task engine queue full")
	ErrOverlapSkip = errors.New("task skipped: same key already queued or running")
	ErrCircuitOpen = errors.New("task skipped: circuit breaker open")
)

// RetryAfterError is implemented by errors that carry an explicit retry delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// retryHint annotates a task error with retry policy. The message is the
// wrapped error's, so task history shows the real cause.
type retryHint struct {
	err       error
	permanent bool
	after     time.Duration
}

func (e *retryHint) Error() string { return e.err.Error() }
func (e *retryHint) Unwrap() error { return e.err }

// NoRetry marks err as permanent: the engine records it without retrying.
// A missing ffmpeg binary or a vanished source file are typical cases.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return &retryHint{err: err, permanent: true}
}

// IsNoRetry reports whether err was marked with NoRetry.
func IsNoRetry(err error) bool {
	var h *retryHint
	return errors.As(err, &h) && h.permanent
}

// RetryAfter suggests a delay before the next attempt. The engine caps it at
// RetryMaxDelay and applies jitter.
func RetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	return &retryAfterHint{retryHint{err: err, after: max(after, 0)}}
}

type retryAfterHint struct{ retryHint }

func (e *retryAfterHint) RetryAfter() time.Duration { return e.after }

// permanentCause returns the unwrapped cause when err is permanent.
func permanentCause(err error) (error, bool) {
	var h *retryHint
	if errors.As(err, &h) && h.permanent {
		return h.err, true
	}
	return nil, false
}
