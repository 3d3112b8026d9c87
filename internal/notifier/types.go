package notifier

import (
	"context"
	"time"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

// Sender delivers one formatted message to the admin channel.
type Sender interface {
	SendText(ctx context.Context, text string) error
}

// Priority levels; higher is more urgent.
const (
	PriorityInfo  = 5
	PriorityWarn  = 7
	PriorityAlert = 9
)

// Notification is one admin alert.
type Notification struct {
	Kind     string // "contact", "transcode", ...
	Priority int
	Text     string
}

type HistoryItem struct {
	At   time.Time `json:"at"`
	Kind string    `json:"kind"`
	Text string    `json:"text"`
}

// NotificationEvent is the payload of notifier.* events on the bus.
type NotificationEvent struct {
	Kind  string    `json:"kind"`
	Key   string    `json:"key"`
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}
