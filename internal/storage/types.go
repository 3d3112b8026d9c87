package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures the SQLite store. Path may be ":memory:".
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means 5s
}

// Session is a persisted admin login. Only the token hash is stored.
type Session struct {
	TokenHash string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}
