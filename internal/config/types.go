package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Server    ServerConfig    `json:"server"`
	Site      SiteConfig      `json:"site"`
	Admin     AdminConfig     `json:"admin"`
	Database  DatabaseConfig  `json:"database"`
	Uploads   UploadsConfig   `json:"uploads"`
	Transcode TranscodeConfig `json:"transcode"`
	Logging   LoggingConfig   `json:"logging"`
	Pprof     PprofConfig     `json:"pprof,omitempty"`

	// Scheduler controls maintenance triggers (cron/interval).
	Scheduler SchedulerConfig `json:"scheduler"`

	// TaskEngine controls execution of background work (transcodes, maintenance).
	TaskEngine TaskEngineConfig `json:"task_engine"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Telegram TelegramConfig  `json:"telegram,omitempty"`
}

// ServerConfig controls the public HTTP listener. Changes require a restart.
type ServerConfig struct {
	Addr         string `json:"addr"` // default ":8080"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
	// TrustProxy enables X-Forwarded-For / X-Real-IP handling.
	TrustProxy bool `json:"trust_proxy,omitempty"`
	// MaxBodyBytes caps non-upload request bodies. Default 1 MiB.
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty"`
}

// SiteConfig holds presentation settings.
type SiteConfig struct {
	Name          string `json:"name"`
	NameAr        string `json:"name_ar,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
	DefaultLocale string `json:"default_locale,omitempty"` // "en" | "ar"
	ContactEmail  string `json:"contact_email,omitempty"`
	// ContactRatePerMin limits contact form submissions per client IP.
	ContactRatePerMin int `json:"contact_rate_per_min,omitempty"`
}

// AdminConfig controls the admin area login.
type AdminConfig struct {
	Username string `json:"username"`
	// PasswordHash is a bcrypt hash (see `archsite -hash-password`).
	PasswordHash string `json:"password_hash"`
	SessionTTL   string `json:"session_ttl,omitempty"` // default "12h"
	CookieSecure bool   `json:"cookie_secure,omitempty"`
	// LoginRatePerMin limits login attempts per client IP.
	LoginRatePerMin int `json:"login_rate_per_min,omitempty"`
}

// DatabaseConfig controls the SQLite content store. Changes require a restart.
type DatabaseConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// UploadsConfig controls the upload pipeline.
type UploadsConfig struct {
	Dir           string `json:"dir"`                 // public files, served under /uploads/
	TempDir       string `json:"temp_dir,omitempty"`  // chunk sessions; default <dir>/.chunks
	MaxImageBytes int64  `json:"max_image_bytes,omitempty"`
	MaxVideoBytes int64  `json:"max_video_bytes,omitempty"`
	MaxChunkBytes int64  `json:"max_chunk_bytes,omitempty"`
	SessionTTL    string `json:"session_ttl,omitempty"` // stale chunk sessions; default "24h"
}

// TranscodeConfig controls background video transcoding via ffmpeg.
type TranscodeConfig struct {
	Enabled    bool     `json:"enabled"`
	FFmpegPath string   `json:"ffmpeg_path,omitempty"` // default "ffmpeg" on PATH
	Timeout    string   `json:"timeout,omitempty"`     // per transcode; default "30m"
	CRF        int      `json:"crf,omitempty"`         // default 23
	Preset     string   `json:"preset,omitempty"`      // default "veryfast"
	MaxHeight  int      `json:"max_height,omitempty"`  // default 1080
	ExtraArgs  []string `json:"extra_args,omitempty"`
	// Concurrency caps simultaneous transcodes (engine concurrency group). Default 1.
	Concurrency int `json:"concurrency,omitempty"`
}

// TaskEngineConfig controls the background task engine.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 200
//   - retry_max: 2
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
}

// SchedulerConfig controls maintenance triggers.
//
// Each job accepts cron ("0 3 * * *"), a Go duration ("30m") or HH:MM ("01:30").
// An empty value uses the default; "off" disables that job.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`

	UploadsCleanup  string `json:"uploads_cleanup,omitempty"`  // default "30m"
	SessionsPrune   string `json:"sessions_prune,omitempty"`   // default "1h"
	StorageOptimize string `json:"storage_optimize,omitempty"` // default "0 4 * * *"

	// AuditRetention bounds the audit log; pruned with storage_optimize.
	// Default "2160h" (90 days), "0s" keeps everything.
	AuditRetention string `json:"audit_retention,omitempty"`
}

// NotifierConfig controls the async admin alert pipeline.
// If the whole section is omitted, the notifier is enabled whenever Telegram is configured.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
}

// TelegramConfig configures the outbound alert channel.
type TelegramConfig struct {
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// PprofConfig mounts net/http/pprof under the admin router.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix,omitempty"` // default "/debug/pprof/"
	Token   string `json:"token,omitempty"`  // bearer token; admin session also accepted

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Alerts  LoggingAlerts `json:"alerts"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlerts forwards error logs to the Telegram chat.
type LoggingAlerts struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}
