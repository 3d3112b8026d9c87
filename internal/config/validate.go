package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "archsite/pkg/logx"
)

// Validate checks field-level constraints that do not need other packages.
// Component-specific checks (schedule syntax, engine bounds) run in the app
// validator on top of this.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		check(err)
	}

	dur("server.read_timeout", cfg.Server.ReadTimeout)
	dur("server.write_timeout", cfg.Server.WriteTimeout)
	dur("server.idle_timeout", cfg.Server.IdleTimeout)
	if cfg.Server.MaxBodyBytes < 0 {
		check(errors.New("server.max_body_bytes must be >= 0"))
	}

	switch strings.TrimSpace(cfg.Site.DefaultLocale) {
	case "", "en", "ar":
	default:
		check(fmt.Errorf("site.default_locale: unsupported %q (use en or ar)", cfg.Site.DefaultLocale))
	}
	if cfg.Site.ContactRatePerMin < 0 {
		check(errors.New("site.contact_rate_per_min must be >= 0"))
	}

	if strings.TrimSpace(cfg.Admin.Username) == "" {
		check(errors.New("admin.username is required"))
	}
	if h := strings.TrimSpace(cfg.Admin.PasswordHash); h != "" && !strings.HasPrefix(h, "$2") {
		check(errors.New("admin.password_hash must be a bcrypt hash"))
	}
	dur("admin.session_ttl", cfg.Admin.SessionTTL)
	if cfg.Admin.LoginRatePerMin < 0 {
		check(errors.New("admin.login_rate_per_min must be >= 0"))
	}

	if strings.TrimSpace(cfg.Database.Path) == "" {
		check(errors.New("database.path is required"))
	}
	dur("database.busy_timeout", cfg.Database.BusyTimeout)

	if strings.TrimSpace(cfg.Uploads.Dir) == "" {
		check(errors.New("uploads.dir is required"))
	}
	if cfg.Uploads.MaxImageBytes < 0 || cfg.Uploads.MaxVideoBytes < 0 || cfg.Uploads.MaxChunkBytes < 0 {
		check(errors.New("uploads size limits must be >= 0"))
	}
	dur("uploads.session_ttl", cfg.Uploads.SessionTTL)

	dur("transcode.timeout", cfg.Transcode.Timeout)
	if cfg.Transcode.CRF < 0 || cfg.Transcode.CRF > 51 {
		check(errors.New("transcode.crf must be within 0..51"))
	}
	if cfg.Transcode.MaxHeight < 0 || cfg.Transcode.Concurrency < 0 {
		check(errors.New("transcode.max_height and transcode.concurrency must be >= 0"))
	}

	if cfg.TaskEngine.Workers < 0 || cfg.TaskEngine.QueueSize < 0 || cfg.TaskEngine.HistorySize < 0 || cfg.TaskEngine.RetryMax < 0 {
		check(errors.New("task_engine numeric fields must be >= 0"))
	}
	dur("task_engine.default_timeout", cfg.TaskEngine.DefaultTimeout)
	dur("task_engine.max_queue_delay", cfg.TaskEngine.MaxQueueDelay)

	dur("scheduler.audit_retention", cfg.Scheduler.AuditRetention)
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			check(fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err))
		}
	}

	if n := cfg.Notifier; n != nil {
		dur("notifier.retry_base", n.RetryBase)
		dur("notifier.retry_max_delay", n.RetryMaxDelay)
		dur("notifier.dedup_window", n.DedupWindow)
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 || n.DedupMaxEntries < 0 {
			check(errors.New("notifier numeric fields must be >= 0"))
		}
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		check(fmt.Errorf("logging.level: unknown %q", cfg.Logging.Level))
	}
	if !logx.ValidLevel(cfg.Logging.Alerts.MinLevel) {
		check(fmt.Errorf("logging.alerts.min_level: unknown %q", cfg.Logging.Alerts.MinLevel))
	}

	return errors.Join(errs...)
}
