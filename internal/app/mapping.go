package app

import (
	"strings"
	"time"

	"archsite/internal/auth"
	"archsite/internal/config"
	"archsite/internal/content"
	"archsite/internal/media"
	"archsite/internal/notifier"
	"archsite/internal/observability/pprof"
	"archsite/internal/storage"
	"archsite/internal/task/engine"
	"archsite/internal/task/scheduler"
	"archsite/internal/transport/telegram"
	"archsite/internal/upload"
	"archsite/internal/web"
	logx "archsite/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alerts: logx.AlertConfig{
			Enabled:    cfg.Logging.Alerts.Enabled,
			MinLevel:   cfg.Logging.Alerts.MinLevel,
			RatePerSec: cfg.Logging.Alerts.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("database.busy_timeout", cfg.Database.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Path: strings.TrimSpace(cfg.Database.Path), BusyTimeout: busy}, nil
}

func mapTelegramConfig(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:    strings.TrimSpace(cfg.Telegram.Token),
		ChatID:   cfg.Telegram.ChatID,
		ThreadID: cfg.Telegram.ThreadID,
	}
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	defTimeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	maxQueueDelay, err := config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}
	transcodes := cfg.Transcode.Concurrency
	if transcodes <= 0 {
		transcodes = 1
	}
	return engine.Config{
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: defTimeout,
		MaxQueueDelay:  maxQueueDelay,
		HistorySize:    te.HistorySize,
		RetryMax:       te.RetryMax,
		GroupLimits:    map[string]int{media.TaskGroup: transcodes},
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: strings.TrimSpace(cfg.Scheduler.Timezone),
	}
}

// mapNotifierConfig enables the notifier whenever Telegram is configured and
// the notifier section is omitted.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{Enabled: mapTelegramConfig(cfg).Configured()}, nil
	}
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	dedup, err := config.ParseDurationField("notifier.dedup_window", n.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedup,
		DedupMaxEntries: n.DedupMaxEntries,
	}, nil
}

func mapAuthConfig(cfg *config.Config) (auth.Config, error) {
	ttl, err := config.ParseDurationField("admin.session_ttl", cfg.Admin.SessionTTL)
	if err != nil {
		return auth.Config{}, err
	}
	return auth.Config{
		Username:        strings.TrimSpace(cfg.Admin.Username),
		PasswordHash:    strings.TrimSpace(cfg.Admin.PasswordHash),
		SessionTTL:      ttl,
		LoginRatePerMin: cfg.Admin.LoginRatePerMin,
		CookieSecure:    cfg.Admin.CookieSecure,
	}, nil
}

func mapUploadConfig(cfg *config.Config) (upload.Config, error) {
	ttl, err := config.ParseDurationField("uploads.session_ttl", cfg.Uploads.SessionTTL)
	if err != nil {
		return upload.Config{}, err
	}
	return upload.Config{
		Dir:           strings.TrimSpace(cfg.Uploads.Dir),
		TempDir:       strings.TrimSpace(cfg.Uploads.TempDir),
		MaxImageBytes: cfg.Uploads.MaxImageBytes,
		MaxVideoBytes: cfg.Uploads.MaxVideoBytes,
		MaxChunkBytes: cfg.Uploads.MaxChunkBytes,
		SessionTTL:    ttl,
	}, nil
}

func mapMediaConfig(cfg *config.Config) (media.Config, error) {
	timeout, err := config.ParseDurationField("transcode.timeout", cfg.Transcode.Timeout)
	if err != nil {
		return media.Config{}, err
	}
	return media.Config{
		Enabled:    cfg.Transcode.Enabled,
		FFmpegPath: strings.TrimSpace(cfg.Transcode.FFmpegPath),
		Timeout:    timeout,
		CRF:        cfg.Transcode.CRF,
		Preset:     strings.TrimSpace(cfg.Transcode.Preset),
		MaxHeight:  cfg.Transcode.MaxHeight,
		ExtraArgs:  cfg.Transcode.ExtraArgs,
	}, nil
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	p := cfg.Pprof
	return pprof.Config{
		Enabled:              p.Enabled,
		Prefix:               strings.TrimSpace(p.Prefix),
		Token:                strings.TrimSpace(p.Token),
		MutexProfileFraction: p.MutexProfileFraction,
		BlockProfileRate:     p.BlockProfileRate,
	}
}

func mapWebConfig(cfg *config.Config) web.Config {
	name := strings.TrimSpace(cfg.Site.Name)
	nameAr := strings.TrimSpace(cfg.Site.NameAr)
	if nameAr == "" {
		nameAr = name
	}
	return web.Config{
		SiteName:          content.Localized{En: name, Ar: nameAr},
		BaseURL:           strings.TrimSpace(cfg.Site.BaseURL),
		ContactEmail:      strings.TrimSpace(cfg.Site.ContactEmail),
		DefaultLocale:     content.Locale(strings.TrimSpace(cfg.Site.DefaultLocale)),
		ContactRatePerMin: cfg.Site.ContactRatePerMin,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		TrustProxy:        cfg.Server.TrustProxy,
	}
}

func mapServerConfig(cfg *config.Config) (web.ServerConfig, error) {
	s := cfg.Server
	read, err := config.ParseDurationField("server.read_timeout", s.ReadTimeout)
	if err != nil {
		return web.ServerConfig{}, err
	}
	write, err := config.ParseDurationField("server.write_timeout", s.WriteTimeout)
	if err != nil {
		return web.ServerConfig{}, err
	}
	idle, err := config.ParseDurationField("server.idle_timeout", s.IdleTimeout)
	if err != nil {
		return web.ServerConfig{}, err
	}
	return web.ServerConfig{Addr: strings.TrimSpace(s.Addr), ReadTimeout: read, WriteTimeout: write, IdleTimeout: idle}, nil
}

// validate runs every mapping so a hot reload with a bad value is rejected
// before it is committed.
func validate(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	steps := []func() error{
		func() error { _, err := mapStorageConfig(cfg); return err },
		func() error { _, err := mapTaskEngineConfig(cfg); return err },
		func() error { _, err := mapNotifierConfig(cfg); return err },
		func() error { _, err := mapAuthConfig(cfg); return err },
		func() error { _, err := mapUploadConfig(cfg); return err },
		func() error { _, err := mapMediaConfig(cfg); return err },
		func() error { _, err := mapServerConfig(cfg); return err },
		func() error { _, err := maintenanceSpecs(cfg); return err },
	}
	for _, fn := range steps {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
