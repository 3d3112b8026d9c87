package config

import (
	"reflect"
	"strings"

	logx "archsite/pkg/logx"
)

// RestartSections lists sections whose changes only apply after a restart.
var RestartSections = map[string]bool{"server": true, "database": true, "telegram": true}

// SummarizeConfigChange returns the changed section names and safe structured
// attrs for logging. Secrets (password hash, tokens) are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)
	add := func(section string, fields ...logx.Field) {
		changed = append(changed, section)
		attrs = append(attrs, fields...)
	}

	if !reflect.DeepEqual(oldCfg.Server, newCfg.Server) {
		add("server", logx.String("server.addr", newCfg.Server.Addr))
	}
	if !reflect.DeepEqual(oldCfg.Site, newCfg.Site) {
		add("site", logx.String("site.name", newCfg.Site.Name), logx.String("site.default_locale", newCfg.Site.DefaultLocale))
	}
	if !reflect.DeepEqual(oldCfg.Admin, newCfg.Admin) {
		add("admin",
			logx.String("admin.username", newCfg.Admin.Username),
			logx.Bool("admin.password_changed", oldCfg.Admin.PasswordHash != newCfg.Admin.PasswordHash),
			logx.String("admin.session_ttl", newCfg.Admin.SessionTTL),
		)
	}
	if !reflect.DeepEqual(oldCfg.Database, newCfg.Database) {
		add("database", logx.String("database.path", newCfg.Database.Path))
	}
	if !reflect.DeepEqual(oldCfg.Uploads, newCfg.Uploads) {
		add("uploads",
			logx.String("uploads.dir", newCfg.Uploads.Dir),
			logx.Int64("uploads.max_image_bytes", newCfg.Uploads.MaxImageBytes),
			logx.Int64("uploads.max_video_bytes", newCfg.Uploads.MaxVideoBytes),
		)
	}
	if !reflect.DeepEqual(oldCfg.Transcode, newCfg.Transcode) {
		add("transcode", logx.Bool("transcode.enabled", newCfg.Transcode.Enabled), logx.String("transcode.ffmpeg_path", newCfg.Transcode.FFmpegPath))
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		add("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alerts_enabled", newCfg.Logging.Alerts.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Pprof, newCfg.Pprof) {
		add("pprof", logx.Bool("pprof.enabled", newCfg.Pprof.Enabled), logx.Bool("pprof.token_set", strings.TrimSpace(newCfg.Pprof.Token) != ""))
	}
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		add("scheduler", logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled), logx.String("scheduler.timezone", newCfg.Scheduler.Timezone))
	}
	if !reflect.DeepEqual(oldCfg.TaskEngine, newCfg.TaskEngine) {
		add("task_engine", logx.Int("task_engine.workers", newCfg.TaskEngine.Workers), logx.Int("task_engine.queue_size", newCfg.TaskEngine.QueueSize))
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		add("notifier", logx.Bool("notifier.present", newCfg.Notifier != nil))
	}
	if oldCfg.Telegram.ChatID != newCfg.Telegram.ChatID || oldCfg.Telegram.ThreadID != newCfg.Telegram.ThreadID ||
		oldCfg.Telegram.Token != newCfg.Telegram.Token {
		add("telegram", logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""), logx.Bool("telegram.chat_set", newCfg.Telegram.ChatID != 0))
	}
	return changed, attrs
}
