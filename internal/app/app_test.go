package app

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archsite/internal/config"
	"archsite/internal/media"
)

func baseConfig(dir string) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Addr: "127.0.0.1:0"},
		Site:     config.SiteConfig{Name: "Atelier"},
		Admin:    config.AdminConfig{Username: "admin"},
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "site.db")},
		Uploads:  config.UploadsConfig{Dir: filepath.Join(dir, "uploads")},
		Logging:  config.LoggingConfig{Level: "error"},
	}
}

func TestMaintenanceSpecs(t *testing.T) {
	cfg := baseConfig(t.TempDir())
	cfg.Scheduler.SessionsPrune = "off"
	cfg.Scheduler.StorageOptimize = "03:15"

	jobs, err := maintenanceSpecs(cfg)
	require.NoError(t, err)
	got := map[string]string{}
	for _, j := range jobs {
		got[j.name] = j.spec
	}
	assert.Equal(t, map[string]string{
		jobUploadsCleanup:  "30m",
		jobSessionsPrune:   "",
		jobStorageOptimize: "03:15",
	}, got)

	cfg.Scheduler.UploadsCleanup = "sometimes"
	_, err = maintenanceSpecs(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.uploads_cleanup")
}

func TestAuditRetention(t *testing.T) {
	cfg := baseConfig(t.TempDir())
	assert.Equal(t, defaultAuditRetention, auditRetention(cfg))
	cfg.Scheduler.AuditRetention = "0s"
	assert.Zero(t, auditRetention(cfg))
	cfg.Scheduler.AuditRetention = "720h"
	assert.Equal(t, 720*time.Hour, auditRetention(cfg))
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, validate(baseConfig(dir)))

	cases := map[string]func(*config.Config){
		"transcode.timeout":       func(c *config.Config) { c.Transcode.Timeout = "soon" },
		"notifier.retry_base":     func(c *config.Config) { c.Notifier = &config.NotifierConfig{RetryBase: "x"} },
		"scheduler.sessions_prune": func(c *config.Config) { c.Scheduler.SessionsPrune = "99:99:99" },
		"admin.username":          func(c *config.Config) { c.Admin.Username = "" },
	}
	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			cfg := baseConfig(dir)
			mutate(cfg)
			err := validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}

func TestMappings(t *testing.T) {
	cfg := baseConfig(t.TempDir())
	cfg.Site.NameAr = ""
	cfg.Transcode.Concurrency = 0
	cfg.Telegram = config.TelegramConfig{Token: "t", ChatID: 42}

	ec, err := mapTaskEngineConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, ec.GroupLimits[media.TaskGroup])

	wc := mapWebConfig(cfg)
	assert.Equal(t, "Atelier", wc.SiteName.Ar)

	nc, err := mapNotifierConfig(cfg)
	require.NoError(t, err)
	assert.True(t, nc.Enabled, "notifier follows telegram when its section is omitted")

	cfg.Notifier = &config.NotifierConfig{Enabled: false}
	nc, err = mapNotifierConfig(cfg)
	require.NoError(t, err)
	assert.False(t, nc.Enabled)
}

func TestPick(t *testing.T) {
	assert.Equal(t, "1h", pick("", "1h"))
	assert.Equal(t, "", pick(" OFF ", "1h"))
	assert.Equal(t, "5m", pick(" 5m", "1h"))
}

func TestAppLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `server:
  addr: "127.0.0.1:0"
site:
  name: Atelier
admin:
  username: admin
database:
  path: ` + filepath.Join(dir, "site.db") + `
uploads:
  dir: ` + filepath.Join(dir, "uploads") + `
logging:
  level: error
scheduler:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	a, err := New(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	select {
	case <-a.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}

	resp, err := http.Get("http://" + a.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	names := map[string]bool{}
	for _, s := range a.sched.Snapshot().Schedules {
		names[s.Name] = true
	}
	assert.True(t, names[jobUploadsCleanup] && names[jobSessionsPrune] && names[jobStorageOptimize], "maintenance jobs registered: %v", names)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))

	select {
	case <-a.Done():
	default:
		t.Fatal("supervisor context still live after Stop")
	}
	assert.NoError(t, a.Err())
}
