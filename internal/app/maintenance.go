package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"archsite/internal/config"
	"archsite/internal/task/scheduler"
	logx "archsite/pkg/logx"
)

const (
	jobUploadsCleanup  = "uploads.cleanup"
	jobSessionsPrune   = "sessions.prune"
	jobStorageOptimize = "storage.optimize"

	defaultAuditRetention = 90 * 24 * time.Hour
)

type maintenanceJob struct {
	name    string
	spec    string // "" when disabled
	timeout time.Duration
}

// maintenanceSpecs resolves the configured schedules. An empty value takes
// the default; "off" disables the job.
func maintenanceSpecs(cfg *config.Config) ([]maintenanceJob, error) {
	sc := cfg.Scheduler
	jobs := []maintenanceJob{
		{name: jobUploadsCleanup, spec: pick(sc.UploadsCleanup, "30m"), timeout: 2 * time.Minute},
		{name: jobSessionsPrune, spec: pick(sc.SessionsPrune, "1h"), timeout: 30 * time.Second},
		{name: jobStorageOptimize, spec: pick(sc.StorageOptimize, "0 4 * * *"), timeout: 5 * time.Minute},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := scheduler.ParseSchedule(j.spec); err != nil {
			return nil, fmt.Errorf("scheduler.%s: %w", strings.ReplaceAll(j.name, ".", "_"), err)
		}
	}
	return jobs, nil
}

func pick(raw, def string) string {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return def
	case strings.EqualFold(s, "off"):
		return ""
	}
	return s
}

func auditRetention(cfg *config.Config) time.Duration {
	raw := strings.TrimSpace(cfg.Scheduler.AuditRetention)
	if raw == "" {
		return defaultAuditRetention
	}
	d, err := config.ParseDurationField("scheduler.audit_retention", raw)
	if err != nil {
		return defaultAuditRetention
	}
	return d
}

// registerMaintenance (re)registers the maintenance schedules for cfg.
func (a *App) registerMaintenance(cfg *config.Config) error {
	jobs, err := maintenanceSpecs(cfg)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if j.spec == "" {
			if a.sched.Remove(j.name) {
				a.log.Info("maintenance job disabled", logx.String("job", j.name))
			}
			continue
		}
		if err := a.sched.AddSchedule(j.name, j.spec, j.timeout, a.maintenanceFunc(j.name)); err != nil {
			return fmt.Errorf("%s: %w", j.name, err)
		}
	}
	return nil
}

func (a *App) maintenanceFunc(name string) func(context.Context) error {
	switch name {
	case jobUploadsCleanup:
		return a.cleanupUploads
	case jobSessionsPrune:
		return a.pruneSessions
	default:
		return a.optimizeStorage
	}
}

func (a *App) cleanupUploads(ctx context.Context) error {
	n, err := a.uploads.CleanupStale(ctx, 0)
	if n > 0 {
		a.log.Info("stale chunk sessions removed", logx.Int("count", n))
	}
	return err
}

func (a *App) pruneSessions(ctx context.Context) error {
	n, err := a.auth.PruneSessions(ctx)
	if n > 0 {
		a.log.Debug("expired sessions pruned", logx.Int64("count", n))
	}
	return err
}

func (a *App) optimizeStorage(ctx context.Context) error {
	if keep := auditRetention(a.cfgm.Get()); keep > 0 {
		n, err := a.store.PruneAudit(ctx, time.Now().Add(-keep))
		if err != nil {
			return err
		}
		if n > 0 {
			a.log.Info("audit entries pruned", logx.Int64("count", n))
		}
	}
	return a.store.Optimize(ctx)
}
