package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"archsite/internal/auth"
	"archsite/internal/config"
	"archsite/internal/content"
	"archsite/internal/eventbus"
	"archsite/internal/media"
	"archsite/internal/notifier"
	"archsite/internal/observability/pprof"
	"archsite/internal/runtime/supervisor"
	"archsite/internal/storage"
	"archsite/internal/task/engine"
	"archsite/internal/task/scheduler"
	"archsite/internal/transport/telegram"
	"archsite/internal/upload"
	"archsite/internal/web"
	logx "archsite/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.Store

	engine *engine.Service
	sched  *scheduler.Service
	notif  *notifier.Service

	auth    *auth.Service
	media   *media.Transcoder
	uploads *upload.Service
	pprof   *pprof.Handler
	web     *web.Handler
	server  *web.Server
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	// The Telegram adapter is the alert sender for both logging and the
	// notifier, so it is built before the real logger exists.
	var tg *telegram.Adapter
	if tc := mapTelegramConfig(cfg); tc.Configured() {
		tg, err = telegram.New(tc, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
	}
	var notifySender notifier.Sender
	logSvc, log := logx.New(mapLoggingConfig(cfg), nil)
	if tg != nil {
		notifySender = tg
		logSvc.SetAlertSender(tg)
	}
	appLog := log.With(logx.String("comp", "app"))
	if tg == nil && cfg.Logging.Alerts.Enabled {
		appLog.Warn("logging.alerts enabled but telegram is not configured")
	}

	sc, _ := mapStorageConfig(cfg)
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	fail := func(err error) (*App, error) {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	appLog.Info("storage opened", logx.String("path", sc.Path))

	bus := eventbus.New()

	engCfg, _ := mapTaskEngineConfig(cfg)
	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)
	schedSvc := scheduler.New(mapSchedulerConfig(cfg), engineSvc, log.With(logx.String("comp", "scheduler")))

	ncfg, _ := mapNotifierConfig(cfg)
	notifSvc := notifier.New(ncfg, notifySender, log.With(logx.String("comp", "notifier")), bus)

	contentMgr := content.NewManager(store, bus, notifSvc, log)

	authCfg, _ := mapAuthConfig(cfg)
	authSvc := auth.New(authCfg, store, log)
	if authCfg.PasswordHash == "" {
		appLog.Warn("admin.password_hash is empty; admin login is disabled")
	}

	upCfg, _ := mapUploadConfig(cfg)
	mcfg, _ := mapMediaConfig(cfg)
	transcoder := media.New(mcfg, contentMgr, engineSvc, upload.Layout{Dir: upCfg.Dir, Prefix: "/uploads/"}, log)
	transcoder.SetAlerter(notifSvc)

	uploads, err := upload.New(upCfg, contentMgr, transcoder, bus, log)
	if err != nil {
		return fail(err)
	}

	pprofSvc := pprof.New(mapPprofConfig(cfg), log)

	handler, err := web.New(mapWebConfig(cfg), web.Deps{
		Content:   contentMgr,
		Auth:      authSvc,
		Uploads:   uploads,
		Tasks:     engineSvc,
		Schedules: schedSvc,
		Alerts:    notifSvc,
		Pprof:     pprofSvc,
		Health:    store.Ping,
	}, log)
	if err != nil {
		return fail(err)
	}
	srvCfg, _ := mapServerConfig(cfg)
	server := web.NewServer(srvCfg, handler, log)

	return &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		engine:  engineSvc,
		sched:   schedSvc,
		notif:   notifSvc,
		auth:    authSvc,
		media:   transcoder,
		uploads: uploads,
		pprof:   pprofSvc,
		web:     handler,
		server:  server,
	}, nil
}

// Addr returns the bound HTTP address once listening.
func (a *App) Addr() string { return a.server.Addr() }

// Ready is closed once the HTTP listener is bound.
func (a *App) Ready() <-chan struct{} { return a.server.Ready() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if a.notif.Enabled() {
		a.notif.Start(runCtx)
	}
	a.engine.Start(runCtx)

	if err := a.registerMaintenance(a.cfgm.Get()); err != nil {
		return err
	}
	a.sched.Start(runCtx)

	if n, err := a.media.ResumePending(runCtx); err != nil {
		a.log.Warn("resuming pending transcodes failed", logx.Err(err))
	} else if n > 0 {
		a.log.Info("pending transcodes rescheduled", logx.Int("count", n))
	}

	a.server.Start(runCtx)
	a.sup.Go0("http.ready", func(c context.Context) {
		select {
		case <-c.Done():
			return
		case <-a.server.Ready():
		}
		a.log.Info("listening", logx.String("addr", a.server.Addr()))
		a.sdNotify(daemon.SdNotifyReady)
	})
	a.sup.Go0("systemd.watchdog", a.watchdog)

	// log events for observability/debug
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Hot reload fan-out. A panicking apply is restarted; a closed
	// subscription ends the loop for good.
	a.sup.GoRestart("config.reload", a.reloadLoop, supervisor.WithStopOnCleanExit(true))

	// A broken watcher only disables hot reload.
	a.sup.GoRestart("config.watch", a.cfgm.Watch,
		supervisor.WithRestartBackoff(time.Second, time.Minute),
		supervisor.WithMaxRestarts(5),
	)

	a.log.Info("app started")
	return nil
}

// reloadLoop applies committed configs until ctx is done or the
// subscription closes.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case newCfg, ok := <-sub:
			if !ok {
				return nil
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig pushes a committed config into every live component.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	var restart []string
	for _, s := range sections {
		if config.RestartSections[s] {
			restart = append(restart, s)
		}
	}
	if len(restart) > 0 {
		a.log.Warn("config changed in sections that require a restart", logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	// Validated before commit, so mapping errors are not expected here.
	if ec, err := mapTaskEngineConfig(newCfg); err == nil {
		a.engine.Apply(ctx, ec)
	}
	prevSched := a.sched.Enabled()
	a.sched.Apply(ctx, mapSchedulerConfig(newCfg))
	if err := a.registerMaintenance(newCfg); err != nil {
		a.log.Warn("maintenance schedules not updated", logx.Err(err))
	}
	if now := a.sched.Enabled(); now != prevSched {
		a.log.Info("scheduler toggled via config", logx.Bool("enabled", now))
	}

	if nc, err := mapNotifierConfig(newCfg); err == nil {
		prev := a.notif.Enabled()
		a.notif.Apply(ctx, nc)
		if now := a.notif.Enabled(); now != prev {
			a.log.Info("notifier toggled via config", logx.Bool("enabled", now))
		}
	}
	if ac, err := mapAuthConfig(newCfg); err == nil {
		a.auth.Apply(ac)
	}
	if uc, err := mapUploadConfig(newCfg); err == nil {
		old, _ := mapUploadConfig(oldCfg)
		if uc.Dir != old.Dir || uc.TempDir != old.TempDir {
			a.log.Warn("uploads directories changed; restart required for changes to take effect")
		}
		a.uploads.Apply(uc)
	}
	if mc, err := mapMediaConfig(newCfg); err == nil {
		a.media.Apply(mc)
	}
	a.pprof.Apply(mapPprofConfig(newCfg))
	a.web.Apply(mapWebConfig(newCfg))

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sdNotify(daemon.SdNotifyStopping)

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max <= 0 {
				max = time.Millisecond
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// fn must honor stepCtx; log when it finally returns.
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Drain HTTP first so no new uploads or jobs arrive while services stop.
	step("http", 10*time.Second, func(c context.Context) error { a.server.Stop(c); return nil })

	a.sup.Cancel()
	// Shutdown noise stays local.
	a.logs.SetAlertSender(nil)

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 5*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	// Finally, wait for supervised goroutines (config watch/reload, event log, watchdog).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

// StopReasonFor maps a supervisor error to a stop reason.
func StopReasonFor(err error) StopReason {
	switch {
	case err == nil:
		return StopAppStop
	case errors.Is(err, context.Canceled):
		return StopUnknown
	default:
		return StopFatalError
	}
}
