package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "archsite/pkg/logx"
)

// sdNotify reports state to systemd. It is a no-op outside a Type=notify unit.
func (a *App) sdNotify(state string) {
	ok, err := daemon.SdNotify(false, state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if ok {
		a.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// watchdog pings systemd at half the configured WatchdogSec while the
// storage layer answers.
func (a *App) watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval/4)
			err := a.store.Ping(pingCtx)
			cancel()
			if err != nil {
				a.log.Warn("watchdog ping skipped", logx.Err(err))
				continue
			}
			a.sdNotify(daemon.SdNotifyWatchdog)
		}
	}
}
