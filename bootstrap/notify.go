package bootstrap

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/kbukum/primepos-supervisor/logger"
)

// notify is swapped in tests.
var notify = daemon.SdNotify

func sdNotify(state string) error {
	sent, err := notify(false, state)
	if err != nil {
		return err
	}
	if sent {
		logger.Debug("systemd notified", logger.Fields("state", state))
	}
	return nil
}

// SystemdReady returns a hook that reports READY=1 to systemd. Outside a
// Type=notify unit ($NOTIFY_SOCKET unset) it does nothing.
func SystemdReady() Hook {
	return func(ctx context.Context) error {
		return sdNotify(daemon.SdNotifyReady)
	}
}

// SystemdStopping returns a hook that reports STOPPING=1 to systemd.
func SystemdStopping() Hook {
	return func(ctx context.Context) error {
		return sdNotify(daemon.SdNotifyStopping)
	}
}

// SystemdWatchdog returns a hook that pings the systemd watchdog at half the
// configured WatchdogSec until ctx is done. Without a watchdog it does nothing.
func SystemdWatchdog(ctx context.Context) Hook {
	return func(context.Context) error {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return err
		}
		go func() {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := sdNotify(daemon.SdNotifyWatchdog); err != nil {
						logger.Warn("systemd watchdog ping failed", logger.Fields(logger.FieldError, err.Error()))
					}
				}
			}
		}()
		return nil
	}
}
