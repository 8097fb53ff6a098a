package connection

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/seorin-dev/syruplink-core/internal/dispenser"
)

// MonitorConfig holds the health sweep tunables from the health section
// of config.yaml.
type MonitorConfig struct {
	// Interval is the cadence of health sweeps.
	Interval time.Duration

	// RetryBackoff is the pause before the single retry that follows a
	// probe timeout.
	RetryBackoff time.Duration
}

// Monitor periodically re-verifies the reachability of every connected
// device and reports the results back into the Manager. Devices whose
// status is dispensing are skipped for the whole sweep.
type Monitor struct {
	manager  *Manager
	prober   Prober
	logger   *slog.Logger
	interval time.Duration
	backoff  time.Duration
}

// NewMonitor creates a Monitor sweeping the given manager's connected set.
func NewMonitor(manager *Manager, prober Prober, cfg MonitorConfig, logger *slog.Logger) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Monitor{
		manager:  manager,
		prober:   prober,
		logger:   logger,
		interval: interval,
		backoff:  backoff,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (mon *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(mon.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mon.Sweep(ctx)
		}
	}
}

// Sweep checks every connected device once. Probe outcomes:
//
//   - answered with the expected identity: refreshed, promoted back to
//     connected if it had been demoted
//   - answered with a different identity: torn down (the address now
//     belongs to someone else)
//   - timed out: retried once after a short backoff, then demoted
//   - failed any other way: demoted immediately, no retry
//
// Demotion leaves the record in the connected set; only an explicit
// disconnect removes it. A connectivity refresh fires after the sweep.
func (mon *Monitor) Sweep(ctx context.Context) {
	devices := mon.manager.Connected()
	if len(devices) == 0 {
		return
	}

	for _, device := range devices {
		if device.Status == dispenser.StatusDispensing {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		mon.check(ctx, device)
	}

	mon.manager.notifier.ConnectivityRefresh(mon.manager.Connected())
}

func (mon *Monitor) check(ctx context.Context, device dispenser.Connected) {
	found, err := mon.prober.Probe(ctx, device.Address)
	if err != nil && isTimeout(err) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(mon.backoff):
		}
		found, err = mon.prober.Probe(ctx, device.Address)
	}

	switch {
	case err != nil:
		mon.manager.markUnreachable(device.Identity)
	case found.Identity != device.Identity:
		mon.logger.Warn("health probe identity mismatch",
			"expected", device.Identity,
			"got", found.Identity,
			"address", device.Address)
		mon.manager.teardown(device.Identity)
	default:
		mon.manager.markAlive(device.Identity)
	}
}

// isTimeout reports whether err is a network timeout as opposed to a
// hard failure like connection refused.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
