package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/wlshell/internal/loop"
	"github.com/1broseidon/wlshell/internal/shell"
)

// LivenessPolicy says how often windows are pinged and what happens to the
// ones that do not answer in time.
type LivenessPolicy struct {
	// Interval between passes; zero disables periodic pings.
	Interval time.Duration
	Timeout  time.Duration
	Action   shell.UnresponsiveAction
}

// WatchdogConfig holds configuration for the watchdog.
type WatchdogConfig struct {
	Policy LivenessPolicy
	Logger *slog.Logger
}

// Watchdog periodically pings every window and expires unanswered pings.
type Watchdog struct {
	registry *shell.Registry
	loop     *loop.Loop
	logger   *slog.Logger

	mu      sync.Mutex
	policy  LivenessPolicy
	changed chan struct{}
}

// PassResult summarizes one liveness pass.
type PassResult struct {
	Pinged  int
	Expired int
}

// NewWatchdog creates a watchdog. All registry access goes through l.
func NewWatchdog(cfg WatchdogConfig, registry *shell.Registry, l *loop.Loop) *Watchdog {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watchdog{
		registry: registry,
		loop:     l,
		logger:   logger,
		policy:   cfg.Policy,
		changed:  make(chan struct{}, 1),
	}
}

// Policy returns the current policy.
func (w *Watchdog) Policy() LivenessPolicy {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.policy
}

// SetPolicy replaces the policy; a running watchdog picks it up at once.
func (w *Watchdog) SetPolicy(p LivenessPolicy) {
	w.mu.Lock()
	w.policy = p
	w.mu.Unlock()

	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// Run starts the liveness loop. Blocks until context is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	w.logger.Info("watchdog started", "interval", w.Policy().Interval)
	for w.runPolicy(ctx, w.Policy()) {
	}
	w.logger.Info("watchdog stopped")
}

// runPolicy ticks under p until the policy changes (true) or ctx ends (false).
func (w *Watchdog) runPolicy(ctx context.Context, p LivenessPolicy) bool {
	var tick <-chan time.Time
	if p.Interval > 0 {
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case <-w.changed:
			w.logger.Info("watchdog policy changed", "interval", w.Policy().Interval)
			return true
		case <-tick:
			w.check(ctx)
		}
	}
}

func (w *Watchdog) check(ctx context.Context) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			w.logger.Error("watchdog panic recovered", "error", err)
		}
	}()

	res, err := w.CheckNow(ctx)
	if err != nil {
		w.logger.Warn("watchdog pass failed", "error", err)
		return
	}
	w.logger.Debug("watchdog pass", "pinged", res.Pinged, "expired", res.Expired)
}

// CheckNow expires overdue pings and then pings every window.
func (w *Watchdog) CheckNow(ctx context.Context) (PassResult, error) {
	p := w.Policy()
	var res PassResult
	err := w.loop.Call(ctx, func() {
		res.Expired = len(w.registry.ExpirePings(p.Timeout, p.Action))
		res.Pinged = w.registry.PingAll()
	})
	return res, err
}
