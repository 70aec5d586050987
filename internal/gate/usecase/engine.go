package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexfok/gate-controller/internal/ble"
	"github.com/alexfok/gate-controller/internal/storage"
)

// autoClosePollInterval is the watchdog tick. The watchdog only decides
// whether the auto-close timeout has elapsed; the timeout itself comes from
// the store settings.
const autoClosePollInterval = 10 * time.Second

// Engine runs the three control loops (scan, status poll, auto-close
// watchdog) against the session gate until the context is cancelled.
type Engine struct {
	logger   *slog.Logger
	gate     *SessionGate
	scanner  ble.Scanner
	settings func() storage.GateSettings
}

// NewEngine creates an engine over the given session gate and scanner.
func NewEngine(logger *slog.Logger, gate *SessionGate, scanner ble.Scanner, settings func() storage.GateSettings) *Engine {
	return &Engine{
		logger:   logger,
		gate:     gate,
		scanner:  scanner,
		settings: settings,
	}
}

// Run starts the loops and blocks until the context is cancelled. Loop
// failures are logged and absorbed; the only way out is cancellation.
func (e *Engine) Run(ctx context.Context) error {
	settings := e.settings()
	e.logger.Info("starting gate engine",
		slog.Duration("scan_interval", settings.BLEScanInterval()),
		slog.Duration("status_interval", settings.StatusCheckInterval()),
		slog.Duration("auto_close_timeout", settings.AutoCloseTimeout()),
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return e.scanLoop(ctx) })
	group.Go(func() error { return e.statusLoop(ctx) })
	group.Go(func() error { return e.autoCloseLoop(ctx) })
	return group.Wait()
}

// scanLoop performs one bounded BLE scan per interval and feeds every
// observation to the session gate. The first scan starts right away rather
// than one interval in, so a token already at the gate is seen at startup.
// Scan failures are logged and the loop keeps going.
func (e *Engine) scanLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.settings().BLEScanInterval())
	defer ticker.Stop()

	e.scanAndDispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("stopping scan loop")
			return ctx.Err()
		case <-ticker.C:
			e.scanAndDispatch(ctx)
		}
	}
}

// scanAndDispatch runs one bounded scan and feeds the observations to the
// session gate.
func (e *Engine) scanAndDispatch(ctx context.Context) {
	observations, err := e.scanner.ScanOnce(ctx, e.settings().ScanDuration())
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error("BLE scan failed", slog.Any("error", err))
		}
		return
	}
	for _, obs := range observations {
		e.gate.HandleObservation(ctx, obs)
	}
}

// statusLoop polls the composite status for observability. Failures are
// logged only and never change the gate state.
func (e *Engine) statusLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.settings().StatusCheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("stopping status loop")
			return ctx.Err()
		case <-ticker.C:
			status := e.gate.Status(ctx)
			if status.ActuatorError != "" {
				e.logger.Warn("actuator status check failed",
					slog.String("gate_state", string(status.GateState)),
					slog.String("error", status.ActuatorError),
				)
				continue
			}
			e.logger.Debug("gate status",
				slog.String("gate_state", string(status.GateState)),
				slog.Bool("session_active", status.SessionActive),
				slog.Bool("actuator_online", status.Actuator.Online),
			)
		}
	}
}

// autoCloseLoop ticks the watchdog.
func (e *Engine) autoCloseLoop(ctx context.Context) error {
	ticker := time.NewTicker(autoClosePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("stopping auto-close loop")
			return ctx.Err()
		case <-ticker.C:
			e.gate.CheckAutoClose(ctx)
		}
	}
}
