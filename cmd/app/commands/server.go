package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/alexfok/gate-controller/internal/app"
	"github.com/alexfok/gate-controller/internal/config"
)

// RunServer starts the controller with graceful shutdown support.
// Loads configuration, initializes the DI container, connects to the remote
// controller and starts the control loops, the store watcher and the HTTP
// servers. A store file that cannot be parsed and an unreachable controller
// are both fatal at startup. Blocks until receiving SIGINT/SIGTERM or
// encountering a fatal error.
func RunServer(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on log level
	gin.SetMode(cfg.GetGinMode())

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting controller", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Load the store; a corrupt store file is fatal
	store, err := container.Store()
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	// Connect to the remote controller; an unreachable controller is fatal
	act, err := container.Actuator()
	if err != nil {
		return fmt.Errorf("failed to initialize actuator: %w", err)
	}
	if err := act.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to the controller: %w", err)
	}

	// Confirm the true gate state once before the loops take over
	gate, err := container.SessionGate()
	if err != nil {
		return fmt.Errorf("failed to initialize session gate: %w", err)
	}
	status := gate.Status(ctx)
	if status.ActuatorError != "" {
		logger.Warn("initial status check failed", slog.String("error", status.ActuatorError))
	} else {
		logger.Info("initial status check",
			slog.String("gate_state", string(status.GateState)),
			slog.Bool("online", status.Actuator.Online))
	}

	engine, err := container.Engine()
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	// Get HTTP server from container (this initializes all dependencies)
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	// Get Metrics server from container
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the control loops and the store watcher under an errgroup so they
	// can be joined before the deferred container shutdown disconnects the
	// actuator
	loopsCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()
	loops, loopsCtx := errgroup.WithContext(loopsCtx)

	loops.Go(func() error {
		if err := engine.Run(loopsCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("engine error: %w", err)
		}
		return nil
	})

	loops.Go(func() error {
		err := store.Watch(loopsCtx, logger, func() {
			logger.Info("store reloaded from disk")
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("store watcher error: %w", err)
		}
		return nil
	})

	loopsDone := make(chan error, 1)
	go func() {
		loopsDone <- loops.Wait()
	}()

	// Start the servers in goroutines
	serverErr := make(chan error, 2)

	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Wait for shutdown signal, a loop failure or a server error
	var shutdownErrors []error
	loopsJoined := false

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-loopsDone:
		loopsJoined = true
		if err != nil {
			logger.Error("control loop error, initiating shutdown", slog.Any("error", err))
			shutdownErrors = append(shutdownErrors, err)
		}
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		shutdownErrors = append(shutdownErrors, err)
	}

	// Stop the loops and wait for the in-flight iteration to drain; the
	// actuator connection is only released once they have returned
	stopLoops()
	if !loopsJoined {
		if err := <-loopsDone; err != nil {
			shutdownErrors = append(shutdownErrors, err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}
