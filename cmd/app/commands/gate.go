package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alexfok/gate-controller/internal/ble"
	gateDomain "github.com/alexfok/gate-controller/internal/gate/domain"
	gateUsecase "github.com/alexfok/gate-controller/internal/gate/usecase"
)

// RunGateOpen connects to the remote controller and opens the gate.
func RunGateOpen(
	ctx context.Context,
	gate *gateUsecase.SessionGate,
	act gateDomain.Actuator,
	logger *slog.Logger,
	writer io.Writer,
) error {
	if err := act.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to the controller: %w", err)
	}

	logger.Info("opening gate")
	if err := gate.RequestOpen(ctx, "manual request"); err != nil {
		return fmt.Errorf("failed to open gate: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Gate state: %s\n", gate.State())
	return nil
}

// RunGateClose connects to the remote controller and closes the gate.
func RunGateClose(
	ctx context.Context,
	gate *gateUsecase.SessionGate,
	act gateDomain.Actuator,
	logger *slog.Logger,
	writer io.Writer,
) error {
	if err := act.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to the controller: %w", err)
	}

	logger.Info("closing gate")
	if err := gate.RequestClose(ctx, "manual request"); err != nil {
		return fmt.Errorf("failed to close gate: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Gate state: %s\n", gate.State())
	return nil
}

// RunGateStatus reports the locally tracked gate state alongside the
// controller's own report. A controller that cannot be reached is reported,
// not fatal: the local state is still shown.
func RunGateStatus(
	ctx context.Context,
	gate *gateUsecase.SessionGate,
	act gateDomain.Actuator,
	writer io.Writer,
	format string,
) error {
	if err := act.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to the controller: %w", err)
	}

	status := gate.Status(ctx)

	if format == "json" {
		writeJSON(status, writer)
		return nil
	}

	_, _ = fmt.Fprintf(writer, "Gate state: %s\n", status.GateState)
	if status.LastOpenTime != nil {
		_, _ = fmt.Fprintf(writer, "Last open: %s\n", status.LastOpenTime.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(writer, "Session active: %t\n", status.SessionActive)
	_, _ = fmt.Fprintf(writer, "Controller online: %t\n", status.Actuator.Online)
	if status.ActuatorError != "" {
		_, _ = fmt.Fprintf(writer, "Controller error: %s\n", status.ActuatorError)
	}

	return nil
}

// RunScan runs a one-off BLE scan and lists every nearby device, registered
// or not. Useful for discovering the identifier of a new token.
func RunScan(
	ctx context.Context,
	scanner ble.Scanner,
	duration time.Duration,
	writer io.Writer,
	format string,
) error {
	devices, err := scanner.ListNearby(ctx, duration)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if format == "json" {
		writeJSON(devices, writer)
		return nil
	}

	if len(devices) == 0 {
		_, _ = fmt.Fprintln(writer, "No devices found.")
		return nil
	}

	for _, device := range devices {
		name := device.Name
		if name == "" {
			name = "(unnamed)"
		}
		_, _ = fmt.Fprintf(writer, "%s  %s  %s  rssi %d  %.1fm\n",
			device.ID, name, device.Type, device.RSSI, device.Distance)
	}

	return nil
}
