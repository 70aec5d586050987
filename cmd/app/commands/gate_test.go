package commands

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexfok/gate-controller/internal/activity/usecase"
	"github.com/alexfok/gate-controller/internal/ble"
	gateDomain "github.com/alexfok/gate-controller/internal/gate/domain"
	gateUsecase "github.com/alexfok/gate-controller/internal/gate/usecase"
	"github.com/alexfok/gate-controller/internal/metrics"
	"github.com/alexfok/gate-controller/internal/storage"
	tokenRepository "github.com/alexfok/gate-controller/internal/token/repository"
	tokenUsecase "github.com/alexfok/gate-controller/internal/token/usecase"
)

type stubActuator struct {
	connected bool
	openOK    bool
	closeOK   bool
}

func (a *stubActuator) Connect(ctx context.Context) error { a.connected = true; return nil }
func (a *stubActuator) Open(ctx context.Context) bool     { return a.openOK }
func (a *stubActuator) Close(ctx context.Context) bool    { return a.closeOK }
func (a *stubActuator) Status(ctx context.Context) (gateDomain.StatusInfo, error) {
	return gateDomain.StatusInfo{Online: true}, nil
}
func (a *stubActuator) Notify(ctx context.Context, title, message string) bool { return true }
func (a *stubActuator) Disconnect(ctx context.Context) error                   { return nil }

type stubScanner struct {
	devices []ble.Device
}

func (s *stubScanner) ScanOnce(ctx context.Context, duration time.Duration) ([]ble.Observation, error) {
	return nil, nil
}

func (s *stubScanner) ListNearby(ctx context.Context, duration time.Duration) ([]ble.Device, error) {
	return s.devices, nil
}

func newTestGate(t *testing.T, act gateDomain.Actuator) *gateUsecase.SessionGate {
	t.Helper()
	dir := t.TempDir()
	store := storage.NewFileStore(filepath.Join(dir, "gate.yaml"))
	require.NoError(t, store.Load())
	tokens := tokenUsecase.NewTokenUseCase(tokenRepository.NewFileStoreTokenRepository(store))
	recorder := usecase.NewRecorder(filepath.Join(dir, "activity.json"), 100, false, slog.Default())
	return gateUsecase.NewSessionGate(
		slog.Default(), act, tokens, recorder, store.GateSettings, metrics.NewNoOpBusinessMetrics())
}

func TestRunGateOpen(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success", func(t *testing.T) {
		act := &stubActuator{openOK: true, closeOK: true}
		gate := newTestGate(t, act)

		var out bytes.Buffer
		err := RunGateOpen(ctx, gate, act, logger, &out)

		require.NoError(t, err)
		require.True(t, act.connected)
		require.Contains(t, out.String(), "Gate state: open")
	})

	t.Run("actuator-failure", func(t *testing.T) {
		act := &stubActuator{}
		gate := newTestGate(t, act)

		err := RunGateOpen(ctx, gate, act, logger, &bytes.Buffer{})

		require.Error(t, err)
		require.ErrorIs(t, err, gateDomain.ErrOpenFailed)
	})
}

func TestRunGateClose(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	act := &stubActuator{openOK: true, closeOK: true}
	gate := newTestGate(t, act)

	var out bytes.Buffer
	err := RunGateClose(ctx, gate, act, logger, &out)

	require.NoError(t, err)
	require.Contains(t, out.String(), "Gate state: closed")
}

func TestRunGateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("text-output", func(t *testing.T) {
		act := &stubActuator{openOK: true, closeOK: true}
		gate := newTestGate(t, act)

		var out bytes.Buffer
		err := RunGateStatus(ctx, gate, act, &out, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Gate state: unknown")
		require.Contains(t, out.String(), "Controller online: true")
	})

	t.Run("json-output", func(t *testing.T) {
		act := &stubActuator{openOK: true, closeOK: true}
		gate := newTestGate(t, act)

		var out bytes.Buffer
		err := RunGateStatus(ctx, gate, act, &out, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"gate_state": "unknown"`)
	})
}

func TestRunScan(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		err := RunScan(ctx, &stubScanner{}, time.Second, &out, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "No devices found.")
	})

	t.Run("text-output", func(t *testing.T) {
		scanner := &stubScanner{devices: []ble.Device{
			{ID: "aabbccddeeff", Name: "Phone", RSSI: -45, Distance: 0.5, Type: ble.DeviceTypeDevice},
		}}

		var out bytes.Buffer
		err := RunScan(ctx, scanner, time.Second, &out, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "aabbccddeeff")
		require.Contains(t, out.String(), "Phone")
	})
}
