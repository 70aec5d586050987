package usecase

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	activityusecase "github.com/alexfok/gate-controller/internal/activity/usecase"
	"github.com/alexfok/gate-controller/internal/ble"
	"github.com/alexfok/gate-controller/internal/gate/domain"
	"github.com/alexfok/gate-controller/internal/storage"
)

type fakeScanner struct {
	observations []ble.Observation
	err          error
}

func (f *fakeScanner) ScanOnce(ctx context.Context, duration time.Duration) ([]ble.Observation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.observations, nil
}

func (f *fakeScanner) ListNearby(ctx context.Context, duration time.Duration) ([]ble.Device, error) {
	return nil, nil
}

func fastSettings() func() storage.GateSettings {
	return func() storage.GateSettings {
		return storage.GateSettings{
			AutoCloseTimeoutSeconds:    storage.DefaultAutoCloseTimeout,
			SessionTimeoutSeconds:      storage.DefaultSessionTimeout,
			StatusCheckIntervalSeconds: 1,
			BLEScanIntervalSeconds:     1,
			ScanDurationSeconds:        1,
			TokenIdleTimeoutSeconds:    storage.DefaultTokenIdleTimeout,
		}
	}
}

func newEngineGate(t *testing.T, actuator domain.Actuator, scanner ble.Scanner) (*Engine, *SessionGate) {
	t.Helper()

	recorder := activityusecase.NewRecorder(
		filepath.Join(t.TempDir(), "activity.json"), 100, true, slog.Default())
	gate := NewSessionGate(slog.Default(), actuator, enabledToken("aabbccddeeff", "Phone"), recorder, fastSettings(), nil)
	return NewEngine(slog.Default(), gate, scanner, fastSettings()), gate
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine, _ := newEngineGate(t, newFakeActuator(), &fakeScanner{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}

func TestEngine_ScanLoopFeedsGate(t *testing.T) {
	defer goleak.VerifyNone(t)

	actuator := newFakeActuator()
	scanner := &fakeScanner{observations: []ble.Observation{{ID: "aabbccddeeff", RSSI: -45}}}
	engine, gate := newEngineGate(t, actuator, scanner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	require.Eventually(t, func() bool {
		return gate.State() == domain.StateOpen
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, 1, actuator.opens())

	cancel()
	<-done
}

// A token already at the gate when the engine starts must be picked up by the
// immediate first scan, not one full interval later.
func TestEngine_FirstScanRunsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	actuator := newFakeActuator()
	scanner := &fakeScanner{observations: []ble.Observation{{ID: "aabbccddeeff", RSSI: -45}}}

	recorder := activityusecase.NewRecorder(
		filepath.Join(t.TempDir(), "activity.json"), 100, true, slog.Default())
	slowSettings := func() storage.GateSettings {
		return storage.GateSettings{
			AutoCloseTimeoutSeconds:    storage.DefaultAutoCloseTimeout,
			SessionTimeoutSeconds:      storage.DefaultSessionTimeout,
			StatusCheckIntervalSeconds: 3600,
			BLEScanIntervalSeconds:     3600,
			ScanDurationSeconds:        1,
			TokenIdleTimeoutSeconds:    storage.DefaultTokenIdleTimeout,
		}
	}
	gate := NewSessionGate(slog.Default(), actuator, enabledToken("aabbccddeeff", "Phone"), recorder, slowSettings, nil)
	engine := NewEngine(slog.Default(), gate, scanner, slowSettings)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	// Well inside the hour-long scan interval the gate is already open.
	require.Eventually(t, func() bool {
		return gate.State() == domain.StateOpen
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, actuator.opens())

	cancel()
	<-done
}

func TestEngine_ScanFailureIsNotFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	scanner := &fakeScanner{err: assert.AnError}
	engine, gate := newEngineGate(t, newFakeActuator(), scanner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	// Let at least one failing scan cycle pass; the loop must keep running.
	time.Sleep(1200 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("engine exited early: %v", err)
	default:
	}
	assert.Equal(t, domain.StateUnknown, gate.State())

	cancel()
	<-done
}
