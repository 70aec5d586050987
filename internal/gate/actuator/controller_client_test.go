package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexfok/gate-controller/internal/gate/domain"
	"github.com/alexfok/gate-controller/internal/storage"
)

type fakeController struct {
	authCalls    atomic.Int32
	commandCalls atomic.Int32
	notifyCalls  atomic.Int32
	lastCommand  atomic.Value
	failAuth     bool
	failCommands bool
}

func newFakeController(t *testing.T) (*fakeController, *httptest.Server, storage.ActuatorSettings) {
	t.Helper()
	f := &fakeController{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls.Add(1)
		if f.failAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "admin" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "test-token"})
	})
	mux.HandleFunc("POST /api/v1/items/348/commands", func(w http.ResponseWriter, r *http.Request) {
		f.commandCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.failCommands {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var cmd struct {
			Command string         `json:"command"`
			Params  map[string]int `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cmd))
		f.lastCommand.Store(fmt.Sprintf("%s/%d", cmd.Command, cmd.Params["Scenario"]))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/v1/items/348", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "Gate", "state": "closed"})
	})
	mux.HandleFunc("POST /api/v1/agents/7/notifications", func(w http.ResponseWriter, r *http.Request) {
		f.notifyCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	settings := storage.ActuatorSettings{
		BaseURL:             server.URL,
		Username:            "admin",
		Password:            "secret",
		GateDeviceID:        348,
		OpenScenario:        21,
		CloseScenario:       22,
		NotificationAgentID: 7,
	}
	return f, server, settings
}

// newClient builds a client with retry backoff collapsed so failure paths
// stay fast under test.
func newClient(settings storage.ActuatorSettings) *ControllerClient {
	client := NewControllerClient(slog.Default(), settings)
	client.client.RetryWaitMin = time.Millisecond
	client.client.RetryWaitMax = 5 * time.Millisecond
	return client
}

func newTestClient(t *testing.T) (*ControllerClient, *fakeController) {
	t.Helper()
	f, _, settings := newFakeController(t)
	return newClient(settings), f
}

func TestConnect(t *testing.T) {
	client, f := newTestClient(t)

	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, int32(1), f.authCalls.Load())
}

func TestConnect_BadCredentials(t *testing.T) {
	f, _, settings := newFakeController(t)
	f.failAuth = true
	client := newClient(settings)

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrActuatorUnavailable)
}

func TestOpenAndClose(t *testing.T) {
	client, f := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	assert.True(t, client.Open(ctx))
	assert.Equal(t, "Run Scenario/21", f.lastCommand.Load())

	assert.True(t, client.Close(ctx))
	assert.Equal(t, "Run Scenario/22", f.lastCommand.Load())
}

func TestOpen_WithoutConnect(t *testing.T) {
	client, f := newTestClient(t)

	assert.False(t, client.Open(context.Background()))
	assert.Equal(t, int32(0), f.commandCalls.Load())
}

func TestOpen_ControllerFailure(t *testing.T) {
	f, _, settings := newFakeController(t)
	client := newClient(settings)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	f.failCommands = true
	assert.False(t, client.Open(ctx))
	// The client retries internally before giving up.
	assert.GreaterOrEqual(t, f.commandCalls.Load(), int32(1))
}

func TestStatus(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	info, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, info.Online)
	assert.Equal(t, "Gate", info.Details["name"])
}

func TestStatus_WithoutConnect(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Status(context.Background())
	assert.ErrorIs(t, err, domain.ErrActuatorUnavailable)
}

func TestNotify(t *testing.T) {
	client, f := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))

	assert.True(t, client.Notify(ctx, "Gate opened", "token detected: Phone"))
	assert.Equal(t, int32(1), f.notifyCalls.Load())
}

func TestDisconnect_DropsToken(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Disconnect(ctx))

	assert.False(t, client.Open(ctx))
	_, err := client.Status(ctx)
	assert.ErrorIs(t, err, domain.ErrActuatorUnavailable)
}
