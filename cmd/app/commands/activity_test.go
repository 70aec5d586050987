package commands

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexfok/gate-controller/internal/activity/usecase"
)

func newTestRecorder(t *testing.T) *usecase.Recorder {
	t.Helper()
	return usecase.NewRecorder(filepath.Join(t.TempDir(), "activity.json"), 100, false, slog.Default())
}

func TestRunListActivity(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		recorder := newTestRecorder(t)

		var out bytes.Buffer
		err := RunListActivity(recorder, &out, 0, "", "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "No activity recorded.")
	})

	t.Run("text-output", func(t *testing.T) {
		recorder := newTestRecorder(t)
		recorder.RecordGateOpened("manual request", "")
		recorder.RecordGateClosed("manual request")

		var out bytes.Buffer
		err := RunListActivity(recorder, &out, 0, "", "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "gate_opened")
		require.Contains(t, out.String(), "gate_closed")
	})

	t.Run("type-filter", func(t *testing.T) {
		recorder := newTestRecorder(t)
		recorder.RecordGateOpened("manual request", "")
		recorder.RecordGateClosed("manual request")

		var out bytes.Buffer
		err := RunListActivity(recorder, &out, 0, "gate_opened", "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "gate_opened")
		require.NotContains(t, out.String(), "gate_closed")
	})

	t.Run("json-output", func(t *testing.T) {
		recorder := newTestRecorder(t)
		recorder.RecordGateOpened("manual request", "")

		var out bytes.Buffer
		err := RunListActivity(recorder, &out, 0, "", "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"type": "gate_opened"`)
	})
}

func TestRunClearActivity(t *testing.T) {
	recorder := newTestRecorder(t)
	recorder.RecordGateOpened("manual request", "")

	var out bytes.Buffer
	require.NoError(t, RunClearActivity(recorder, &out))
	require.Contains(t, out.String(), "Activity log cleared.")

	out.Reset()
	require.NoError(t, RunListActivity(recorder, &out, 0, "", "text"))
	require.Contains(t, out.String(), "No activity recorded.")
}
