package usecase

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexfok/gate-controller/internal/activity/domain"
)

func newRecorder(t *testing.T, maxEntries int, suppress bool) (*Recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.json")
	return NewRecorder(path, maxEntries, suppress, slog.Default()), path
}

func TestRecord_Appends(t *testing.T) {
	recorder, _ := newRecorder(t, 100, false)

	recorder.RecordGateOpened("token detected: Phone", "Phone")
	recorder.RecordGateClosed("auto-close timeout")

	entries := recorder.Entries(0, "")
	require.Len(t, entries, 2)
	// Most recent first.
	assert.Equal(t, domain.EventGateClosed, entries[0].Type)
	assert.Equal(t, domain.EventGateOpened, entries[1].Type)
	assert.Equal(t, "Gate opened: token detected: Phone", entries[1].Message)
	assert.Equal(t, "Phone", entries[1].Details["token_name"])
}

func TestSuppressMode_UpdatesInPlace(t *testing.T) {
	recorder, _ := newRecorder(t, 100, true)

	recorder.RecordTokenDetected("aabbccddeeff", "Phone", -45, 2.0)
	recorder.RecordTokenDetected("aabbccddeeff", "Phone", -52, 3.1)
	recorder.RecordTokenDetected("aabbccddeeff", "Phone", -60, 4.0)

	entries := recorder.Entries(0, domain.EventTokenDetected)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].UpdateCount)
	// Details reflect the latest observation.
	assert.Equal(t, -60, entries[0].Details["rssi"])
}

func TestSuppressMode_DistinctTokensKeepSeparateEntries(t *testing.T) {
	recorder, _ := newRecorder(t, 100, true)

	recorder.RecordTokenDetected("aaaa", "Phone", -45, 0)
	recorder.RecordTokenDetected("bbbb", "Fob", -70, 0)
	recorder.RecordTokenDetected("aaaa", "Phone", -50, 0)

	entries := recorder.Entries(0, domain.EventTokenDetected)
	require.Len(t, entries, 2)
}

func TestExtendedMode_AppendsPerDetection(t *testing.T) {
	recorder, _ := newRecorder(t, 100, false)

	recorder.RecordTokenDetected("aabbccddeeff", "Phone", -45, 0)
	recorder.RecordTokenDetected("aabbccddeeff", "Phone", -52, 0)

	entries := recorder.Entries(0, domain.EventTokenDetected)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].UpdateCount)
	assert.Equal(t, 1, entries[1].UpdateCount)
}

func TestSetSuppress_Toggle(t *testing.T) {
	recorder, _ := newRecorder(t, 100, true)
	assert.True(t, recorder.Suppress())

	recorder.SetSuppress(false)
	assert.False(t, recorder.Suppress())

	recorder.RecordTokenDetected("aaaa", "Phone", -45, 0)
	recorder.RecordTokenDetected("aaaa", "Phone", -45, 0)
	assert.Len(t, recorder.Entries(0, domain.EventTokenDetected), 2)
}

func TestCap_DropsOldestFirst(t *testing.T) {
	recorder, _ := newRecorder(t, 3, false)

	recorder.RecordInfo("one", nil)
	recorder.RecordInfo("two", nil)
	recorder.RecordInfo("three", nil)
	recorder.RecordInfo("four", nil)

	entries := recorder.Entries(0, "")
	require.Len(t, entries, 3)
	assert.Equal(t, "four", entries[0].Message)
	assert.Equal(t, "two", entries[2].Message)
}

func TestSuppressIndex_SurvivesTrim(t *testing.T) {
	recorder, _ := newRecorder(t, 2, true)

	recorder.RecordTokenDetected("aaaa", "Phone", -45, 0)
	recorder.RecordInfo("noise", nil)
	// The detection entry is still present; a repeat must update it, not append.
	recorder.RecordTokenDetected("aaaa", "Phone", -50, 0)

	entries := recorder.Entries(0, domain.EventTokenDetected)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].UpdateCount)
}

func TestEntries_LimitAndFilter(t *testing.T) {
	recorder, _ := newRecorder(t, 100, false)

	recorder.RecordInfo("info-1", nil)
	recorder.RecordError("error-1", nil)
	recorder.RecordInfo("info-2", nil)
	recorder.RecordInfo("info-3", nil)

	infos := recorder.Entries(2, domain.EventInfo)
	require.Len(t, infos, 2)
	assert.Equal(t, "info-3", infos[0].Message)
	assert.Equal(t, "info-2", infos[1].Message)

	errors := recorder.Entries(0, domain.EventError)
	require.Len(t, errors, 1)
	assert.Equal(t, "error-1", errors[0].Message)
}

func TestClear(t *testing.T) {
	recorder, _ := newRecorder(t, 100, true)
	recorder.RecordTokenDetected("aaaa", "Phone", -45, 0)
	recorder.Clear()

	assert.Empty(t, recorder.Entries(0, ""))

	// After a clear, the next detection starts a fresh entry.
	recorder.RecordTokenDetected("aaaa", "Phone", -45, 0)
	entries := recorder.Entries(0, domain.EventTokenDetected)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].UpdateCount)
}

func TestPersistence_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.json")

	recorder := NewRecorder(path, 100, true, slog.Default())
	recorder.RecordTokenDetected("aaaa", "Phone", -45, 0)
	recorder.RecordGateOpened("token detected: Phone", "Phone")

	// A fresh recorder over the same file sees the entries and can keep
	// updating the suppressed detection entry.
	reloaded := NewRecorder(path, 100, true, slog.Default())
	require.Len(t, reloaded.Entries(0, ""), 2)

	reloaded.RecordTokenDetected("aaaa", "Phone", -50, 0)
	detections := reloaded.Entries(0, domain.EventTokenDetected)
	require.Len(t, detections, 1)
	assert.Equal(t, 2, detections[0].UpdateCount)
}

func TestSignalQuality(t *testing.T) {
	tests := []struct {
		rssi     int
		expected string
	}{
		{-45, "Excellent"},
		{-60, "Excellent"},
		{-65, "Good"},
		{-75, "Fair"},
		{-85, "Weak"},
		{-95, "Very Weak"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, domain.SignalQuality(tt.rssi), "rssi %d", tt.rssi)
	}
}
