package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "gate.yaml")
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	store := NewFileStore(storePath(t))
	require.NoError(t, store.Load())

	doc := store.Document()
	assert.Equal(t, DefaultAutoCloseTimeout, doc.Gate.AutoCloseTimeoutSeconds)
	assert.Equal(t, DefaultSessionTimeout, doc.Gate.SessionTimeoutSeconds)
	assert.True(t, doc.Logging.SuppressDetections)
	assert.Empty(t, doc.Tokens)
}

func TestLoad_ParseFailureIsError(t *testing.T) {
	path := storePath(t)
	require.NoError(t, os.WriteFile(path, []byte("gate: [not a mapping"), 0o644))

	store := NewFileStore(path)
	err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse store file")
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := storePath(t)
	content := "gate:\n  session_timeout: 15\ntokens:\n  - id: aabbccddeeff\n    name: Phone\n    enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := NewFileStore(path)
	require.NoError(t, store.Load())

	doc := store.Document()
	assert.Equal(t, 15, doc.Gate.SessionTimeoutSeconds)
	assert.Equal(t, DefaultAutoCloseTimeout, doc.Gate.AutoCloseTimeoutSeconds)
	require.Len(t, doc.Tokens, 1)
	assert.Equal(t, "aabbccddeeff", doc.Tokens[0].ID)
	assert.Equal(t, "Phone", doc.Tokens[0].Name)
	assert.True(t, doc.Tokens[0].Enabled)
}

func TestLoad_NegativeTunableRejected(t *testing.T) {
	path := storePath(t)
	require.NoError(t, os.WriteFile(path, []byte("gate:\n  session_timeout: -5\n"), 0o644))

	store := NewFileStore(path)
	err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_timeout")
}

func TestSaveTokens_RoundTrip(t *testing.T) {
	path := storePath(t)
	store := NewFileStore(path)
	require.NoError(t, store.Load())

	tokens := []TokenRecord{
		{ID: "aabbccddeeff", Name: "Phone", Enabled: true, CreatedAt: time.Now().UTC()},
		{ID: "112233445566", Name: "Fob", Enabled: false, CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, store.SaveTokens(tokens))

	// A fresh store reads back the same registry in the same order.
	reread := NewFileStore(path)
	require.NoError(t, reread.Load())
	got := reread.Tokens()
	require.Len(t, got, 2)
	assert.Equal(t, "aabbccddeeff", got[0].ID)
	assert.Equal(t, "112233445566", got[1].ID)
	assert.False(t, got[1].Enabled)
}

func TestSave_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "gate.yaml")
	store := NewFileStore(path)
	require.NoError(t, store.Load())
	require.NoError(t, store.Save())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSaveLoggingSettings(t *testing.T) {
	path := storePath(t)
	store := NewFileStore(path)
	require.NoError(t, store.Load())

	require.NoError(t, store.SaveLoggingSettings(LoggingSettings{SuppressDetections: false}))

	reread := NewFileStore(path)
	require.NoError(t, reread.Load())
	assert.False(t, reread.LoggingSettings().SuppressDetections)
}

func TestGateSettings_Durations(t *testing.T) {
	settings := GateSettings{
		AutoCloseTimeoutSeconds:    300,
		SessionTimeoutSeconds:      60,
		StatusCheckIntervalSeconds: 30,
		BLEScanIntervalSeconds:     5,
		ScanDurationSeconds:        5,
		TokenIdleTimeoutSeconds:    120,
	}
	assert.Equal(t, 5*time.Minute, settings.AutoCloseTimeout())
	assert.Equal(t, time.Minute, settings.SessionTimeout())
	assert.Equal(t, 30*time.Second, settings.StatusCheckInterval())
	assert.Equal(t, 5*time.Second, settings.BLEScanInterval())
	assert.Equal(t, 5*time.Second, settings.ScanDuration())
	assert.Equal(t, 2*time.Minute, settings.TokenIdleTimeout())
}

func TestDocument_ReturnsCopy(t *testing.T) {
	store := NewFileStore(storePath(t))
	require.NoError(t, store.Load())
	require.NoError(t, store.SaveTokens([]TokenRecord{{ID: "aa", Name: "A", Enabled: true}}))

	doc := store.Document()
	doc.Tokens[0].Name = "mutated"

	assert.Equal(t, "A", store.Tokens()[0].Name)
}
