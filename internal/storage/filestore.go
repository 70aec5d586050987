// Package storage implements the flat-file store that persists gate settings
// and the token registry. A single YAML document holds everything; writes are
// atomic (temp file + rename) but mutation and persistence are not
// transactional, which is an accepted limitation for single-writer use.
package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	apperrors "github.com/alexfok/gate-controller/internal/errors"
)

// Default gate-behavior tunables, in seconds. They match the values the
// system shipped with and apply whenever the store file omits a field.
const (
	DefaultAutoCloseTimeout    = 300
	DefaultSessionTimeout      = 60
	DefaultStatusCheckInterval = 30
	DefaultBLEScanInterval     = 5
	DefaultScanDuration        = 5
	DefaultTokenIdleTimeout    = 120
)

// ActuatorSettings holds the remote controller connection parameters.
type ActuatorSettings struct {
	BaseURL             string `yaml:"base_url"`
	Username            string `yaml:"username"`
	Password            string `yaml:"password"`
	GateDeviceID        int    `yaml:"gate_device_id"`
	OpenScenario        int    `yaml:"open_scenario"`
	CloseScenario       int    `yaml:"close_scenario"`
	NotificationAgentID int    `yaml:"notification_agent_id"`
}

// GateSettings holds the gate-behavior tunables, all in seconds.
type GateSettings struct {
	AutoCloseTimeoutSeconds    int `yaml:"auto_close_timeout"`
	SessionTimeoutSeconds      int `yaml:"session_timeout"`
	StatusCheckIntervalSeconds int `yaml:"status_check_interval"`
	BLEScanIntervalSeconds     int `yaml:"ble_scan_interval"`
	ScanDurationSeconds        int `yaml:"scan_duration"`
	TokenIdleTimeoutSeconds    int `yaml:"token_idle_timeout"`
}

// AutoCloseTimeout returns the auto-close timeout as a duration.
func (g GateSettings) AutoCloseTimeout() time.Duration {
	return time.Duration(g.AutoCloseTimeoutSeconds) * time.Second
}

// SessionTimeout returns the session debounce window as a duration.
func (g GateSettings) SessionTimeout() time.Duration {
	return time.Duration(g.SessionTimeoutSeconds) * time.Second
}

// StatusCheckInterval returns the status poll interval as a duration.
func (g GateSettings) StatusCheckInterval() time.Duration {
	return time.Duration(g.StatusCheckIntervalSeconds) * time.Second
}

// BLEScanInterval returns the scan loop interval as a duration.
func (g GateSettings) BLEScanInterval() time.Duration {
	return time.Duration(g.BLEScanIntervalSeconds) * time.Second
}

// ScanDuration returns the duration of a single radio scan.
func (g GateSettings) ScanDuration() time.Duration {
	return time.Duration(g.ScanDurationSeconds) * time.Second
}

// TokenIdleTimeout returns how long a token stays "in range" after its last
// observation, for dashboard annotation purposes.
func (g GateSettings) TokenIdleTimeout() time.Duration {
	return time.Duration(g.TokenIdleTimeoutSeconds) * time.Second
}

// LoggingSettings holds activity-log behavior flags.
type LoggingSettings struct {
	// SuppressDetections controls whether repeated detections of the same
	// token update the previous entry in place instead of appending.
	SuppressDetections bool `yaml:"suppress_detections"`
}

// TokenRecord is the persisted form of a registered token.
type TokenRecord struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Enabled   bool      `yaml:"enabled"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Document is the full persisted store: settings plus the token registry.
// Token order is significant (insertion order).
type Document struct {
	Actuator ActuatorSettings `yaml:"actuator"`
	Gate     GateSettings     `yaml:"gate"`
	Logging  LoggingSettings  `yaml:"logging"`
	Tokens   []TokenRecord    `yaml:"tokens"`
}

// DefaultDocument returns a document with all tunables set to their defaults
// and an empty token registry.
func DefaultDocument() Document {
	return Document{
		Gate: GateSettings{
			AutoCloseTimeoutSeconds:    DefaultAutoCloseTimeout,
			SessionTimeoutSeconds:      DefaultSessionTimeout,
			StatusCheckIntervalSeconds: DefaultStatusCheckInterval,
			BLEScanIntervalSeconds:     DefaultBLEScanInterval,
			ScanDurationSeconds:        DefaultScanDuration,
			TokenIdleTimeoutSeconds:    DefaultTokenIdleTimeout,
		},
		Logging: LoggingSettings{
			SuppressDetections: true,
		},
	}
}

// FileStore owns the in-memory copy of the store document and its file.
// All access goes through the store's mutex; Save rewrites the whole file.
type FileStore struct {
	path string

	mu  sync.Mutex
	doc Document
}

// NewFileStore creates a store bound to the given path. Call Load before use.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, doc: DefaultDocument()}
}

// Path returns the store file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the store file into memory. A missing file yields the default
// document; an unreadable or unparsable file is an error (fatal at startup).
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.doc = DefaultDocument()
			return nil
		}
		return apperrors.Wrapf(err, "failed to read store file %s", s.path)
	}

	doc := DefaultDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return apperrors.Wrapf(err, "failed to parse store file %s", s.path)
	}

	applyDefaults(&doc)
	if err := validate(&doc); err != nil {
		return err
	}

	s.doc = doc
	return nil
}

// Document returns a copy of the in-memory document.
func (s *FileStore) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDocument(s.doc)
}

// Tokens returns a copy of the persisted token records in insertion order.
func (s *FileStore) Tokens() []TokenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := make([]TokenRecord, len(s.doc.Tokens))
	copy(tokens, s.doc.Tokens)
	return tokens
}

// SaveTokens replaces the token registry and persists the whole document.
func (s *FileStore) SaveTokens(tokens []TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Tokens = make([]TokenRecord, len(tokens))
	copy(s.doc.Tokens, tokens)
	return s.saveLocked()
}

// GateSettings returns the gate-behavior tunables.
func (s *FileStore) GateSettings() GateSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Gate
}

// ActuatorSettings returns the remote controller connection parameters.
func (s *FileStore) ActuatorSettings() ActuatorSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Actuator
}

// LoggingSettings returns the activity-log behavior flags.
func (s *FileStore) LoggingSettings() LoggingSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Logging
}

// SaveLoggingSettings replaces the logging settings and persists.
func (s *FileStore) SaveLoggingSettings(settings LoggingSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Logging = settings
	return s.saveLocked()
}

// Save persists the current in-memory document.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *FileStore) saveLocked() error {
	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal store document")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrapf(err, "failed to create store directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".gate-store-*.yaml")
	if err != nil {
		return apperrors.Wrap(err, "failed to create temp store file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return apperrors.Wrap(err, "failed to write temp store file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Wrap(err, "failed to close temp store file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Wrapf(err, "failed to replace store file %s", s.path)
	}

	return nil
}

// Watch reloads the store when the file changes on disk and invokes onReload
// after each successful reload. It blocks until the context is cancelled.
// Reloads triggered by the store's own saves are harmless (same content).
func (s *FileStore) Watch(ctx context.Context, logger *slog.Logger, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(err, "failed to create store watcher")
	}
	defer func() {
		// Best-effort watcher close; no actionable error handling path.
		_ = watcher.Close()
	}()

	// Watch the directory: editors and our own atomic saves replace the file,
	// which drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return apperrors.Wrap(err, "failed to watch store directory")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Load(); err != nil {
				logger.Error("failed to reload store file", slog.Any("error", err))
				continue
			}
			logger.Info("store file reloaded", slog.String("path", s.path))
			if onReload != nil {
				onReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("store watcher error", slog.Any("error", err))
		}
	}
}

// applyDefaults fills zero-valued tunables with defaults.
func applyDefaults(doc *Document) {
	if doc.Gate.AutoCloseTimeoutSeconds == 0 {
		doc.Gate.AutoCloseTimeoutSeconds = DefaultAutoCloseTimeout
	}
	if doc.Gate.SessionTimeoutSeconds == 0 {
		doc.Gate.SessionTimeoutSeconds = DefaultSessionTimeout
	}
	if doc.Gate.StatusCheckIntervalSeconds == 0 {
		doc.Gate.StatusCheckIntervalSeconds = DefaultStatusCheckInterval
	}
	if doc.Gate.BLEScanIntervalSeconds == 0 {
		doc.Gate.BLEScanIntervalSeconds = DefaultBLEScanInterval
	}
	if doc.Gate.ScanDurationSeconds == 0 {
		doc.Gate.ScanDurationSeconds = DefaultScanDuration
	}
	if doc.Gate.TokenIdleTimeoutSeconds == 0 {
		doc.Gate.TokenIdleTimeoutSeconds = DefaultTokenIdleTimeout
	}
}

// validate rejects documents with out-of-range tunables.
func validate(doc *Document) error {
	fields := map[string]int{
		"auto_close_timeout":    doc.Gate.AutoCloseTimeoutSeconds,
		"session_timeout":       doc.Gate.SessionTimeoutSeconds,
		"status_check_interval": doc.Gate.StatusCheckIntervalSeconds,
		"ble_scan_interval":     doc.Gate.BLEScanIntervalSeconds,
		"scan_duration":         doc.Gate.ScanDurationSeconds,
		"token_idle_timeout":    doc.Gate.TokenIdleTimeoutSeconds,
	}
	for name, value := range fields {
		if value < 0 {
			return apperrors.Wrapf(apperrors.ErrInvalidInput, "gate setting %s must not be negative", name)
		}
	}
	return nil
}

func copyDocument(doc Document) Document {
	out := doc
	out.Tokens = make([]TokenRecord, len(doc.Tokens))
	copy(out.Tokens, doc.Tokens)
	return out
}
