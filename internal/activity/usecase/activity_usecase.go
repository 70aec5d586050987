// Package usecase implements the activity recorder: a capped, persisted log
// of gate and token events with suppress-mode detection coalescing.
package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alexfok/gate-controller/internal/activity/domain"
	apperrors "github.com/alexfok/gate-controller/internal/errors"
)

// Recorder keeps the activity log: an append-only slice of entries guarded by
// a single mutex, with an index of the latest detection entry per token id so
// suppress mode can update in place. The log is capped at maxEntries (oldest
// dropped first) and mirrored to a JSON file after every mutation.
type Recorder struct {
	path       string
	maxEntries int
	logger     *slog.Logger

	mu       sync.Mutex
	entries  []domain.Entry
	suppress bool
	// detectionIdx maps a token id to the index of its most recent
	// token_detected entry, for in-place updates in suppress mode.
	detectionIdx map[string]int
}

// NewRecorder creates a Recorder and loads any previously persisted entries.
// An unreadable log file is not fatal: the recorder starts empty and logs the
// problem, matching the log's best-effort role.
func NewRecorder(path string, maxEntries int, suppress bool, logger *slog.Logger) *Recorder {
	r := &Recorder{
		path:         path,
		maxEntries:   maxEntries,
		logger:       logger,
		suppress:     suppress,
		detectionIdx: make(map[string]int),
	}
	r.load()
	return r
}

// Suppress reports whether suppress mode is active.
func (r *Recorder) Suppress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppress
}

// SetSuppress toggles suppress mode at runtime.
func (r *Recorder) SetSuppress(suppress bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppress = suppress
}

// Record appends a generic entry.
func (r *Recorder) Record(eventType domain.EventType, message string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLocked(domain.Entry{
		Timestamp:   time.Now().UTC(),
		Type:        eventType,
		Message:     message,
		Details:     details,
		UpdateCount: 1,
	})
	r.saveLocked()
}

// RecordTokenDetected records a token detection with signal information.
// In suppress mode a repeated detection of the same token id refreshes the
// previous entry (timestamp, message, details) and increments UpdateCount
// instead of appending, bounding log growth under continuous detection.
func (r *Recorder) RecordTokenDetected(tokenID, tokenName string, rssi int, distance float64) {
	details := map[string]any{
		"token_id":   tokenID,
		"token_name": tokenName,
	}

	parts := []string{fmt.Sprintf("Token detected: %s", tokenName)}
	if rssi != 0 {
		details["rssi"] = rssi
		details["signal_quality"] = domain.SignalQuality(rssi)
		parts = append(parts, fmt.Sprintf("RSSI: %d dBm (%s)", rssi, domain.SignalQuality(rssi)))
	}
	if distance > 0 {
		details["distance_meters"] = distance
		parts = append(parts, fmt.Sprintf("Distance: ~%.1fm", distance))
	}
	message := strings.Join(parts, " | ")

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.suppress {
		if idx, ok := r.detectionIdx[tokenID]; ok {
			entry := &r.entries[idx]
			entry.Timestamp = time.Now().UTC()
			entry.Message = message
			entry.Details = details
			entry.UpdateCount++
			r.saveLocked()
			return
		}
	}

	r.appendLocked(domain.Entry{
		Timestamp:   time.Now().UTC(),
		Type:        domain.EventTokenDetected,
		Message:     message,
		Details:     details,
		UpdateCount: 1,
	})
	r.detectionIdx[tokenID] = len(r.entries) - 1
	r.saveLocked()
}

// RecordGateOpened records a gate open event.
func (r *Recorder) RecordGateOpened(reason, tokenName string) {
	details := map[string]any{}
	if tokenName != "" {
		details["token_name"] = tokenName
	}
	r.Record(domain.EventGateOpened, fmt.Sprintf("Gate opened: %s", reason), details)
}

// RecordGateClosed records a gate close event.
func (r *Recorder) RecordGateClosed(reason string) {
	r.Record(domain.EventGateClosed, fmt.Sprintf("Gate closed: %s", reason), nil)
}

// RecordTokenRegistered records a token registration.
func (r *Recorder) RecordTokenRegistered(tokenID, tokenName string) {
	r.Record(domain.EventTokenRegistered, fmt.Sprintf("Token registered: %s", tokenName), map[string]any{
		"token_id":   tokenID,
		"token_name": tokenName,
	})
}

// RecordTokenUnregistered records a token removal.
func (r *Recorder) RecordTokenUnregistered(tokenID, tokenName string) {
	r.Record(domain.EventTokenUnregistered, fmt.Sprintf("Token unregistered: %s", tokenName), map[string]any{
		"token_id":   tokenID,
		"token_name": tokenName,
	})
}

// RecordError records an error event.
func (r *Recorder) RecordError(message string, details map[string]any) {
	r.Record(domain.EventError, message, details)
}

// RecordInfo records an informational event.
func (r *Recorder) RecordInfo(message string, details map[string]any) {
	r.Record(domain.EventInfo, message, details)
}

// Entries returns entries most recent first, optionally filtered by event
// type and limited to the given count (0 means no limit).
func (r *Recorder) Entries(limit int, eventType domain.EventType) []domain.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Entry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		if eventType != "" && r.entries[i].Type != eventType {
			continue
		}
		out = append(out, r.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Clear removes all entries.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.detectionIdx = make(map[string]int)
	r.saveLocked()
}

// appendLocked appends an entry and trims to the cap, keeping the detection
// index aligned with the shifted slice. Caller holds the mutex.
func (r *Recorder) appendLocked(entry domain.Entry) {
	r.entries = append(r.entries, entry)

	if r.maxEntries > 0 && len(r.entries) > r.maxEntries {
		drop := len(r.entries) - r.maxEntries
		r.entries = r.entries[drop:]
		for id, idx := range r.detectionIdx {
			if idx < drop {
				delete(r.detectionIdx, id)
				continue
			}
			r.detectionIdx[id] = idx - drop
		}
	}
}

// load reads previously persisted entries, trimming to the cap.
func (r *Recorder) load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) && r.logger != nil {
			r.logger.Error("failed to read activity log", slog.Any("error", err))
		}
		return
	}

	var entries []domain.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		if r.logger != nil {
			r.logger.Error("failed to parse activity log", slog.Any("error", err))
		}
		return
	}

	if r.maxEntries > 0 && len(entries) > r.maxEntries {
		entries = entries[len(entries)-r.maxEntries:]
	}
	r.entries = entries

	// Rebuild the detection index from the surviving entries.
	for i, entry := range r.entries {
		if entry.Type != domain.EventTokenDetected {
			continue
		}
		if id, ok := entry.Details["token_id"].(string); ok {
			r.detectionIdx[id] = i
		}
	}
}

// saveLocked persists the entries as a JSON array. Failures are logged and
// otherwise ignored; the in-memory log remains authoritative. Caller holds
// the mutex.
func (r *Recorder) saveLocked() {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		if r.logger != nil {
			r.logger.Error("failed to marshal activity log", slog.Any("error", err))
		}
		return
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		if r.logger != nil {
			r.logger.Error("failed to create activity log directory", slog.Any("error", err))
		}
		return
	}

	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		if r.logger != nil {
			r.logger.Error("failed to write activity log", slog.Any("error", apperrors.Wrap(err, "write activity log")))
		}
	}
}
