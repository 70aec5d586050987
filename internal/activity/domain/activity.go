// Package domain defines the activity log entities and event types.
package domain

import "time"

// EventType classifies an activity log entry.
type EventType string

// Activity event types.
const (
	EventGateOpened        EventType = "gate_opened"
	EventGateClosed        EventType = "gate_closed"
	EventTokenDetected     EventType = "token_detected"
	EventTokenRegistered   EventType = "token_registered"
	EventTokenUnregistered EventType = "token_unregistered"
	EventError             EventType = "error"
	EventInfo              EventType = "info"
)

// Entry is a single activity log record. Entries are append-only except in
// suppress mode, where a repeated detection of the same token refreshes the
// existing entry in place and bumps UpdateCount.
type Entry struct {
	Timestamp   time.Time      `json:"timestamp"`
	Type        EventType      `json:"type"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	UpdateCount int            `json:"update_count,omitempty"`
}

// SignalQuality buckets an RSSI reading into a human-readable label.
func SignalQuality(rssi int) string {
	switch {
	case rssi >= -60:
		return "Excellent"
	case rssi >= -70:
		return "Good"
	case rssi >= -80:
		return "Fair"
	case rssi >= -90:
		return "Weak"
	default:
		return "Very Weak"
	}
}
