// Package domain defines the gate state machine types and the actuator contract.
package domain

import (
	"context"
	"time"

	"github.com/alexfok/gate-controller/internal/errors"
)

// State is the locally tracked gate state. Exactly one value at any instant,
// owned exclusively by the session gate.
type State string

// Gate states. The initial state is Unknown until the true state has been
// confirmed against the actuator.
const (
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateUnknown State = "unknown"
)

// Domain-specific errors for gate operations.
var (
	// ErrActuatorUnavailable indicates the remote controller could not be
	// reached or refused the command.
	ErrActuatorUnavailable = errors.Wrap(errors.ErrUnavailable, "actuator unavailable")

	// ErrOpenFailed indicates the open command did not complete.
	ErrOpenFailed = errors.Wrap(errors.ErrUnavailable, "gate open failed")

	// ErrCloseFailed indicates the close command did not complete.
	ErrCloseFailed = errors.Wrap(errors.ErrUnavailable, "gate close failed")
)

// StatusInfo is the actuator's own report of the remote device state.
type StatusInfo struct {
	Online  bool           `json:"online"`
	Details map[string]any `json:"details,omitempty"`
}

// Status is the composite snapshot returned by a status query: the locally
// tracked state alongside (not overridden by) the actuator's own report.
type Status struct {
	GateState     State      `json:"gate_state"`
	LastOpenTime  *time.Time `json:"last_open_time,omitempty"`
	SessionActive bool       `json:"session_active"`
	Actuator      StatusInfo `json:"actuator"`
	ActuatorError string     `json:"actuator_error,omitempty"`
}

// EventType classifies a live gate event.
type EventType string

// Live event types pushed to dashboard subscribers.
const (
	EventTokenDetected EventType = "token_detected"
	EventGateOpened    EventType = "gate_opened"
	EventGateClosed    EventType = "gate_closed"
)

// Event is a live update pushed to subscribers (the dashboard event stream).
// Detection is set for token_detected events only.
type Event struct {
	Type      EventType  `json:"type"`
	GateState State      `json:"gate_state"`
	Detection *Detection `json:"detection,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Time      time.Time  `json:"time"`
}

// Detection is the payload emitted when a token is observed.
type Detection struct {
	TokenID   string    `json:"token_id"`
	TokenName string    `json:"token_name"`
	RSSI      int       `json:"rssi,omitempty"`
	Distance  float64   `json:"distance,omitempty"`
	Time      time.Time `json:"time"`
}

// Actuator abstracts the remote home-automation controller. Open and Close
// report plain success or failure; retry policy is entirely the
// implementation's responsibility and the core never retries. Status returns
// ErrActuatorUnavailable when the controller cannot be queried.
type Actuator interface {
	Connect(ctx context.Context) error
	Open(ctx context.Context) bool
	Close(ctx context.Context) bool
	Status(ctx context.Context) (StatusInfo, error)
	Notify(ctx context.Context, title, message string) bool
	Disconnect(ctx context.Context) error
}
