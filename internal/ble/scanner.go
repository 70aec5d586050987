// Package ble provides BLE token scanning: a Scanner contract consumed by the
// decision engine, a gatt-backed implementation for real radios, and the
// iBeacon advertisement transform used to rank and filter observations.
package ble

import (
	"context"
	"time"
)

// DeviceType tags a nearby device for registration tooling.
type DeviceType string

// Device type tags.
const (
	DeviceTypeBeacon DeviceType = "beacon"
	DeviceTypeDevice DeviceType = "device"
)

// Observation is a single timestamped sighting of a registered identifier.
// Distance is UnknownDistance when the signal strength was unavailable.
type Observation struct {
	ID       string  `json:"id"`
	RSSI     int     `json:"rssi,omitempty"`
	Distance float64 `json:"distance,omitempty"`
}

// Device describes any visible BLE device, used only by registration tooling
// (never by the decision engine).
type Device struct {
	ID       string     `json:"id"`
	Address  string     `json:"address,omitempty"`
	Name     string     `json:"name,omitempty"`
	RSSI     int        `json:"rssi,omitempty"`
	Distance float64    `json:"distance,omitempty"`
	Type     DeviceType `json:"type"`
	UUID     string     `json:"uuid,omitempty"`
	Major    uint16     `json:"major,omitempty"`
	Minor    uint16     `json:"minor,omitempty"`
}

// Scanner is the BLE scan collaborator. Implementations must serialize
// physical scans: only one radio scan may be in flight at a time even when
// invoked from multiple call sites.
type Scanner interface {
	// ScanOnce performs one bounded scan and returns deduplicated
	// observations of registered identifiers, keeping the strongest-signal
	// reading per identifier.
	ScanOnce(ctx context.Context, duration time.Duration) ([]Observation, error)

	// ListNearby returns all visible devices, beacons tagged separately.
	ListNearby(ctx context.Context, duration time.Duration) ([]Device, error)
}
