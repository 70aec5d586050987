package ble

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/paypal/gatt"
	"github.com/paypal/gatt/examples/option"

	"github.com/alexfok/gate-controller/internal/errors"
)

// poweredOnTimeout bounds how long a scan waits for the adapter to report
// PoweredOn before giving up.
const poweredOnTimeout = 10 * time.Second

// GattScanner implements Scanner over a local HCI adapter. The device is
// initialized lazily on first use, and scanMu guarantees the spec'd
// serialization: the radio runs at most one scan at a time regardless of how
// many callers race.
type GattScanner struct {
	logger     *slog.Logger
	registered func() []string
	normalize  func(string) string

	scanMu sync.Mutex

	initOnce sync.Once
	initErr  error
	device   gatt.Device

	poweredOnce sync.Once
	powered     chan struct{}

	handlerMu sync.Mutex
	handler   func(p gatt.Peripheral, a *gatt.Advertisement, rssi int)
}

// NewGattScanner creates a scanner. registered supplies the identifiers to
// watch for and normalize maps raw advertisement identifiers to the canonical
// form registered identifiers are stored in.
func NewGattScanner(logger *slog.Logger, registered func() []string, normalize func(string) string) *GattScanner {
	return &GattScanner{
		logger:     logger,
		registered: registered,
		normalize:  normalize,
		powered:    make(chan struct{}),
	}
}

// ScanOnce runs one bounded scan and returns the strongest observation per
// registered identifier seen during the window.
func (s *GattScanner) ScanOnce(ctx context.Context, duration time.Duration) ([]Observation, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if err := s.ensureDevice(ctx); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{})
	for _, id := range s.registered() {
		wanted[s.normalize(id)] = struct{}{}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	best := make(map[string]Observation)

	s.setHandler(func(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
		obs, ok := s.matchRegistered(wanted, p, a, rssi)
		if !ok {
			return
		}
		mu.Lock()
		if prev, seen := best[obs.ID]; !seen || obs.RSSI > prev.RSSI {
			best[obs.ID] = obs
		}
		mu.Unlock()
	})
	defer s.setHandler(nil)

	if err := s.runScan(ctx, duration); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Observation, 0, len(best))
	for _, obs := range best {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RSSI > out[j].RSSI })
	return out, nil
}

// ListNearby runs one bounded scan and returns every visible device, keeping
// the strongest reading per device.
func (s *GattScanner) ListNearby(ctx context.Context, duration time.Duration) ([]Device, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if err := s.ensureDevice(ctx); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	seen := make(map[string]Device)

	s.setHandler(func(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
		dev := toDevice(p, a, rssi)
		mu.Lock()
		if prev, ok := seen[dev.ID]; !ok || dev.RSSI > prev.RSSI {
			seen[dev.ID] = dev
		}
		mu.Unlock()
	})
	defer s.setHandler(nil)

	if err := s.runScan(ctx, duration); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Device, 0, len(seen))
	for _, dev := range seen {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RSSI > out[j].RSSI })
	return out, nil
}

// runScan starts the radio, waits out the window, and stops it. Caller holds
// scanMu.
func (s *GattScanner) runScan(ctx context.Context, duration time.Duration) error {
	s.device.Scan([]gatt.UUID{}, true)
	defer s.device.StopScanning()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(duration):
		return nil
	}
}

// matchRegistered maps a discovered peripheral to an Observation when any of
// its identities (beacon uuid:major:minor, hardware address, advertised name)
// normalizes to a registered identifier.
func (s *GattScanner) matchRegistered(wanted map[string]struct{}, p gatt.Peripheral, a *gatt.Advertisement, rssi int) (Observation, bool) {
	txPower := DefaultTxPower
	candidates := make([]string, 0, 3)

	if beacon, ok := ParseIBeacon(a.ManufacturerData); ok {
		candidates = append(candidates, beacon.Identifier())
		txPower = beacon.TxPower
	}
	candidates = append(candidates, p.ID())
	if a.LocalName != "" {
		candidates = append(candidates, a.LocalName)
	}

	for _, candidate := range candidates {
		id := s.normalize(candidate)
		if _, ok := wanted[id]; !ok {
			continue
		}
		return Observation{
			ID:       id,
			RSSI:     rssi,
			Distance: EstimateDistance(rssi, txPower),
		}, true
	}
	return Observation{}, false
}

// ensureDevice initializes the gatt device once and waits for the adapter to
// power on. Caller holds scanMu.
func (s *GattScanner) ensureDevice(ctx context.Context) error {
	s.initOnce.Do(func() {
		device, err := gatt.NewDevice(option.DefaultClientOptions...)
		if err != nil {
			s.initErr = errors.Wrap(err, "failed to open BLE device")
			return
		}
		device.Handle(gatt.PeripheralDiscovered(s.onPeripheralDiscovered))
		if err := device.Init(s.onStateChanged); err != nil {
			s.initErr = errors.Wrap(err, "failed to initialize BLE device")
			return
		}
		s.device = device
	})
	if s.initErr != nil {
		return s.initErr
	}

	select {
	case <-s.powered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(poweredOnTimeout):
		return errors.Wrap(errors.ErrUnavailable, "BLE adapter did not power on")
	}
}

func (s *GattScanner) onStateChanged(d gatt.Device, state gatt.State) {
	s.logger.Info("BLE adapter state changed", slog.String("state", state.String()))
	switch state {
	case gatt.StatePoweredOn:
		s.poweredOnce.Do(func() { close(s.powered) })
	default:
		d.StopScanning()
	}
}

func (s *GattScanner) onPeripheralDiscovered(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	s.handlerMu.Lock()
	handler := s.handler
	s.handlerMu.Unlock()
	if handler != nil {
		handler(p, a, rssi)
	}
}

func (s *GattScanner) setHandler(handler func(p gatt.Peripheral, a *gatt.Advertisement, rssi int)) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

// toDevice converts a discovery callback into a Device, decoding the iBeacon
// frame when present.
func toDevice(p gatt.Peripheral, a *gatt.Advertisement, rssi int) Device {
	name := a.LocalName
	if name == "" {
		name = p.Name()
	}

	dev := Device{
		ID:       p.ID(),
		Address:  p.ID(),
		Name:     name,
		RSSI:     rssi,
		Distance: EstimateDistance(rssi, DefaultTxPower),
		Type:     DeviceTypeDevice,
	}

	if beacon, ok := ParseIBeacon(a.ManufacturerData); ok {
		dev.Type = DeviceTypeBeacon
		dev.ID = beacon.Identifier()
		dev.UUID = beacon.UUID
		dev.Major = beacon.Major
		dev.Minor = beacon.Minor
		dev.Distance = EstimateDistance(rssi, beacon.TxPower)
	}
	return dev
}
