package ble

import (
	"encoding/binary"
	"fmt"
	"math"
)

// UnknownDistance is the sentinel returned when no distance could be
// estimated, typically because the RSSI reading was unavailable.
const UnknownDistance = -1.0

// DefaultTxPower is the assumed measured power at one meter, in dBm, when the
// advertisement does not carry its own calibration byte.
const DefaultTxPower = -59

// pathLossExponent models free-space propagation. Indoor environments with
// walls would use a higher value.
const pathLossExponent = 2.0

// appleCompanyID is the Bluetooth SIG company identifier carried in iBeacon
// manufacturer data, little-endian on the wire.
const appleCompanyID = 0x004c

// IBeacon is a parsed iBeacon advertisement frame.
type IBeacon struct {
	UUID    string
	Major   uint16
	Minor   uint16
	TxPower int
}

// ParseIBeacon decodes an iBeacon frame from raw advertisement manufacturer
// data, company identifier included. It returns false for anything that is
// not a well-formed iBeacon.
func ParseIBeacon(data []byte) (IBeacon, bool) {
	if len(data) < 25 {
		return IBeacon{}, false
	}
	if binary.LittleEndian.Uint16(data[0:2]) != appleCompanyID {
		return IBeacon{}, false
	}
	if data[2] != 0x02 || data[3] != 0x15 {
		return IBeacon{}, false
	}

	u := data[4:20]
	return IBeacon{
		UUID: fmt.Sprintf("%X-%X-%X-%X-%X",
			u[0:4], u[4:6], u[6:8], u[8:10], u[10:16]),
		Major:   binary.BigEndian.Uint16(data[20:22]),
		Minor:   binary.BigEndian.Uint16(data[22:24]),
		TxPower: int(int8(data[24])),
	}, true
}

// Identifier renders the beacon identity in its canonical uuid:major:minor
// form, the shape users register beacons under.
func (b IBeacon) Identifier() string {
	return fmt.Sprintf("%s:%d:%d", b.UUID, b.Major, b.Minor)
}

// EstimateDistance converts an RSSI reading to an approximate distance in
// meters using the log-distance path loss model. An RSSI of zero means the
// reading was unavailable and yields UnknownDistance.
func EstimateDistance(rssi, txPower int) float64 {
	if rssi == 0 {
		return UnknownDistance
	}
	return math.Pow(10, float64(txPower-rssi)/(10*pathLossExponent))
}
