package packet

import (
	"fmt"
)

// TelemetryRecord is a decoded downlink telemetry packet
type TelemetryRecord struct {
	Latitude         float64 `json:"latitude"`          // degrees
	Longitude        float64 `json:"longitude"`         // degrees
	Altitude         float32 `json:"altitude_m"`        // meters
	VerticalVelocity float32 `json:"vertical_velocity"` // m/s
	Timestamp        uint32  `json:"timestamp"`         // sender clock
	Valid            bool    `json:"valid"`
}

// checkHeader runs the shared validation steps: length, base id, team, checksum.
// crcEnd is the index of the checksum byte.
func checkHeader(data []byte, minLen int, base byte, team TeamID, crcEnd int) error {
	if len(data) < minLen {
		return fmt.Errorf("%w: got %d bytes, need %d", ErrTooShort, len(data), minLen)
	}

	id := data[0]
	if id&BaseIDMask != base {
		return fmt.Errorf("%w: id 0x%02X", ErrWrongType, id)
	}

	if TeamID(id&TeamIDMask) != team {
		return fmt.Errorf("%w: 0x%X", ErrWrongTeam, id&TeamIDMask)
	}

	received, calculated, ok := verifyChecksum(data[:crcEnd+1])
	if !ok {
		return fmt.Errorf("%w: received=0x%02X, calculated=0x%02X", ErrChecksumMismatch, received, calculated)
	}

	return nil
}

// DecodeTelemetry validates and decodes a 16-byte telemetry packet addressed to team.
// Bytes past the 16th are ignored.
func DecodeTelemetry(data []byte, team TeamID) (*TelemetryRecord, error) {
	if err := checkHeader(data, TelemetrySize, IDTelemetryBase, team, telemetryCRCOffset); err != nil {
		return nil, err
	}

	lat := Int24(data[telemetryLatOffset:])
	lon := Int24(data[telemetryLonOffset:])
	vvel := Int16(data[telemetryVVelOffset:])
	alt := Uint16(data[telemetryAltOffset:])

	return &TelemetryRecord{
		Latitude:         Scale(int64(lat), CoordinateScale),
		Longitude:        Scale(int64(lon), CoordinateScale),
		Altitude:         float32(alt) / AltitudeScale,
		VerticalVelocity: float32(vvel) / VerticalVelocityScale,
		Timestamp:        Uint32(data[telemetryTSOffset:]),
		Valid:            true,
	}, nil
}

// EncodeTelemetry builds a 16-byte telemetry packet with a trailing checksum
func EncodeTelemetry(rec TelemetryRecord, team TeamID) []byte {
	buf := make([]byte, TelemetrySize)
	buf[0] = IDTelemetryBase | byte(team)&TeamIDMask
	PutInt24(buf[telemetryLatOffset:], quantizeInt24(rec.Latitude, CoordinateScale))
	PutInt24(buf[telemetryLonOffset:], quantizeInt24(rec.Longitude, CoordinateScale))
	PutInt16(buf[telemetryVVelOffset:], quantizeInt16(float64(rec.VerticalVelocity), VerticalVelocityScale))
	PutUint16(buf[telemetryAltOffset:], quantizeUint16(float64(rec.Altitude), AltitudeScale))
	PutUint32(buf[telemetryTSOffset:], rec.Timestamp)
	buf[telemetryCRCOffset] = Checksum(buf[:telemetryCRCOffset])
	return buf
}
