package packet

// Packet family identifiers (high nibble of byte 0)
const (
	IDCommand        = 0x00 // Uplink command
	IDTelemetryBase  = 0xA0 // Downlink telemetry, low nibble carries the team
	IDScientificBase = 0x10 // Downlink scientific payload, low nibble carries the team

	BaseIDMask = 0xF0
	TeamIDMask = 0x0F
)

// Packet sizes
const (
	CommandSize = 2 // No checksum on the uplink

	// Layout: id(1) lat(3) lon(3) vvel(2) alt(2) ts(4) crc(1)
	TelemetrySize = 16

	MinScientificSize = 47
	MaxScientificSize = 82

	// MaxPacketSize is the largest downlink packet a receiver buffers.
	MaxPacketSize = MaxScientificSize
)

// Command byte flags
const (
	CommandTelemetryRequest  = 0x20 // Bit 5
	CommandScientificRequest = 0x10 // Bit 4
)

// Telemetry field offsets
const (
	telemetryLatOffset  = 1
	telemetryLonOffset  = 4
	telemetryVVelOffset = 7
	telemetryAltOffset  = 9
	telemetryTSOffset   = 11
	telemetryCRCOffset  = 15
)

// Fixed-point divisors
const (
	CoordinateScale       = 100000.0 // degrees
	VerticalVelocityScale = 100.0    // cm/s to m/s
	AltitudeScale         = 10.0     // dm to m
	UVScale               = 100.0
	PressureScale         = 10.0   // Pa
	TemperatureScale      = 100.0  // degC
	AzimuthScale          = 1000.0 // degrees
)

// TeamID scopes which sender's packets a receiver accepts (4 bits).
type TeamID uint8

// Valid reports whether the team ID fits in a nibble.
func (t TeamID) Valid() bool {
	return t <= TeamIDMask
}
