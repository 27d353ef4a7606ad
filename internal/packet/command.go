package packet

import (
	"fmt"
)

// Command is an uplink request sent to the probe
type Command struct {
	RequestTelemetry  bool
	RequestScientific bool
	Team              TeamID
}

// EncodeCommand builds the 2-byte uplink command packet.
// Only the low nibble of team is kept. Command packets carry no checksum.
func EncodeCommand(requestTelemetry, requestScientific bool, team TeamID) [CommandSize]byte {
	var flags byte
	if requestTelemetry {
		flags |= CommandTelemetryRequest
	}
	if requestScientific {
		flags |= CommandScientificRequest
	}
	flags |= byte(team) & TeamIDMask

	return [CommandSize]byte{IDCommand, flags}
}

// Encode returns the wire form of c
func (c Command) Encode() [CommandSize]byte {
	return EncodeCommand(c.RequestTelemetry, c.RequestScientific, c.Team)
}

// String renders the command the way the console log shows it
func (c Command) String() string {
	return fmt.Sprintf("TEL=%d SCI=%d Team=0x%X", b2i(c.RequestTelemetry), b2i(c.RequestScientific), uint8(c.Team)&TeamIDMask)
}

// DecodeCommand parses an uplink command packet
func DecodeCommand(data []byte) (Command, error) {
	if len(data) < CommandSize {
		return Command{}, fmt.Errorf("%w: command got %d bytes, need %d", ErrTooShort, len(data), CommandSize)
	}
	if data[0] != IDCommand {
		return Command{}, fmt.Errorf("%w: command id 0x%02X", ErrWrongType, data[0])
	}

	flags := data[1]
	return Command{
		RequestTelemetry:  flags&CommandTelemetryRequest != 0,
		RequestScientific: flags&CommandScientificRequest != 0,
		Team:              TeamID(flags & TeamIDMask),
	}, nil
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
