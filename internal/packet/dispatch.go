package packet

import (
	"fmt"
)

// Kind is the packet family named by the base identifier
type Kind int

const (
	KindUnknown Kind = iota
	KindCommand
	KindTelemetry
	KindScientific
)

// String returns the label used in logs and metrics
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindTelemetry:
		return "telemetry"
	case KindScientific:
		return "scientific"
	default:
		return "unknown"
	}
}

// Classify inspects byte 0 of data and returns its packet family
func Classify(data []byte) Kind {
	if len(data) == 0 {
		return KindUnknown
	}

	id := data[0]
	switch {
	case id == IDCommand:
		return KindCommand
	case id&BaseIDMask == IDTelemetryBase:
		return KindTelemetry
	case id&BaseIDMask == IDScientificBase:
		return KindScientific
	default:
		return KindUnknown
	}
}

// Team returns the team nibble of byte 0, or false for an empty buffer
func Team(data []byte) (TeamID, bool) {
	if len(data) == 0 {
		return 0, false
	}
	return TeamID(data[0] & TeamIDMask), true
}

// HexPrefix renders at most limit bytes of data as spaced upper-case hex
func HexPrefix(data []byte, limit int) string {
	if len(data) > limit {
		data = data[:limit]
	}
	return fmt.Sprintf("% X", data)
}
