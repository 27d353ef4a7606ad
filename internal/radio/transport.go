package radio

import (
	"context"
	"errors"
)

var (
	ErrClosed  = errors.New("transport closed")
	ErrTooLong = errors.New("packet exceeds transport capacity")
)

// Transport moves raw packets between the ground station and the probe
type Transport interface {
	// Send transmits one packet. The transport is left idle; call Receive to listen again.
	Send(ctx context.Context, data []byte) error

	// Receive puts the transport back into receive mode
	Receive() error

	// Poll returns the next received packet, or false when none is pending
	Poll() ([]byte, bool, error)

	// Close releases the underlying device or socket
	Close() error
}

// Signal is the link quality of a received packet
type Signal struct {
	RSSI int     // dBm
	SNR  float64 // dB
}

// SignalReporter is implemented by transports that measure link quality
type SignalReporter interface {
	LastSignal() Signal
}
