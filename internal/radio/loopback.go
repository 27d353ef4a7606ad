package radio

import (
	"context"
	"sync"
)

// ringCapacity bounds the number of queued packets in each direction
const ringCapacity = 64

// Loopback is an in-memory transport for host-side testing.
// Packets pushed with Inject are returned by Poll; sent packets are recorded.
type Loopback struct {
	mu        sync.Mutex
	rxBuf     ring
	txBuf     ring
	receiving bool
	closed    bool
	sendErr   error
	signal    Signal
}

// NewLoopback creates an empty loopback transport
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Send records data in the transmit log
func (l *Loopback) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.receiving = false
	if l.sendErr != nil {
		return l.sendErr
	}
	l.txBuf.push(clone(data))
	return nil
}

// Receive marks the transport as listening
func (l *Loopback) Receive() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.receiving = true
	return nil
}

// Poll pops the oldest injected packet
func (l *Loopback) Poll() ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, false, ErrClosed
	}
	frame, ok := l.rxBuf.pop()
	return frame, ok, nil
}

// Close stops the transport
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Inject queues data as if it had been received over the air
func (l *Loopback) Inject(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rxBuf.push(clone(data))
}

// Sent returns a copy of every packet sent so far
func (l *Loopback) Sent() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txBuf.snapshot()
}

// Receiving reports whether the transport is in receive mode
func (l *Loopback) Receiving() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.receiving
}

// FailSends makes subsequent Send calls return err (nil restores normal operation)
func (l *Loopback) FailSends(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

// SetSignal sets the link quality reported for injected packets
func (l *Loopback) SetSignal(s Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.signal = s
}

// LastSignal returns the value set with SetSignal
func (l *Loopback) LastSignal() Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.signal
}

func clone(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

type ring struct {
	data       [ringCapacity][]byte
	head, tail int // head = next pop, tail = next push
	count      int
}

func (r *ring) push(frame []byte) {
	if r.count == ringCapacity {
		// Overwrite the oldest
		r.data[r.tail] = nil
		r.head = (r.head + 1) % ringCapacity
		r.count--
	}
	r.data[r.tail] = frame
	r.tail = (r.tail + 1) % ringCapacity
	r.count++
}

func (r *ring) pop() ([]byte, bool) {
	if r.count == 0 {
		return nil, false
	}
	frame := r.data[r.head]
	r.data[r.head] = nil
	r.head = (r.head + 1) % ringCapacity
	r.count--
	return frame, true
}

func (r *ring) snapshot() [][]byte {
	out := make([][]byte, 0, r.count)
	i := r.head
	for c := 0; c < r.count; c++ {
		out = append(out, clone(r.data[i]))
		i = (i + 1) % ringCapacity
	}
	return out
}
