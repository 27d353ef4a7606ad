package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"groundlink/internal/packet"
)

// udpQueueSize bounds packets waiting to be polled
const udpQueueSize = 100

// UDP is a transport for LoRa packet bridges: each datagram carries one raw radio packet.
// Commands go to the configured remote address, or to the last peer heard from.
type UDP struct {
	conn    *net.UDPConn
	remote  *net.UDPAddr
	logger  *logrus.Logger
	packets chan []byte

	mu       sync.RWMutex
	lastPeer *net.UDPAddr
	closed   bool

	wg sync.WaitGroup
}

// NewUDP binds listenAddr and starts reading datagrams. remoteAddr may be empty.
func NewUDP(listenAddr, remoteAddr string, logger *logrus.Logger) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP listen address: %w", err)
	}

	var raddr *net.UDPAddr
	if remoteAddr != "" {
		raddr, err = net.ResolveUDPAddr("udp", remoteAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve UDP remote address: %w", err)
		}
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP: %w", err)
	}

	u := &UDP{
		conn:    conn,
		remote:  raddr,
		logger:  logger,
		packets: make(chan []byte, udpQueueSize),
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.readLoop()
	}()

	logger.WithFields(logrus.Fields{
		"listen": conn.LocalAddr().String(),
		"remote": remoteAddr,
	}).Info("UDP radio bridge listening")

	return u, nil
}

// readLoop queues incoming datagrams until the socket is closed
func (u *UDP) readLoop() {
	// One spare byte so oversized datagrams are detected
	buf := make([]byte, packet.MaxPacketSize+1)

	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			u.logger.WithError(err).Debug("UDP read failed")
			continue
		}

		if n > packet.MaxPacketSize {
			u.logger.WithFields(logrus.Fields{
				"peer": addr.String(),
				"max":  packet.MaxPacketSize,
			}).Debug("Truncating oversized datagram")
			n = packet.MaxPacketSize
		}

		u.mu.Lock()
		u.lastPeer = addr
		u.mu.Unlock()

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case u.packets <- data:
		default:
			// Drop data if queue is full
			u.logger.Debug("Dropping datagram, queue full")
		}
	}
}

// Send writes data as one datagram
func (u *UDP) Send(ctx context.Context, data []byte) error {
	if len(data) > packet.MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLong, len(data))
	}

	u.mu.RLock()
	closed := u.closed
	addr := u.remote
	if addr == nil {
		addr = u.lastPeer
	}
	u.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if addr == nil {
		return errors.New("no remote address: configure one or wait for the first packet")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(time.Second)
	}
	if err := u.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if _, err := u.conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("failed to send datagram: %w", err)
	}
	return nil
}

// Receive is a no-op: the socket always listens
func (u *UDP) Receive() error {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return ErrClosed
	}
	return nil
}

// Poll returns the next queued datagram without blocking
func (u *UDP) Poll() ([]byte, bool, error) {
	select {
	case data := <-u.packets:
		return data, true, nil
	default:
	}

	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return nil, false, ErrClosed
	}
	return nil, false, nil
}

// LocalAddr returns the bound address
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Close closes the socket and waits for the reader to exit
func (u *UDP) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	u.mu.Unlock()

	err := u.conn.Close()
	u.wg.Wait()
	return err
}
