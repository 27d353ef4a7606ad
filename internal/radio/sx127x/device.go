// Package sx127x drives a Semtech SX1276-family LoRa modem (RFM95/96/98) over SPI.
package sx127x

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"groundlink/internal/packet"
	"groundlink/internal/radio"
)

// Default radio parameters
const (
	DefaultFrequency       = 868300000 // 868.3 MHz
	DefaultTxPower         = 14        // dBm
	DefaultSpreadingFactor = 8
	DefaultCodingRate      = 6      // 4/6
	DefaultBandwidth       = 250000 // 250 kHz
	DefaultSyncWord        = 0x12
	DefaultPreambleLength  = 8

	// Upper bound on a single transmission
	DefaultTxTimeout = 2 * time.Second

	maxFifoPayload = 255
)

var ErrVersion = errors.New("unexpected SX127x chip version")

// Config holds modem parameters. Both ends of the link must agree on them.
type Config struct {
	Frequency       uint32 // Hz
	TxPower         int    // dBm on PA_BOOST, 2-20
	SpreadingFactor int    // 6-12
	CodingRate      int    // denominator of 4/x, 5-8
	Bandwidth       uint32 // Hz
	SyncWord        byte
	PreambleLength  uint16
	TxTimeout       time.Duration
}

// DefaultConfig returns the link parameters the probe ships with
func DefaultConfig() Config {
	return Config{
		Frequency:       DefaultFrequency,
		TxPower:         DefaultTxPower,
		SpreadingFactor: DefaultSpreadingFactor,
		CodingRate:      DefaultCodingRate,
		Bandwidth:       DefaultBandwidth,
		SyncWord:        DefaultSyncWord,
		PreambleLength:  DefaultPreambleLength,
		TxTimeout:       DefaultTxTimeout,
	}
}

// Conn is the SPI connection to the modem; periph's spi.Conn satisfies it
type Conn interface {
	Tx(w, r []byte) error
}

// ResetPin drives the modem's NRESET line; periph's gpio.PinIO satisfies it
type ResetPin interface {
	Out(l gpio.Level) error
}

// Device is an SX127x modem in LoRa mode
type Device struct {
	conn   Conn
	reset  ResetPin
	closer io.Closer
	config Config
	logger *logrus.Logger

	mu         sync.Mutex
	lastSignal radio.Signal
	sleep      func(time.Duration)
}

var (
	_ radio.Transport      = (*Device)(nil)
	_ radio.SignalReporter = (*Device)(nil)
)

// New wraps an already-open SPI connection. reset may be nil.
// Call Init before use.
func New(conn Conn, reset ResetPin, config Config, logger *logrus.Logger) *Device {
	if config.TxTimeout <= 0 {
		config.TxTimeout = DefaultTxTimeout
	}
	if config.PreambleLength == 0 {
		config.PreambleLength = DefaultPreambleLength
	}

	return &Device{
		conn:   conn,
		reset:  reset,
		config: config,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Init resets the modem, checks its version and programs the link parameters
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reset != nil {
		if err := d.pulseReset(); err != nil {
			return fmt.Errorf("failed to reset modem: %w", err)
		}
	}

	version, err := d.readReg(regVersion)
	if err != nil {
		return err
	}
	if version != chipVersion {
		return fmt.Errorf("%w: 0x%02X (want 0x%02X)", ErrVersion, version, chipVersion)
	}

	steps := []func() error{
		func() error { return d.setMode(modeSleep) },
		func() error { return d.setFrequency(d.config.Frequency) },
		func() error { return d.writeReg(regFifoTxBaseAddr, 0) },
		func() error { return d.writeReg(regFifoRxBaseAddr, 0) },
		func() error { return d.updateReg(regLna, 0xFF, lnaBoostHF) },
		func() error { return d.writeReg(regModemConfig3, agcAutoOn) },
		func() error { return d.setTxPower(d.config.TxPower) },
		func() error { return d.setSpreadingFactor(d.config.SpreadingFactor) },
		func() error { return d.setBandwidth(d.config.Bandwidth) },
		func() error { return d.setCodingRate(d.config.CodingRate) },
		func() error { return d.writeReg(regSyncWord, d.config.SyncWord) },
		func() error { return d.setPreambleLength(d.config.PreambleLength) },
		func() error { return d.setMode(modeStandby) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("failed to configure modem: %w", err)
		}
	}

	d.logger.WithFields(logrus.Fields{
		"frequency":        d.config.Frequency,
		"spreading_factor": d.config.SpreadingFactor,
		"bandwidth":        d.config.Bandwidth,
		"coding_rate":      fmt.Sprintf("4/%d", d.config.CodingRate),
		"tx_power":         d.config.TxPower,
	}).Info("SX127x modem configured successfully")

	return nil
}

// pulseReset holds NRESET low for 10 ms, then waits for the chip to boot
func (d *Device) pulseReset() error {
	if err := d.reset.Out(gpio.Low); err != nil {
		return err
	}
	d.sleep(10 * time.Millisecond)
	if err := d.reset.Out(gpio.High); err != nil {
		return err
	}
	d.sleep(10 * time.Millisecond)
	return nil
}

// Send transmits data and blocks until the modem reports TX done.
// The modem is left in standby.
func (d *Device) Send(ctx context.Context, data []byte) error {
	if len(data) > maxFifoPayload {
		return fmt.Errorf("%w: %d bytes", radio.ErrTooLong, len(data))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	steps := []func() error{
		func() error { return d.setMode(modeStandby) },
		func() error { return d.updateReg(regModemConfig1, implicitHeaderBit, 0) },
		func() error { return d.writeReg(regFifoAddrPtr, 0) },
		func() error { return d.writeFifo(data) },
		func() error { return d.writeReg(regPayloadLength, byte(len(data))) },
		func() error { return d.setMode(modeTx) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("failed to start transmission: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.TxTimeout)
	defer cancel()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		flags, err := d.readReg(regIrqFlags)
		if err != nil {
			return err
		}
		if flags&irqTxDone != 0 {
			return d.writeReg(regIrqFlags, irqTxDone)
		}

		select {
		case <-ctx.Done():
			_ = d.setMode(modeStandby)
			return fmt.Errorf("transmission did not complete: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Receive switches the modem to continuous receive with an explicit header
func (d *Device) Receive() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.updateReg(regModemConfig1, implicitHeaderBit, 0); err != nil {
		return err
	}
	if err := d.writeReg(regDioMapping1, 0x00); err != nil {
		return err
	}
	return d.setMode(modeRxContinuous)
}

// Poll checks the IRQ flags and reads a packet out of the FIFO when one is ready.
// Packets with a LoRa payload CRC error are dropped. At most MaxPacketSize bytes are read.
func (d *Device) Poll() ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	flags, err := d.readReg(regIrqFlags)
	if err != nil {
		return nil, false, err
	}
	if flags == 0 {
		return nil, false, nil
	}
	if err := d.writeReg(regIrqFlags, flags); err != nil {
		return nil, false, err
	}

	if flags&irqRxDone == 0 {
		return nil, false, nil
	}
	if flags&irqPayloadCRCError != 0 {
		d.logger.Debug("Dropping packet with payload CRC error")
		return nil, false, nil
	}

	n, err := d.readReg(regRxNbBytes)
	if err != nil {
		return nil, false, err
	}
	current, err := d.readReg(regFifoRxCurrentAddr)
	if err != nil {
		return nil, false, err
	}
	if err := d.writeReg(regFifoAddrPtr, current); err != nil {
		return nil, false, err
	}

	length := int(n)
	if length > packet.MaxPacketSize {
		length = packet.MaxPacketSize
	}
	data, err := d.readFifo(length)
	if err != nil {
		return nil, false, err
	}

	d.lastSignal = d.readSignal()
	return data, true, nil
}

// LastSignal returns RSSI and SNR of the last packet returned by Poll
func (d *Device) LastSignal() radio.Signal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSignal
}

// readSignal reads packet RSSI and SNR; failures leave zero values
func (d *Device) readSignal() radio.Signal {
	var s radio.Signal
	if snr, err := d.readReg(regPktSnrValue); err == nil {
		s.SNR = float64(int8(snr)) / 4
	}
	if rssi, err := d.readReg(regPktRssiValue); err == nil {
		offset := 164
		if d.config.Frequency >= hfPortThreshold {
			offset = 157
		}
		s.RSSI = int(rssi) - offset
	}
	return s
}

// Close puts the modem to sleep and releases the SPI port
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.setMode(modeSleep)
	if d.closer != nil {
		if cerr := d.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// setMode writes the operating mode, keeping the modem in LoRa mode
func (d *Device) setMode(mode byte) error {
	return d.writeReg(regOpMode, modeLongRange|mode)
}

// setFrequency programs the carrier frequency in Hz
func (d *Device) setFrequency(freq uint32) error {
	frf := (uint64(freq) << 19) / fxosc
	if err := d.writeReg(regFrfMsb, byte(frf>>16)); err != nil {
		return err
	}
	if err := d.writeReg(regFrfMid, byte(frf>>8)); err != nil {
		return err
	}
	return d.writeReg(regFrfLsb, byte(frf))
}

// setTxPower programs PA_BOOST output power in dBm
func (d *Device) setTxPower(level int) error {
	ocp := 100
	dac := byte(0x84)
	if level > 17 {
		if level > 20 {
			level = 20
		}
		// High power mode adds 3 dB through the PA DAC
		level -= 3
		ocp = 140
		dac = 0x87
	} else if level < 2 {
		level = 2
	}

	if err := d.writeReg(regPaDac, dac); err != nil {
		return err
	}
	if err := d.setOCP(ocp); err != nil {
		return err
	}
	return d.writeReg(regPaConfig, paBoost|byte(level-2))
}

// setOCP programs the over-current protection trim in mA
func (d *Device) setOCP(mA int) error {
	trim := 27
	if mA <= 120 {
		trim = (mA - 45) / 5
	} else if mA <= 240 {
		trim = (mA + 30) / 10
	}
	return d.writeReg(regOcp, 0x20|byte(trim&0x1F))
}

// setSpreadingFactor programs SF6-SF12
func (d *Device) setSpreadingFactor(sf int) error {
	if sf < 6 {
		sf = 6
	} else if sf > 12 {
		sf = 12
	}

	optimize, threshold := byte(0xC3), byte(0x0A)
	if sf == 6 {
		optimize, threshold = 0xC5, 0x0C
	}
	if err := d.writeReg(regDetectionOptimize, optimize); err != nil {
		return err
	}
	if err := d.writeReg(regDetectionThreshold, threshold); err != nil {
		return err
	}
	if err := d.updateReg(regModemConfig2, 0xF0, byte(sf<<4)); err != nil {
		return err
	}
	return d.setLowDataRateOptimize()
}

// setBandwidth programs the closest supported bandwidth at or above bw
func (d *Device) setBandwidth(bw uint32) error {
	code := len(bandwidths) - 1
	for i, b := range bandwidths {
		if bw <= b {
			code = i
			break
		}
	}
	if err := d.updateReg(regModemConfig1, 0xF0, byte(code<<4)); err != nil {
		return err
	}
	return d.setLowDataRateOptimize()
}

// setCodingRate programs coding rate 4/denominator
func (d *Device) setCodingRate(denominator int) error {
	if denominator < 5 {
		denominator = 5
	} else if denominator > 8 {
		denominator = 8
	}
	cr := byte(denominator - 4)
	return d.updateReg(regModemConfig1, 0x0E, cr<<1)
}

// setPreambleLength programs the preamble symbol count
func (d *Device) setPreambleLength(n uint16) error {
	if err := d.writeReg(regPreambleMsb, byte(n>>8)); err != nil {
		return err
	}
	return d.writeReg(regPreambleLsb, byte(n))
}

// setLowDataRateOptimize enables LDRO when a symbol lasts longer than 16 ms
func (d *Device) setLowDataRateOptimize() error {
	sf := d.config.SpreadingFactor
	bw := d.config.Bandwidth
	if bw == 0 {
		return nil
	}
	symbolMillis := float64(uint32(1)<<uint(sf)) * 1000 / float64(bw)

	var bit byte
	if symbolMillis > 16 {
		bit = lowDataRateBit
	}
	return d.updateReg(regModemConfig3, lowDataRateBit, bit)
}

// readReg reads one register
func (d *Device) readReg(addr byte) (byte, error) {
	w := []byte{addr & spiRead, 0}
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("failed to read register 0x%02X: %w", addr, err)
	}
	return r[1], nil
}

// writeReg writes one register
func (d *Device) writeReg(addr, value byte) error {
	w := []byte{addr | spiWrite, value}
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return fmt.Errorf("failed to write register 0x%02X: %w", addr, err)
	}
	return nil
}

// updateReg replaces the bits selected by mask with value
func (d *Device) updateReg(addr, mask, value byte) error {
	cur, err := d.readReg(addr)
	if err != nil {
		return err
	}
	return d.writeReg(addr, (cur&^mask)|(value&mask))
}

// writeFifo bursts data into the FIFO at the current pointer
func (d *Device) writeFifo(data []byte) error {
	w := make([]byte, len(data)+1)
	w[0] = regFifo | spiWrite
	copy(w[1:], data)
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return fmt.Errorf("failed to write FIFO: %w", err)
	}
	return nil
}

// readFifo bursts n bytes out of the FIFO at the current pointer
func (d *Device) readFifo(n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = regFifo & spiRead
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return nil, fmt.Errorf("failed to read FIFO: %w", err)
	}
	return r[1:], nil
}
