// Package station runs the ground station: it polls the radio, validates
// probe packets into the last-known state and sends operator commands.
package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"groundlink/internal/console"
	"groundlink/internal/metrics"
	"groundlink/internal/packet"
	"groundlink/internal/radio"
)

// DefaultPollInterval is how often the radio is checked for packets
const DefaultPollInterval = 10 * time.Millisecond

// rawDumpLimit bounds the bytes shown for packets that cannot be decoded
const rawDumpLimit = 20

// Publisher forwards accepted records off the station
type Publisher interface {
	PublishTelemetry(rec *packet.TelemetryRecord) error
	PublishScientific(pkt *packet.ScientificPacket) error
}

// Options configures a Station
type Options struct {
	Team         packet.TeamID
	PollInterval time.Duration
	Transport    radio.Transport
	Metrics      *metrics.Metrics
	Publisher    Publisher // optional
	Logger       *logrus.Logger
	Out          io.Writer // operator-facing output
}

// Station owns the radio loop and the last-known probe state
type Station struct {
	team         packet.TeamID
	pollInterval time.Duration
	transport    radio.Transport
	metrics      *metrics.Metrics
	publisher    Publisher
	logger       *logrus.Logger
	out          io.Writer
	state        *State
	now          func() time.Time
}

// New creates a station. Transport, Metrics and Logger are required.
func New(opts Options) *Station {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	return &Station{
		team:         opts.Team,
		pollInterval: opts.PollInterval,
		transport:    opts.Transport,
		metrics:      opts.Metrics,
		publisher:    opts.Publisher,
		logger:       opts.Logger,
		out:          opts.Out,
		state:        NewState(),
		now:          time.Now,
	}
}

// State returns the station's last-known records
func (s *Station) State() *State {
	return s.state
}

// Status returns a snapshot for the status endpoint
func (s *Station) Status() Status {
	return s.state.snapshot(s.team)
}

// Run enters receive mode and services the radio and operator inputs until ctx is done.
// A closed inputs channel stops input handling but not the radio loop.
func (s *Station) Run(ctx context.Context, inputs <-chan console.Input) error {
	if err := s.transport.Receive(); err != nil {
		return fmt.Errorf("failed to enter receive mode: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"team":          fmt.Sprintf("0x%X", uint8(s.team)),
		"poll_interval": s.pollInterval,
	}).Info("Ground station listening")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Ground station loop stopped")
			return nil
		case in, ok := <-inputs:
			if !ok {
				inputs = nil
				continue
			}
			s.HandleInput(ctx, in)
		case <-ticker.C:
			if err := s.drain(); err != nil {
				return err
			}
		}
	}
}

// drain handles every packet the transport has pending
func (s *Station) drain() error {
	for {
		data, ok, err := s.transport.Poll()
		if err != nil {
			if errors.Is(err, radio.ErrClosed) {
				return fmt.Errorf("radio closed: %w", err)
			}
			s.logger.WithError(err).Warn("Radio poll failed")
			return nil
		}
		if !ok {
			return nil
		}
		s.HandlePacket(data)
	}
}

// HandlePacket classifies and decodes one received packet. Rejected packets
// are logged and counted and never touch the last-known state.
func (s *Station) HandlePacket(data []byte) {
	s.metrics.RecordReceived()

	fields := logrus.Fields{"bytes": len(data)}
	if rep, ok := s.transport.(radio.SignalReporter); ok {
		sig := rep.LastSignal()
		s.metrics.RecordSignal(sig.RSSI, sig.SNR)
		fields["rssi"] = sig.RSSI
		fields["snr"] = sig.SNR
	}
	s.logger.WithFields(fields).Debug("Packet received")

	switch kind := packet.Classify(data); kind {
	case packet.KindTelemetry:
		s.handleTelemetry(data)
	case packet.KindScientific:
		s.handleScientific(data)
	default:
		s.metrics.RecordRejected(kind.String(), packet.ReasonWrongType)

		entry := s.logger.WithField("raw", packet.HexPrefix(data, rawDumpLimit))
		if len(data) > 0 {
			entry = entry.WithField("id", fmt.Sprintf("0x%02X", data[0]))
		}
		entry.Warn("Unknown packet type")
	}
}

func (s *Station) handleTelemetry(data []byte) {
	rec, err := packet.DecodeTelemetry(data, s.team)
	if err != nil {
		s.reject(packet.KindTelemetry, data, err)
		return
	}

	s.state.SetTelemetry(*rec, s.now())
	s.metrics.RecordDecoded(packet.KindTelemetry.String())
	s.metrics.SetLastTelemetry(rec.Timestamp)

	s.logger.WithFields(logrus.Fields{
		"lat":       fmt.Sprintf("%.6f", rec.Latitude),
		"lon":       fmt.Sprintf("%.6f", rec.Longitude),
		"alt_m":     fmt.Sprintf("%.1f", rec.Altitude),
		"v_vert":    fmt.Sprintf("%.2f", rec.VerticalVelocity),
		"timestamp": rec.Timestamp,
	}).Info("Telemetry parsed successfully")

	if s.publisher != nil {
		if err := s.publisher.PublishTelemetry(rec); err != nil {
			s.metrics.RecordPublishFailure(packet.KindTelemetry.String())
			s.logger.WithError(err).Warn("Failed to publish telemetry")
		}
	}
}

func (s *Station) handleScientific(data []byte) {
	pkt, err := packet.DecodeScientific(data, s.team)
	if err != nil {
		s.reject(packet.KindScientific, data, err)
		return
	}

	s.state.SetScientific(pkt, s.now())
	s.metrics.RecordDecoded(packet.KindScientific.String())
	s.metrics.SetLastScientific(uint8(pkt.Bitmap))

	s.logger.WithFields(logrus.Fields{
		"size":      pkt.Size(),
		"timestamp": pkt.Timestamp,
		"bitmap":    fmt.Sprintf("0x%02X", uint8(pkt.Bitmap)),
		"flags":     pkt.Bitmap.String(),
	}).Info("Scientific packet received")

	s.logSections(pkt)

	if s.publisher != nil {
		if err := s.publisher.PublishScientific(pkt); err != nil {
			s.metrics.RecordPublishFailure(packet.KindScientific.String())
			s.logger.WithError(err).Warn("Failed to publish scientific packet")
		}
	}
}

// logSections writes the decoded sections at debug level
func (s *Station) logSections(pkt *packet.ScientificPacket) {
	if !s.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}

	if sp := pkt.Secondary; sp != nil {
		s.logger.WithFields(logrus.Fields{
			"uv_mean": fmt.Sprintf("%.2f", sp.UVMean),
			"uv_std":  fmt.Sprintf("%.2f", sp.UVStd),
		}).Debug("Secondary payload")
		for i, b := range sp.Samples {
			s.logger.WithFields(logrus.Fields{
				"sample":   i,
				"pressure": fmt.Sprintf("%.1f", b.Pressure),
				"temp_c":   fmt.Sprintf("%.2f", b.Temperature),
			}).Debug("BMP sample")
		}
	}

	if pkt.Detonation != nil {
		s.logger.WithField("raw", packet.HexPrefix(pkt.Detonation, packet.DetonationSize)).Debug("Detonation event")
	}

	if loc := pkt.Localisation; loc != nil {
		s.logger.WithFields(logrus.Fields{
			"probe_lat": fmt.Sprintf("%.6f", loc.ProbeLatitude),
			"probe_lon": fmt.Sprintf("%.6f", loc.ProbeLongitude),
		}).Debug("Localisation")
		for i, d := range loc.Detonations {
			s.logger.WithFields(logrus.Fields{
				"detonation": i,
				"distance_m": fmt.Sprintf("%.1f", d.Distance),
				"azimuth":    fmt.Sprintf("%.3f", d.Azimuth),
			}).Debug("Detonation fix")
		}
	}

	if pkt.TelemetryTail != nil {
		s.logger.WithField("raw", packet.HexPrefix(pkt.TelemetryTail, packet.TelemetryTailSize)).Debug("Mini telemetry")
	}
}

func (s *Station) reject(kind packet.Kind, data []byte, err error) {
	reason := packet.Reason(err)
	s.metrics.RecordRejected(kind.String(), reason)

	s.logger.WithFields(logrus.Fields{
		"kind":   kind.String(),
		"reason": reason,
		"bytes":  len(data),
	}).WithError(err).Warn("Dropping packet")
}

// SendCommand transmits cmd and always returns the radio to receive mode
func (s *Station) SendCommand(ctx context.Context, cmd packet.Command) error {
	wire := cmd.Encode()

	s.logger.WithField("command", cmd.String()).Info("Sending command")

	err := s.transport.Send(ctx, wire[:])
	s.metrics.RecordCommand(err)
	if err != nil {
		s.logger.WithError(err).Error("Failed to send command")
		err = fmt.Errorf("failed to send command: %w", err)
	} else {
		s.logger.WithField("bytes", len(wire)).Info("Command sent")
	}

	if rerr := s.transport.Receive(); rerr != nil {
		s.logger.WithError(rerr).Error("Failed to return to receive mode")
		if err == nil {
			err = fmt.Errorf("failed to enter receive mode: %w", rerr)
		}
	}

	return err
}

// HandleInput performs one operator action
func (s *Station) HandleInput(ctx context.Context, in console.Input) {
	switch in.Action {
	case console.ActionRequestTelemetry, console.ActionRequestScientific, console.ActionRequestBoth:
		cmd, _ := in.Action.Command(s.team)
		_ = s.SendCommand(ctx, cmd)
	case console.ActionShowTelemetry:
		s.ShowTelemetry()
	case console.ActionHelp:
		s.PrintHelp()
	default:
		fmt.Fprintln(s.out, console.UnknownMessage(in.Key))
	}
}

// ShowTelemetry prints the last telemetry record for the operator
func (s *Station) ShowTelemetry() {
	rec, ok := s.state.Telemetry()
	if !ok {
		fmt.Fprintln(s.out, "No telemetry received yet")
		return
	}

	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Last Telemetry:")
	fmt.Fprintf(s.out, "  Lat: %.6f°\n", rec.Latitude)
	fmt.Fprintf(s.out, "  Lon: %.6f°\n", rec.Longitude)
	fmt.Fprintf(s.out, "  Alt: %.1f m\n", rec.Altitude)
	fmt.Fprintf(s.out, "  V_vert: %.2f m/s\n", rec.VerticalVelocity)
	fmt.Fprintf(s.out, "  Timestamp: %d\n", rec.Timestamp)
	fmt.Fprintln(s.out)
}

// PrintHelp prints the console command list
func (s *Station) PrintHelp() {
	fmt.Fprint(s.out, console.Help)
	fmt.Fprintln(s.out)
}
