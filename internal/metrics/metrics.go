package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the ground station
type Metrics struct {
	// Radio metrics
	PacketsReceived prometheus.Counter
	PacketsDecoded  *prometheus.CounterVec
	PacketsRejected *prometheus.CounterVec
	SignalRSSI      prometheus.Gauge
	SignalSNR       prometheus.Gauge

	// Uplink metrics
	CommandsSent prometheus.Counter
	SendFailures prometheus.Counter

	// Probe state
	LastTelemetryTimestamp prometheus.Gauge
	LastScientificBitmap   prometheus.Gauge

	// Publishing metrics
	PublishFailures *prometheus.CounterVec
}

// New creates the metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "groundlink_packets_received_total",
			Help: "Total number of radio packets received",
		}),
		PacketsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groundlink_packets_decoded_total",
			Help: "Total number of packets accepted, by kind",
		}, []string{"kind"}),
		PacketsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groundlink_packets_rejected_total",
			Help: "Total number of packets dropped, by kind and reason",
		}, []string{"kind", "reason"}),
		SignalRSSI: factory.NewGauge(prometheus.GaugeOpts{
			Name: "groundlink_signal_rssi_dbm",
			Help: "RSSI of the last received packet",
		}),
		SignalSNR: factory.NewGauge(prometheus.GaugeOpts{
			Name: "groundlink_signal_snr_db",
			Help: "SNR of the last received packet",
		}),
		CommandsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "groundlink_commands_sent_total",
			Help: "Total number of commands transmitted to the probe",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "groundlink_send_failures_total",
			Help: "Total number of commands the radio failed to transmit",
		}),
		LastTelemetryTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "groundlink_last_telemetry_timestamp",
			Help: "Probe clock value carried by the last accepted telemetry packet",
		}),
		LastScientificBitmap: factory.NewGauge(prometheus.GaugeOpts{
			Name: "groundlink_last_scientific_bitmap",
			Help: "Presence bitmap of the last accepted scientific packet",
		}),
		PublishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groundlink_publish_failures_total",
			Help: "Total number of records that could not be published, by kind",
		}, []string{"kind"}),
	}
}

// RecordReceived increments the packets received counter
func (m *Metrics) RecordReceived() {
	m.PacketsReceived.Inc()
}

// RecordDecoded increments the decoded counter for kind
func (m *Metrics) RecordDecoded(kind string) {
	m.PacketsDecoded.WithLabelValues(kind).Inc()
}

// RecordRejected increments the rejection counter for kind and reason
func (m *Metrics) RecordRejected(kind, reason string) {
	m.PacketsRejected.WithLabelValues(kind, reason).Inc()
}

// RecordSignal sets the link quality gauges
func (m *Metrics) RecordSignal(rssi int, snr float64) {
	m.SignalRSSI.Set(float64(rssi))
	m.SignalSNR.Set(snr)
}

// RecordCommand counts a transmit attempt
func (m *Metrics) RecordCommand(err error) {
	if err != nil {
		m.SendFailures.Inc()
		return
	}
	m.CommandsSent.Inc()
}

// SetLastTelemetry records the probe timestamp of the last telemetry record
func (m *Metrics) SetLastTelemetry(timestamp uint32) {
	m.LastTelemetryTimestamp.Set(float64(timestamp))
}

// SetLastScientific records the bitmap of the last scientific packet
func (m *Metrics) SetLastScientific(bitmap uint8) {
	m.LastScientificBitmap.Set(float64(bitmap))
}

// RecordPublishFailure increments the publish failure counter for kind
func (m *Metrics) RecordPublishFailure(kind string) {
	m.PublishFailures.WithLabelValues(kind).Inc()
}
