package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"groundlink/internal/config"
	"groundlink/internal/packet"
)

const publishTimeout = 5 * time.Second

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("mqtt client stopped")
)

// TelemetryMessage is the JSON body published for each telemetry record
type TelemetryMessage struct {
	Team       packet.TeamID `json:"team"`
	ReceivedAt time.Time     `json:"received_at"`
	*packet.TelemetryRecord
}

// ScientificMessage is the JSON body published for each scientific packet
type ScientificMessage struct {
	Team       packet.TeamID `json:"team"`
	ReceivedAt time.Time     `json:"received_at"`
	Sections   string        `json:"sections"`
	*packet.ScientificPacket
}

// Publisher forwards decoded probe records to an MQTT broker under
// <prefix>/<team>/telemetry and <prefix>/<team>/scientific.
type Publisher struct {
	client mqtt.Client
	prefix string
	team   packet.TeamID
	logger *logrus.Logger
	now    func() time.Time

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher builds a paho client for cfg. Call Connect before publishing.
func NewPublisher(cfg config.MQTTConfig, team packet.TeamID, logger *logrus.Logger) *Publisher {
	p := newPublisher(nil, cfg.TopicPrefix, team, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.WithFields(logrus.Fields{
			"broker": cfg.Broker,
			"port":   cfg.Port,
		}).Info("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.WithError(err).Warn("MQTT connection lost")
	})

	p.client = mqtt.NewClient(opts)
	return p
}

func newPublisher(client mqtt.Client, prefix string, team packet.TeamID, logger *logrus.Logger) *Publisher {
	return &Publisher{
		client: client,
		prefix: prefix,
		team:   team,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Connect waits for the initial broker connection, honouring ctx and Disconnect
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("failed to connect to MQTT broker: %w", err)
			}
			p.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return ErrStopped
		default:
		}
	}
}

// Topic returns the topic for a record kind
func (p *Publisher) Topic(kind string) string {
	return fmt.Sprintf("%s/%d/%s", p.prefix, p.team, kind)
}

// PublishTelemetry publishes a decoded telemetry record
func (p *Publisher) PublishTelemetry(rec *packet.TelemetryRecord) error {
	msg := TelemetryMessage{
		Team:            p.team,
		ReceivedAt:      p.now().UTC(),
		TelemetryRecord: rec,
	}
	return p.publish(packet.KindTelemetry.String(), msg)
}

// PublishScientific publishes a decoded scientific packet
func (p *Publisher) PublishScientific(pkt *packet.ScientificPacket) error {
	msg := ScientificMessage{
		Team:             p.team,
		ReceivedAt:       p.now().UTC(),
		Sections:         pkt.Bitmap.String(),
		ScientificPacket: pkt,
	}
	return p.publish(packet.KindScientific.String(), msg)
}

func (p *Publisher) publish(kind string, v any) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	topic := p.Topic(kind)

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	token := p.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", kind, err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic": topic,
		"bytes": len(data),
	}).Debug("Published record")
	return nil
}

// IsConnected reports whether the broker connection is up
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the client. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("MQTT disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
