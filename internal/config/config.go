package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Radio drivers
const (
	DriverSX127x = "sx127x"
	DriverUDP    = "udp"
)

// Config represents the complete ground station configuration
type Config struct {
	Station StationConfig `yaml:"station"`
	Radio   RadioConfig   `yaml:"radio"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// StationConfig contains the link identity and loop timing
type StationConfig struct {
	TeamID       int           `yaml:"team_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// RadioConfig contains modem and transport parameters
type RadioConfig struct {
	Driver          string `yaml:"driver"`
	Frequency       uint32 `yaml:"frequency"` // Hz
	TxPower         int    `yaml:"tx_power"`  // dBm
	SpreadingFactor int    `yaml:"spreading_factor"`
	CodingRate      int    `yaml:"coding_rate"` // denominator of 4/x
	Bandwidth       uint32 `yaml:"bandwidth"`   // Hz
	SyncWord        int    `yaml:"sync_word"`
	SPIPort         string `yaml:"spi_port"`
	ResetPin        string `yaml:"reset_pin"`
	SPISpeedHz      int64  `yaml:"spi_speed_hz"`
	UDPListen       string `yaml:"udp_listen"`
	UDPRemote       string `yaml:"udp_remote"`
}

// MQTTConfig contains broker connection parameters
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// MetricsConfig contains the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Dir       string `yaml:"dir"`
	RotateUTC bool   `yaml:"rotate_utc"`
	MaxDays   int    `yaml:"max_days"`
}

// Default returns a configuration that runs without a config file
func Default() *Config {
	return &Config{
		Station: StationConfig{
			TeamID:       0,
			PollInterval: 10 * time.Millisecond,
		},
		Radio: RadioConfig{
			Driver:          DriverSX127x,
			Frequency:       868300000,
			TxPower:         14,
			SpreadingFactor: 8,
			CodingRate:      6,
			Bandwidth:       250000,
			SyncWord:        0x12,
			ResetPin:        "GPIO25",
			SPISpeedHz:      8000000,
			UDPListen:       ":1700",
		},
		MQTT: MQTTConfig{
			Broker:      "localhost",
			Port:        1883,
			ClientID:    "groundlink-" + uuid.NewString(),
			TopicPrefix: "groundlink",
		},
		Metrics: MetricsConfig{
			Address: ":9108",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			RotateUTC: true,
			MaxDays:   30,
		},
	}
}

// Load reads the configuration file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Station.Validate(); err != nil {
		return fmt.Errorf("station config: %w", err)
	}

	if err := c.Radio.Validate(); err != nil {
		return fmt.Errorf("radio config: %w", err)
	}

	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates station configuration
func (s *StationConfig) Validate() error {
	if s.TeamID < 0 || s.TeamID > 15 {
		return fmt.Errorf("team_id must be between 0 and 15, got %d", s.TeamID)
	}

	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", s.PollInterval)
	}

	return nil
}

// Validate validates radio configuration
func (r *RadioConfig) Validate() error {
	switch r.Driver {
	case DriverSX127x:
		if r.Frequency < 137000000 || r.Frequency > 1020000000 {
			return fmt.Errorf("frequency must be between 137 and 1020 MHz, got %d Hz", r.Frequency)
		}

		if r.TxPower < 2 || r.TxPower > 20 {
			return fmt.Errorf("tx_power must be between 2 and 20 dBm, got %d", r.TxPower)
		}

		if r.SpreadingFactor < 6 || r.SpreadingFactor > 12 {
			return fmt.Errorf("spreading_factor must be between 6 and 12, got %d", r.SpreadingFactor)
		}

		if r.CodingRate < 5 || r.CodingRate > 8 {
			return fmt.Errorf("coding_rate must be between 5 and 8, got %d", r.CodingRate)
		}

		if r.Bandwidth < 7800 || r.Bandwidth > 500000 {
			return fmt.Errorf("bandwidth must be between 7800 and 500000 Hz, got %d", r.Bandwidth)
		}

		if r.SyncWord < 0 || r.SyncWord > 0xFF {
			return fmt.Errorf("sync_word must fit in one byte, got 0x%X", r.SyncWord)
		}
	case DriverUDP:
		if r.UDPListen == "" {
			return fmt.Errorf("udp_listen cannot be empty for the udp driver")
		}
	default:
		return fmt.Errorf("driver must be '%s' or '%s', got '%s'", DriverSX127x, DriverUDP, r.Driver)
	}

	return nil
}

// Validate validates MQTT configuration
func (m *MQTTConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Broker == "" {
		return fmt.Errorf("broker cannot be empty when MQTT is enabled")
	}

	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", m.Port)
	}

	if m.ClientID == "" {
		return fmt.Errorf("client_id cannot be empty")
	}

	if m.TopicPrefix == "" {
		return fmt.Errorf("topic_prefix cannot be empty")
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	if l.MaxDays < 0 {
		return fmt.Errorf("max_days cannot be negative, got %d", l.MaxDays)
	}

	return nil
}
