package app

import (
	"fmt"

	"groundlink/internal/config"
)

// Config holds command-line settings. Flags the user set explicitly
// override the matching values from the config file.
type Config struct {
	ConfigFile  string
	TeamID      int
	Driver      string
	UDPListen   string
	UDPRemote   string
	LogDir      string
	LogUTC      bool
	Metrics     bool
	MQTT        bool
	Verbose     bool
	ShowVersion bool
}

// Flag names shared with the command line
const (
	FlagConfig    = "config"
	FlagTeam      = "team"
	FlagRadio     = "radio"
	FlagUDPListen = "udp-listen"
	FlagUDPRemote = "udp-remote"
	FlagLogDir    = "log-dir"
	FlagUTC       = "utc"
	FlagMetrics   = "metrics"
	FlagMQTT      = "mqtt"
	FlagVerbose   = "verbose"
)

// Resolve loads the config file and applies every flag for which changed returns true
func (c Config) Resolve(changed func(flag string) bool) (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}

	if changed(FlagTeam) {
		cfg.Station.TeamID = c.TeamID
	}
	if changed(FlagRadio) {
		cfg.Radio.Driver = c.Driver
	}
	if changed(FlagUDPListen) {
		cfg.Radio.UDPListen = c.UDPListen
	}
	if changed(FlagUDPRemote) {
		cfg.Radio.UDPRemote = c.UDPRemote
	}
	if changed(FlagLogDir) {
		cfg.Logging.Dir = c.LogDir
	}
	if changed(FlagUTC) {
		cfg.Logging.RotateUTC = c.LogUTC
	}
	if changed(FlagMetrics) {
		cfg.Metrics.Enabled = c.Metrics
	}
	if changed(FlagMQTT) {
		cfg.MQTT.Enabled = c.MQTT
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
