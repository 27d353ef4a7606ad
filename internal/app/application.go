package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"groundlink/internal/config"
	"groundlink/internal/console"
	"groundlink/internal/logging"
	"groundlink/internal/metrics"
	"groundlink/internal/mqtt"
	"groundlink/internal/packet"
	"groundlink/internal/radio"
	"groundlink/internal/radio/sx127x"
	"groundlink/internal/station"
)

const shutdownTimeout = 5 * time.Second

// TransportFactory opens the radio described by cfg
type TransportFactory func(cfg config.RadioConfig, logger *logrus.Logger) (radio.Transport, error)

// Streams are the operator-facing input and outputs
type Streams struct {
	In  io.Reader // console keystrokes
	Out io.Writer // banner, help and telemetry display
	Log io.Writer // log output
}

// Application represents the ground station process
type Application struct {
	config  *config.Config
	streams Streams
	logger  *logrus.Logger
	team    packet.TeamID

	rotator       *logging.Rotator
	transport     radio.Transport
	station       *station.Station
	registry      *prometheus.Registry
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	publisher     *mqtt.Publisher

	openTransport TransportFactory

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication creates an application for cfg
func NewApplication(cfg *config.Config, streams Streams) (*Application, error) {
	if streams.In == nil {
		streams.In = os.Stdin
	}
	if streams.Out == nil {
		streams.Out = os.Stdout
	}
	if streams.Log == nil {
		streams.Log = os.Stderr
	}

	logger, rotator, err := logging.New(cfg.Logging, streams.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Application{
		config:        cfg,
		streams:       streams,
		logger:        logger,
		team:          packet.TeamID(cfg.Station.TeamID),
		rotator:       rotator,
		openTransport: OpenTransport,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// OpenTransport opens the configured radio driver
func OpenTransport(cfg config.RadioConfig, logger *logrus.Logger) (radio.Transport, error) {
	switch cfg.Driver {
	case config.DriverUDP:
		return radio.NewUDP(cfg.UDPListen, cfg.UDPRemote, logger)
	case config.DriverSX127x:
		return sx127x.Open(cfg.SPIPort, cfg.ResetPin, cfg.SPISpeedHz, sx127x.Config{
			Frequency:       cfg.Frequency,
			TxPower:         cfg.TxPower,
			SpreadingFactor: cfg.SpreadingFactor,
			CodingRate:      cfg.CodingRate,
			Bandwidth:       cfg.Bandwidth,
			SyncWord:        byte(cfg.SyncWord),
			PreambleLength:  sx127x.DefaultPreambleLength,
			TxTimeout:       sx127x.DefaultTxTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown radio driver %q", cfg.Driver)
	}
}

// Start runs the station until SIGINT or SIGTERM
func (app *Application) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			app.logger.Info("Received shutdown signal")
			app.cancel()
		case <-app.ctx.Done():
		}
	}()

	return app.Run()
}

// Run initializes every component and blocks until the application is stopped
func (app *Application) Run() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting groundlink")

	app.printBanner()

	if err := app.initializeComponents(); err != nil {
		app.cancel()
		app.closeResources()
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	errCh := app.run()

	var runErr error
	select {
	case <-app.ctx.Done():
	case runErr = <-errCh:
		app.logger.WithError(runErr).Error("Ground station stopped")
	}

	app.shutdown()
	return runErr
}

// Stop requests shutdown
func (app *Application) Stop() {
	app.cancel()
}

// Station returns the running station, nil before Run
func (app *Application) Station() *station.Station {
	return app.station
}

// printBanner writes the startup banner
func (app *Application) printBanner() {
	out := app.streams.Out
	fmt.Fprintln(out, "======================================")
	fmt.Fprintln(out, "   LoRa Ground Station")
	fmt.Fprintln(out, "======================================")
	fmt.Fprintf(out, "Team ID: 0x%X\n", uint8(app.team))
	fmt.Fprintln(out)
}

// printReady writes the radio parameters and the help text once the radio is up
func (app *Application) printReady() {
	out := app.streams.Out
	r := app.config.Radio

	fmt.Fprintln(out, "LoRa ready and listening...")
	if r.Driver == config.DriverSX127x {
		fmt.Fprintf(out, "Freq: %.2f MHz, SF: %d, BW: %.0f kHz, CR: 4/%d, Power: %d dBm\n",
			float64(r.Frequency)/1e6, r.SpreadingFactor, float64(r.Bandwidth)/1e3, r.CodingRate, r.TxPower)
	} else {
		fmt.Fprintf(out, "UDP bridge: listen %s, remote %q\n", r.UDPListen, r.UDPRemote)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Ground Station Ready!")
	fmt.Fprint(out, console.Help)
	fmt.Fprintln(out)
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	var err error

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	app.logger.WithField("driver", app.config.Radio.Driver).Info("Initializing radio")
	app.transport, err = app.openTransport(app.config.Radio, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize radio: %w", err)
	}

	opts := station.Options{
		Team:         app.team,
		PollInterval: app.config.Station.PollInterval,
		Transport:    app.transport,
		Metrics:      app.metrics,
		Logger:       app.logger,
		Out:          app.streams.Out,
	}

	if app.config.MQTT.Enabled {
		app.publisher = mqtt.NewPublisher(app.config.MQTT, app.team, app.logger)
		opts.Publisher = app.publisher
	}

	app.station = station.New(opts)

	if app.config.Metrics.Enabled {
		app.metricsServer = metrics.NewServer(app.config.Metrics.Address, app.registry, func() any {
			return app.station.Status()
		}, app.logger)
		if err := app.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	app.printReady()
	return nil
}

// run starts the background goroutines. The returned channel carries a station loop failure.
func (app *Application) run() <-chan error {
	errCh := make(chan error, 1)
	inputs := make(chan console.Input, 16)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.station.Run(app.ctx, inputs); err != nil {
			errCh <- err
		}
	}()

	// Not tracked by wg: a blocked stdin read cannot be interrupted.
	go func() {
		defer close(inputs)
		if err := console.Read(app.ctx, app.streams.In, inputs); err != nil && app.ctx.Err() == nil {
			app.logger.WithError(err).Warn("Console input stopped")
		}
	}()

	if app.rotator != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.rotator.Run(app.ctx)
		}()
	}

	if app.publisher != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.publisher.Connect(app.ctx); err != nil && app.ctx.Err() == nil {
				app.logger.WithError(err).Error("MQTT connection failed")
			}
		}()
	}

	app.logger.Info("All components started successfully")
	return errCh
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Shutting down application")
	app.cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info("All goroutines finished")
	case <-time.After(shutdownTimeout):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	app.closeResources()
	app.logger.Info("Shutdown completed")
}

// closeResources releases whatever initializeComponents managed to open
func (app *Application) closeResources() {
	if app.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.metricsServer.Stop(ctx); err != nil {
			app.logger.WithError(err).Warn("Failed to stop metrics server")
		}
		cancel()
	}
	if app.publisher != nil {
		app.publisher.Disconnect()
	}
	if app.transport != nil {
		if err := app.transport.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close radio")
		}
	}
	if app.rotator != nil {
		// Stop writing into the rotator before closing it
		app.logger.SetOutput(app.streams.Log)
		app.rotator.Close()
	}
}
