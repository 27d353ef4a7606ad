package sx127x

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSPISpeed is the SPI clock used when none is configured
const DefaultSPISpeed = 8000000

// Open initializes the host drivers, opens the SPI port and reset pin by name
// and brings the modem up. An empty spiPort selects the first available port;
// an empty resetPin skips the hardware reset.
func Open(spiPort, resetPin string, speedHz int64, config Config, logger *logrus.Logger) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", spiPort, err)
	}

	if speedHz <= 0 {
		speedHz = DefaultSPISpeed
	}
	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure SPI port: %w", err)
	}

	var reset ResetPin
	if resetPin != "" {
		pin := gpioreg.ByName(resetPin)
		if pin == nil {
			port.Close()
			return nil, fmt.Errorf("reset pin %q not found", resetPin)
		}
		reset = pin
	}

	dev := New(conn, reset, config, logger)
	dev.closer = port

	if err := dev.Init(); err != nil {
		port.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"spi":   port.String(),
		"reset": resetPin,
		"speed": speedHz,
	}).Info("SX127x modem opened")

	return dev, nil
}
