// Package logging builds the station's logrus logger and its daily log files.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"groundlink/internal/config"
)

// New builds a logger writing to out and, when cfg.Dir is set, to a daily
// rotating file as well. The returned Rotator is nil without a log directory.
func New(cfg config.LoggingConfig, out io.Writer) (*logrus.Logger, *Rotator, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(formatter(cfg.Format))
	logger.SetOutput(out)

	if cfg.Dir == "" {
		return logger, nil, nil
	}

	// Rotation diagnostics go to stderr only; logging them through the
	// rotator would re-enter its lock.
	diag := logrus.New()
	diag.SetLevel(level)
	diag.SetFormatter(formatter(cfg.Format))
	diag.SetOutput(os.Stderr)

	rotator, err := NewRotator(cfg.Dir, cfg.RotateUTC, cfg.MaxDays, diag)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize log rotator: %w", err)
	}
	logger.SetOutput(io.MultiWriter(out, rotator))

	return logger, rotator, nil
}

func formatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}
