package logging

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// filePrefix names every log file the rotator owns
const filePrefix = "groundlink_"

// ErrRotatorClosed is returned by Write after Close
var ErrRotatorClosed = errors.New("log rotator closed")

// Rotator is an io.Writer over a daily log file. When the date changes the
// previous file is gzipped and files older than maxDays are removed.
type Rotator struct {
	dir     string
	useUTC  bool
	maxDays int
	logger  *logrus.Logger // must not write back into this rotator
	now     func() time.Time

	mu     sync.Mutex
	file   *os.File
	date   string
	closed bool

	compress sync.WaitGroup
}

// NewRotator creates dir if needed and opens today's log file.
// maxDays <= 0 disables cleanup.
func NewRotator(dir string, useUTC bool, maxDays int, logger *logrus.Logger) (*Rotator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	r := &Rotator{
		dir:     dir,
		useUTC:  useUTC,
		maxDays: maxDays,
		logger:  logger,
		now:     time.Now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotate(r.today()); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}

	return r, nil
}

// Run checks for a date change every minute so quiet days still rotate
func (r *Rotator) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if !r.closed {
				r.checkRotation()
			}
			r.mu.Unlock()
		}
	}
}

// Write appends p to the current day's file
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRotatorClosed
	}
	r.checkRotation()
	return r.file.Write(p)
}

func (r *Rotator) today() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format("2006-01-02")
}

// checkRotation rotates when the date has changed. A failed rotation keeps
// the current file and is retried on the next call. Caller holds mu.
func (r *Rotator) checkRotation() {
	date := r.today()
	if date == r.date {
		return
	}

	r.logger.WithFields(logrus.Fields{
		"old_date": r.date,
		"new_date": date,
	}).Info("Rotating log file")

	if err := r.rotate(date); err != nil {
		r.logger.WithError(err).Error("Failed to rotate log file")
		return
	}

	if r.maxDays > 0 {
		if err := r.cleanup(r.maxDays); err != nil {
			r.logger.WithError(err).Warn("Failed to clean up old log files")
		}
	}
}

// rotate opens the file for date, then closes the current file and schedules its
// compression. If the open fails the current file stays in place. Caller holds mu.
func (r *Rotator) rotate(date string) error {
	path := r.pathFor(date)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close old log file")
		}

		if r.date != date {
			old := r.date
			r.compress.Add(1)
			go func() {
				defer r.compress.Done()
				r.compressFile(old)
			}()
		}
	}

	r.file = file
	r.date = date
	r.logger.WithField("file", path).Debug("Opened log file")

	return nil
}

func (r *Rotator) pathFor(date string) string {
	return filepath.Join(r.dir, filePrefix+date+".log")
}

// compressFile gzips the log file for date and removes the original
func (r *Rotator) compressFile(date string) {
	logFile := r.pathFor(date)
	gzipFile := logFile + ".gz"

	if err := gzipTo(logFile, gzipFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.WithError(err).WithField("file", logFile).Error("Failed to compress log file")
		}
		return
	}

	if err := os.Remove(logFile); err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("Failed to remove original log file")
		return
	}

	r.logger.WithField("file", gzipFile).Info("Log file compressed successfully")
}

func gzipTo(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(src)
	gz.ModTime = time.Now()

	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CurrentFile returns the path being written, or "" after Close
func (r *Rotator) CurrentFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ""
	}
	return r.pathFor(r.date)
}

// Files lists every log file in the directory, compressed ones included
func (r *Rotator) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, filePrefix+"*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// CleanupOldLogs removes log files not modified in the last maxDays days
func (r *Rotator) CleanupOldLogs(maxDays int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanup(maxDays)
}

// cleanup does the work of CleanupOldLogs. Caller holds mu.
func (r *Rotator) cleanup(maxDays int) error {
	if maxDays <= 0 {
		return fmt.Errorf("maxDays must be positive")
	}

	files, err := r.Files()
	if err != nil {
		return err
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.pathFor(r.date)

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat log file")
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				r.logger.WithError(err).WithField("file", file).Error("Failed to remove old log file")
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		r.logger.WithField("count", removed).Info("Cleaned up old log files")
	}
	return nil
}

// Close closes the current file and waits for pending compression
func (r *Rotator) Close() error {
	r.mu.Lock()
	var err error
	if !r.closed {
		err = r.file.Close()
		r.file = nil
		r.closed = true
	}
	r.mu.Unlock()

	r.compress.Wait()
	return err
}
