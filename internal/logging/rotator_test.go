package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundlink/internal/config"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// TestNewRotator tests directory and file creation
func TestNewRotator(t *testing.T) {
	tests := []struct {
		name   string
		subdir string
		useUTC bool
	}{
		{"flat directory", "logs", false},
		{"utc dates", "logs_utc", true},
		{"nested directory", "nested/station/logs", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), tt.subdir)

			rotator, err := NewRotator(dir, tt.useUTC, 0, quietLogger())
			require.NoError(t, err)
			defer rotator.Close()

			assert.DirExists(t, dir)

			current := rotator.CurrentFile()
			assert.FileExists(t, current)
			assert.Contains(t, filepath.Base(current), filePrefix)

			if tt.useUTC {
				assert.Contains(t, current, time.Now().UTC().Format("2006-01-02"))
			}
		})
	}
}

// TestRotator_Write tests that writes land in the current file
func TestRotator_Write(t *testing.T) {
	rotator, err := NewRotator(t.TempDir(), false, 0, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	line := "TEL=1 SCI=0 Team=0x3\n"
	n, err := rotator.Write([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, len(line), n)

	content, err := os.ReadFile(rotator.CurrentFile())
	require.NoError(t, err)
	assert.Equal(t, line, string(content))
}

// TestRotator_DateChange tests rotation and compression when the day rolls over
func TestRotator_DateChange(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewRotator(dir, false, 0, quietLogger())
	require.NoError(t, err)

	first := rotator.CurrentFile()
	_, err = rotator.Write([]byte("day one\n"))
	require.NoError(t, err)

	rotator.mu.Lock()
	rotator.now = func() time.Time { return time.Now().AddDate(0, 0, 1) }
	rotator.mu.Unlock()

	_, err = rotator.Write([]byte("day two\n"))
	require.NoError(t, err)

	second := rotator.CurrentFile()
	assert.NotEqual(t, first, second)

	require.NoError(t, rotator.Close())

	assert.NoFileExists(t, first)
	assert.FileExists(t, first+".gz")

	gzFile, err := os.Open(first + ".gz")
	require.NoError(t, err)
	defer gzFile.Close()

	gz, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	defer gz.Close()

	content, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "day one\n", string(content))

	content, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "day two\n", string(content))
}

// TestRotator_RotationFailure tests that a failed rotation keeps writing to the
// current file and rotates once the new path can be opened
func TestRotator_RotationFailure(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewRotator(dir, false, 0, quietLogger())
	require.NoError(t, err)

	first := rotator.CurrentFile()

	rotator.mu.Lock()
	rotator.now = func() time.Time { return time.Now().AddDate(0, 0, 1) }
	next := rotator.pathFor(rotator.today())
	rotator.mu.Unlock()

	// A directory in the way makes the open fail
	require.NoError(t, os.Mkdir(next, 0755))

	_, err = rotator.Write([]byte("while blocked\n"))
	require.NoError(t, err)
	assert.Equal(t, first, rotator.CurrentFile())

	require.NoError(t, os.Remove(next))

	_, err = rotator.Write([]byte("after recovery\n"))
	require.NoError(t, err)
	assert.Equal(t, next, rotator.CurrentFile())

	require.NoError(t, rotator.Close())

	content, err := os.ReadFile(next)
	require.NoError(t, err)
	assert.Equal(t, "after recovery\n", string(content))

	gzFile, err := os.Open(first + ".gz")
	require.NoError(t, err)
	defer gzFile.Close()

	gz, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	defer gz.Close()

	content, err = io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "while blocked\n", string(content))

	_, err = rotator.Write([]byte("closed\n"))
	assert.ErrorIs(t, err, ErrRotatorClosed)
}

// TestRotator_Files tests listing plain and compressed files
func TestRotator_Files(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewRotator(dir, false, 0, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	extra := []string{
		filePrefix + "2024-01-01.log",
		filePrefix + "2024-01-02.log.gz",
	}
	for _, name := range extra {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.log"), []byte("x"), 0644))

	files, err := rotator.Files()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range files {
		names[filepath.Base(f)] = true
	}
	for _, name := range extra {
		assert.True(t, names[name], "expected %s", name)
	}
	assert.False(t, names["other.log"])
	assert.Len(t, files, len(extra)+1)
}

// TestRotator_CleanupOldLogs tests age-based removal
func TestRotator_CleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewRotator(dir, false, 0, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	oldFile := filepath.Join(dir, filePrefix+"2024-01-01.log.gz")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0644))
	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, old, old))

	recentFile := filepath.Join(dir, filePrefix+"2024-12-31.log")
	require.NoError(t, os.WriteFile(recentFile, []byte("recent"), 0644))

	require.NoError(t, rotator.CleanupOldLogs(5))

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, recentFile)
	assert.FileExists(t, rotator.CurrentFile())

	assert.ErrorContains(t, rotator.CleanupOldLogs(0), "maxDays must be positive")
	assert.ErrorContains(t, rotator.CleanupOldLogs(-1), "maxDays must be positive")
}

// TestRotator_Close tests that writes fail after Close
func TestRotator_Close(t *testing.T) {
	rotator, err := NewRotator(t.TempDir(), false, 0, quietLogger())
	require.NoError(t, err)

	require.NoError(t, rotator.Close())
	assert.Empty(t, rotator.CurrentFile())

	_, err = rotator.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrRotatorClosed)

	assert.NoError(t, rotator.Close())
}

// TestRotator_ConcurrentWrites tests that concurrent writers do not interleave lines
func TestRotator_ConcurrentWrites(t *testing.T) {
	rotator, err := NewRotator(t.TempDir(), false, 0, quietLogger())
	require.NoError(t, err)
	defer rotator.Close()

	const writers, ops = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				_, err := fmt.Fprintf(rotator, "writer-%d-op-%d\n", id, j)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	content, err := os.ReadFile(rotator.CurrentFile())
	require.NoError(t, err)
	assert.Contains(t, string(content), "writer-0-op-0\n")
	assert.Contains(t, string(content), fmt.Sprintf("writer-%d-op-%d\n", writers-1, ops-1))
}

// TestNew tests the logger factory
func TestNew(t *testing.T) {
	t.Run("stdout only", func(t *testing.T) {
		var buf syncBuffer
		logger, rotator, err := New(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
		require.NoError(t, err)
		assert.Nil(t, rotator)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

		logger.Debug("probe heard")
		assert.Contains(t, buf.String(), "probe heard")
	})

	t.Run("json with log dir", func(t *testing.T) {
		var buf syncBuffer
		dir := t.TempDir()
		logger, rotator, err := New(config.LoggingConfig{Level: "info", Format: "json", Dir: dir}, &buf)
		require.NoError(t, err)
		require.NotNil(t, rotator)
		defer rotator.Close()

		logger.WithField("team", 3).Info("station started")
		assert.Contains(t, buf.String(), `"team":3`)

		content, err := os.ReadFile(rotator.CurrentFile())
		require.NoError(t, err)
		assert.Contains(t, string(content), "station started")
	})

	t.Run("bad level", func(t *testing.T) {
		_, _, err := New(config.LoggingConfig{Level: "loud", Format: "text"}, io.Discard)
		assert.Error(t, err)
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
