package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// TestMetrics_Counters tests each recorder
func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordReceived()
	m.RecordReceived()
	m.RecordDecoded("telemetry")
	m.RecordRejected("telemetry", "checksum_mismatch")
	m.RecordRejected("telemetry", "checksum_mismatch")
	m.RecordRejected("scientific", "too_short")
	m.RecordCommand(nil)
	m.RecordCommand(errors.New("tx timeout"))
	m.SetLastTelemetry(256)
	m.SetLastScientific(0x0F)
	m.RecordSignal(-57, 9.5)
	m.RecordPublishFailure("scientific")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsDecoded.WithLabelValues("telemetry")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsRejected.WithLabelValues("telemetry", "checksum_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsRejected.WithLabelValues("scientific", "too_short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendFailures))
	assert.Equal(t, 256.0, testutil.ToFloat64(m.LastTelemetryTimestamp))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.LastScientificBitmap))
	assert.Equal(t, -57.0, testutil.ToFloat64(m.SignalRSSI))
	assert.Equal(t, 9.5, testutil.ToFloat64(m.SignalSNR))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues("scientific")))
}

// TestNew_SeparateRegistries tests that two instances do not collide
func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

// TestServer tests the HTTP endpoints
func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordReceived()

	status := func() any {
		return map[string]int{"team": 3}
	}

	srv := NewServer("127.0.0.1:0", reg, status, quietLogger())
	require.NoError(t, srv.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	base := "http://" + srv.Addr()

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/metrics", http.StatusOK, "groundlink_packets_received_total 1"},
		{"/health", http.StatusOK, `"status":"ok"`},
		{"/status", http.StatusOK, `"team":3`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(base + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Contains(t, string(body), tt.contains)
		})
	}

	resp, err := http.Post(base+"/health", "text/plain", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// TestServer_NoStatus tests /status without a status source
func TestServer_NoStatus(t *testing.T) {
	srv := NewServer("127.0.0.1:0", prometheus.NewRegistry(), nil, quietLogger())
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
