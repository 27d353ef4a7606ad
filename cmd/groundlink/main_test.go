package main

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundlink/internal/app"
	"groundlink/internal/config"
	"groundlink/internal/packet"
)

// execute runs the root command with args and returns its output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// TestVersion tests the --version flag
func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "groundlink LoRa Ground Station")
	assert.Contains(t, out, "Version: ")
}

// TestRootInvalidConfig tests that bad flags fail before any radio is opened
func TestRootInvalidConfig(t *testing.T) {
	_, err := execute(t, "--team", "16")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = execute(t, "--config", "/nonexistent/groundlink.yaml")
	assert.Error(t, err)
}

// TestRootFlagDefaults tests that flag defaults agree with the config defaults
// they override, so --help shows what an unflagged run does
func TestRootFlagDefaults(t *testing.T) {
	cfg := config.Default()
	flags := newRootCmd().Flags()

	tests := []struct {
		flag     string
		expected string
	}{
		{app.FlagUTC, strconv.FormatBool(cfg.Logging.RotateUTC)},
		{app.FlagTeam, strconv.Itoa(cfg.Station.TeamID)},
		{app.FlagRadio, cfg.Radio.Driver},
		{app.FlagUDPListen, cfg.Radio.UDPListen},
		{app.FlagUDPRemote, cfg.Radio.UDPRemote},
		{app.FlagLogDir, cfg.Logging.Dir},
		{app.FlagMetrics, strconv.FormatBool(cfg.Metrics.Enabled)},
		{app.FlagMQTT, strconv.FormatBool(cfg.MQTT.Enabled)},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			f := flags.Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.expected, f.DefValue)
		})
	}
}

// TestEncodeCommand tests the command encoder output
func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"telemetry request", []string{"--tel", "--team", "3"}, "00 23"},
		{"scientific request", []string{"--sci", "--team", "3"}, "00 13"},
		{"both", []string{"--tel", "--sci", "--team", "3"}, "00 33"},
		{"no flags", []string{"--team", "15"}, "00 0F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"encode", "command"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected+"\n", out)
		})
	}
}

// TestEncodeCommand_BadTeam tests team range checking
func TestEncodeCommand_BadTeam(t *testing.T) {
	_, err := execute(t, "encode", "command", "--team", "16")
	assert.ErrorContains(t, err, "team must be between 0 and 15")

	_, err = execute(t, "encode", "telemetry", "--team", "-1")
	assert.ErrorContains(t, err, "team must be between 0 and 15")
}

// TestEncodeDecodeTelemetry tests that encoded telemetry decodes back for the same team
func TestEncodeDecodeTelemetry(t *testing.T) {
	out, err := execute(t, "encode", "telemetry",
		"--team", "3", "--lat", "45.12345", "--lon", "-73.5", "--alt", "100", "--vvel", "-1", "--ts", "256")
	require.NoError(t, err)

	wire := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(wire, "A3 "))
	assert.Len(t, strings.Fields(wire), packet.TelemetrySize)

	out, err = execute(t, "decode", "--team", "3", wire)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "telemetry\n"))
	assert.Contains(t, out, `"latitude": 45.12345`)
	assert.Contains(t, out, `"longitude": -73.5`)
	assert.Contains(t, out, `"altitude_m": 100`)
	assert.Contains(t, out, `"timestamp": 256`)

	_, err = execute(t, "decode", "--team", "4", wire)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry rejected (wrong_team)")
}

// TestDecode tests decoding of the remaining packet families
func TestDecode(t *testing.T) {
	sci := make([]byte, packet.MinScientificSize)
	sci[0] = packet.IDScientificBase | 0x02
	packet.PutUint32(sci[1:], 1000)
	sci[5] = 0x00
	sci[len(sci)-1] = packet.Checksum(sci[:len(sci)-1])

	corrupt := append([]byte(nil), sci...)
	corrupt[1] ^= 0xFF

	tests := []struct {
		name     string
		args     []string
		contains string
		errMsg   string
	}{
		{
			name:     "command",
			args:     []string{"00 21"},
			contains: `"TEL=1 SCI=0 Team=0x1"`,
		},
		{
			name:     "scientific",
			args:     []string{"--team", "2", packet.HexPrefix(sci, len(sci))},
			contains: `"timestamp": 1000`,
		},
		{
			name:     "contiguous hex with prefix",
			args:     []string{"0x0010"},
			contains: `"TEL=0 SCI=1 Team=0x0"`,
		},
		{
			name:   "checksum mismatch",
			args:   []string{"--team", "2", packet.HexPrefix(corrupt, len(corrupt))},
			errMsg: "scientific rejected (checksum_mismatch)",
		},
		{
			name:   "too short",
			args:   []string{"--team", "2", "12 00 00"},
			errMsg: "scientific rejected (too_short)",
		},
		{
			name:   "unknown type",
			args:   []string{"FF 01 02"},
			errMsg: "unknown packet type: FF 01 02",
		},
		{
			name:   "bad hex",
			args:   []string{"zz"},
			errMsg: "failed to parse hex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"decode"}, tt.args...)...)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.contains)
		})
	}
}

// TestParseHex tests separator handling
func TestParseHex(t *testing.T) {
	tests := []struct {
		input    string
		expected []byte
	}{
		{"A3 07", []byte{0xA3, 0x07}},
		{"a3:07", []byte{0xA3, 0x07}},
		{"0xA307", []byte{0xA3, 0x07}},
		{"A3\t07", []byte{0xA3, 0x07}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			data, err := parseHex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, data)
		})
	}

	_, err := parseHex("A")
	assert.Error(t, err)
}
