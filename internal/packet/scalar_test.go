package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestInt24 tests 24-bit sign extension
func TestInt24(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected int32
	}{
		{name: "Most negative", data: []byte{0x80, 0x00, 0x00}, expected: -8388608},
		{name: "Most positive", data: []byte{0x7F, 0xFF, 0xFF}, expected: 8388607},
		{name: "One", data: []byte{0x00, 0x00, 0x01}, expected: 1},
		{name: "Minus one", data: []byte{0xFF, 0xFF, 0xFF}, expected: -1},
		{name: "Zero", data: []byte{0x00, 0x00, 0x00}, expected: 0},
		{name: "Needs more than 16 bits", data: []byte{0xFE, 0xFF, 0xFF}, expected: -65537},
		{name: "Latitude 5 degrees", data: []byte{0x07, 0xA1, 0x20}, expected: 500000},
		{name: "Longitude -5 degrees", data: []byte{0xF8, 0x5E, 0xE0}, expected: -500000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Int24(tt.data))
		})
	}
}

// TestPutInt24 tests the 24-bit encoder against the decoder over the full range
func TestPutInt24(t *testing.T) {
	values := []int32{MinInt24, MinInt24 + 1, -65536, -32769, -1, 0, 1, 32768, 65535, MaxInt24 - 1, MaxInt24}
	for _, v := range values {
		buf := make([]byte, 3)
		PutInt24(buf, v)
		assert.Equal(t, v, Int24(buf), "value %d", v)
	}

	// Out-of-range values clamp
	buf := make([]byte, 3)
	PutInt24(buf, MaxInt24+10)
	assert.Equal(t, []byte{0x7F, 0xFF, 0xFF}, buf)
	PutInt24(buf, MinInt24-10)
	assert.Equal(t, []byte{0x80, 0x00, 0x00}, buf)
}

// TestInt16 tests 16-bit big-endian reads
func TestInt16(t *testing.T) {
	assert.Equal(t, int16(-2), Int16([]byte{0xFF, 0xFE}))
	assert.Equal(t, int16(-32768), Int16([]byte{0x80, 0x00}))
	assert.Equal(t, int16(258), Int16([]byte{0x01, 0x02}))
	assert.Equal(t, uint16(0xFFFE), Uint16([]byte{0xFF, 0xFE}))

	buf := make([]byte, 2)
	PutInt16(buf, -100)
	assert.Equal(t, []byte{0xFF, 0x9C}, buf)
	PutUint16(buf, 1000)
	assert.Equal(t, []byte{0x03, 0xE8}, buf)
}

// TestUint32 tests 32-bit big-endian reads and writes
func TestUint32(t *testing.T) {
	assert.Equal(t, uint32(0x01020304), Uint32([]byte{0x01, 0x02, 0x03, 0x04}))
	assert.Equal(t, uint32(0xFFFFFFFF), Uint32([]byte{0xFF, 0xFF, 0xFF, 0xFF}))

	buf := make([]byte, 4)
	PutUint32(buf, 0xDEADBEEF)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, buf)
}

// TestScaleQuantize tests fixed-point scaling in both directions
func TestScaleQuantize(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		divisor float64
		raw     int64
	}{
		{name: "Latitude", value: 52.22977, divisor: CoordinateScale, raw: 5222977},
		{name: "Negative longitude", value: -0.12755, divisor: CoordinateScale, raw: -12755},
		{name: "Vertical velocity", value: -3.21, divisor: VerticalVelocityScale, raw: -321},
		{name: "Altitude", value: 123.4, divisor: AltitudeScale, raw: 1234},
		{name: "Azimuth", value: 271.5, divisor: AzimuthScale, raw: 271500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.raw, Quantize(tt.value, tt.divisor))
			assert.InDelta(t, tt.value, Scale(tt.raw, tt.divisor), 1e-9)
		})
	}
}

// TestQuantizeSaturates tests the saturating helpers used by the encoders
func TestQuantizeSaturates(t *testing.T) {
	assert.Equal(t, int16(32767), quantizeInt16(1e6, 1))
	assert.Equal(t, int16(-32768), quantizeInt16(-1e6, 1))
	assert.Equal(t, uint16(0), quantizeUint16(-5, 10))
	assert.Equal(t, uint16(65535), quantizeUint16(1e9, 10))
	assert.Equal(t, int32(MaxInt24), quantizeInt24(200, CoordinateScale))
	assert.Equal(t, int32(MinInt24), quantizeInt24(-200, CoordinateScale))
}
