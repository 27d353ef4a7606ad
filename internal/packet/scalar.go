package packet

import (
	"encoding/binary"
	"math"
)

// 24-bit signed range
const (
	MinInt24 = -1 << 23
	MaxInt24 = 1<<23 - 1
)

// Uint16 reads a big-endian unsigned 16-bit value
func Uint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

// Int16 reads a big-endian signed 16-bit value
func Int16(b []byte) int16 {
	return int16(binary.BigEndian.Uint16(b))
}

// Int24 reads a big-endian signed 24-bit value and sign-extends it to 32 bits
func Int24(b []byte) int32 {
	_ = b[2]
	v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	if v&0x00800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

// Uint32 reads a big-endian unsigned 32-bit value
func Uint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// PutUint16 writes v as big-endian into b[0:2]
func PutUint16(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}

// PutInt16 writes v as big-endian two's complement into b[0:2]
func PutInt16(b []byte, v int16) {
	binary.BigEndian.PutUint16(b, uint16(v))
}

// PutInt24 writes the low 24 bits of v as big-endian into b[0:3].
// Values outside [MinInt24, MaxInt24] are clamped.
func PutInt24(b []byte, v int32) {
	_ = b[2]
	if v < MinInt24 {
		v = MinInt24
	} else if v > MaxInt24 {
		v = MaxInt24
	}
	u := uint32(v)
	b[0] = byte(u >> 16)
	b[1] = byte(u >> 8)
	b[2] = byte(u)
}

// PutUint32 writes v as big-endian into b[0:4]
func PutUint32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

// Scale converts a raw fixed-point wire value into a physical value
func Scale(raw int64, divisor float64) float64 {
	return float64(raw) / divisor
}

// Quantize converts a physical value into its fixed-point wire value, rounding to nearest
func Quantize(v, divisor float64) int64 {
	return int64(math.Round(v * divisor))
}

// quantizeInt16 quantizes v and saturates to the int16 range
func quantizeInt16(v, divisor float64) int16 {
	q := Quantize(v, divisor)
	if q < math.MinInt16 {
		return math.MinInt16
	}
	if q > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(q)
}

// quantizeUint16 quantizes v and saturates to the uint16 range
func quantizeUint16(v, divisor float64) uint16 {
	q := Quantize(v, divisor)
	if q < 0 {
		return 0
	}
	if q > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(q)
}

// quantizeInt24 quantizes v and saturates to the 24-bit signed range
func quantizeInt24(v, divisor float64) int32 {
	q := Quantize(v, divisor)
	if q < MinInt24 {
		return MinInt24
	}
	if q > MaxInt24 {
		return MaxInt24
	}
	return int32(q)
}
