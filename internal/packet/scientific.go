package packet

import (
	"fmt"
)

// Bitmap flags the optional sections present in a scientific packet
type Bitmap uint8

// Bitmap flags
const (
	FlagDetonation    Bitmap = 0x01 // Bit 0
	FlagSecondary     Bitmap = 0x02 // Bit 1
	FlagLocalisation  Bitmap = 0x04 // Bit 2
	FlagTelemetryTail Bitmap = 0x08 // Bit 3
)

// Scientific packet layout
const (
	scientificTSOffset     = 1
	scientificBitmapOffset = 5

	DetonationSize    = 20
	TelemetryTailSize = 10

	MaxBMPSamples    = 4
	MaxDetonationFix = 4

	bmpSampleSize       = 4
	detonationFixSize   = 4
	secondarySampleBase = 4 // samples follow UV mean and UV std
	localisationFixBase = 6 // fixes follow probe lat and lon
)

// Has reports whether flag f is set
func (b Bitmap) Has(f Bitmap) bool {
	return b&f != 0
}

// String renders the flags the way the console log shows them
func (b Bitmap) String() string {
	return fmt.Sprintf("DET=%d, SEC=%d, LOC=%d, TEL=%d",
		b2i(b.Has(FlagDetonation)), b2i(b.Has(FlagSecondary)),
		b2i(b.Has(FlagLocalisation)), b2i(b.Has(FlagTelemetryTail)))
}

// BMPSample is one barometer reading of the secondary payload
type BMPSample struct {
	Pressure    float32 `json:"pressure_pa"`
	Temperature float32 `json:"temperature_c"`
}

// SecondaryPayload is the UV and barometer section
type SecondaryPayload struct {
	UVMean  float32     `json:"uv_mean"`
	UVStd   float32     `json:"uv_std"`
	Samples []BMPSample `json:"samples"`
}

// DetonationFix is a detonation position relative to the probe
type DetonationFix struct {
	Distance float32 `json:"distance_m"`
	Azimuth  float32 `json:"azimuth_deg"`
}

// Localisation is the probe position and the detonations it located
type Localisation struct {
	ProbeLatitude  float64         `json:"probe_latitude"`
	ProbeLongitude float64         `json:"probe_longitude"`
	Detonations    []DetonationFix `json:"detonations"`
}

// ScientificPacket is a validated variable-length scientific packet
type ScientificPacket struct {
	Raw       []byte `json:"raw"`
	Timestamp uint32 `json:"timestamp"`
	Bitmap    Bitmap `json:"bitmap"`

	// Optional sections, nil when absent
	Detonation    []byte            `json:"detonation,omitempty"`
	Secondary     *SecondaryPayload `json:"secondary,omitempty"`
	Localisation  *Localisation     `json:"localisation,omitempty"`
	TelemetryTail []byte            `json:"telemetry_tail,omitempty"`
}

// Size returns the received length of the packet
func (p *ScientificPacket) Size() int {
	return len(p.Raw)
}

// DecodeScientific validates and decodes a scientific packet addressed to team.
// Input longer than MaxScientificSize is truncated first; the checksum is the last byte.
func DecodeScientific(data []byte, team TeamID) (*ScientificPacket, error) {
	if len(data) > MaxScientificSize {
		data = data[:MaxScientificSize]
	}
	n := len(data)
	if err := checkHeader(data, MinScientificSize, IDScientificBase, team, n-1); err != nil {
		return nil, err
	}

	raw := make([]byte, n)
	copy(raw, data)

	pkt := &ScientificPacket{
		Raw:       raw,
		Timestamp: Uint32(raw[scientificTSOffset:]),
		Bitmap:    Bitmap(raw[scientificBitmapOffset]),
	}

	if lo, _, ok := secondarySection.locate(pkt.Bitmap, n); ok {
		pkt.Secondary = decodeSecondary(raw, lo)
	}
	if lo, hi, ok := detonationSection.locate(pkt.Bitmap, n); ok {
		pkt.Detonation = raw[lo:hi:hi]
	}
	if lo, _, ok := localisationSection.locate(pkt.Bitmap, n); ok {
		pkt.Localisation = decodeLocalisation(raw, lo)
	}
	if lo, hi, ok := telemetryTailSection.locate(pkt.Bitmap, n); ok {
		pkt.TelemetryTail = raw[lo:hi:hi]
	}

	return pkt, nil
}

// decodeSecondary reads the secondary payload starting at lo
func decodeSecondary(data []byte, lo int) *SecondaryPayload {
	sp := &SecondaryPayload{
		UVMean: float32(Int16(data[lo:])) / UVScale,
		UVStd:  float32(Int16(data[lo+2:])) / UVScale,
	}

	for i := 0; i < MaxBMPSamples; i++ {
		off := lo + secondarySampleBase + i*bmpSampleSize
		if off+bmpSampleSize > len(data) {
			break
		}
		sp.Samples = append(sp.Samples, BMPSample{
			Pressure:    float32(Uint16(data[off:])) / PressureScale,
			Temperature: float32(Int16(data[off+2:])) / TemperatureScale,
		})
	}

	return sp
}

// decodeLocalisation reads the localisation section starting at lo.
// Fixes are read while a whole pair fits before the checksum byte.
func decodeLocalisation(data []byte, lo int) *Localisation {
	loc := &Localisation{
		ProbeLatitude:  Scale(int64(Int24(data[lo:])), CoordinateScale),
		ProbeLongitude: Scale(int64(Int24(data[lo+3:])), CoordinateScale),
	}

	crcPos := len(data) - 1
	for i := 0; i < MaxDetonationFix; i++ {
		off := lo + localisationFixBase + i*detonationFixSize
		if off+detonationFixSize > crcPos {
			break
		}
		loc.Detonations = append(loc.Detonations, DetonationFix{
			Distance: float32(Uint16(data[off:])),
			Azimuth:  float32(Int16(data[off+2:])) / AzimuthScale,
		})
	}

	return loc
}

// EncodeScientific builds a scientific packet of the given total size with a trailing checksum.
// Sections whose flag is set in pkt.Bitmap are written; the size must be large enough for each.
// The telemetry tail is placed from the end, so at sizes 77 and 78 it lands on the
// localisation section; flagging both at those sizes is an error.
func EncodeScientific(pkt *ScientificPacket, team TeamID, size int) ([]byte, error) {
	if size < MinScientificSize || size > MaxScientificSize {
		return nil, fmt.Errorf("invalid scientific packet size %d (valid range: %d-%d)", size, MinScientificSize, MaxScientificSize)
	}

	buf := make([]byte, size)
	buf[0] = IDScientificBase | byte(team)&TeamIDMask
	PutUint32(buf[scientificTSOffset:], pkt.Timestamp)
	buf[scientificBitmapOffset] = byte(pkt.Bitmap)

	type placed struct {
		name   string
		lo, hi int
	}
	var used []placed

	for _, s := range scientificSections {
		if !pkt.Bitmap.Has(s.flag) {
			continue
		}
		lo, hi, ok := s.resolve(size)
		if !ok {
			return nil, fmt.Errorf("%s section needs a packet of at least %d bytes, got %d", s.name, s.minLen, size)
		}
		for _, p := range used {
			if lo < p.hi && p.lo < hi {
				return nil, fmt.Errorf("%s section [%d,%d) overlaps %s section [%d,%d) in a %d byte packet",
					s.name, lo, hi, p.name, p.lo, p.hi, size)
			}
		}
		used = append(used, placed{s.name, lo, hi})

		switch s.flag {
		case FlagDetonation:
			copy(buf[lo:hi], pkt.Detonation)
		case FlagTelemetryTail:
			copy(buf[lo:hi], pkt.TelemetryTail)
		case FlagSecondary:
			if pkt.Secondary != nil {
				encodeSecondary(buf, lo, pkt.Secondary)
			}
		case FlagLocalisation:
			if pkt.Localisation != nil {
				encodeLocalisation(buf, lo, pkt.Localisation)
			}
		}
	}

	buf[size-1] = Checksum(buf[:size-1])
	return buf, nil
}

// encodeSecondary writes the secondary payload starting at lo
func encodeSecondary(buf []byte, lo int, sp *SecondaryPayload) {
	PutInt16(buf[lo:], quantizeInt16(float64(sp.UVMean), UVScale))
	PutInt16(buf[lo+2:], quantizeInt16(float64(sp.UVStd), UVScale))
	for i, s := range sp.Samples {
		if i >= MaxBMPSamples {
			break
		}
		off := lo + secondarySampleBase + i*bmpSampleSize
		PutUint16(buf[off:], quantizeUint16(float64(s.Pressure), PressureScale))
		PutInt16(buf[off+2:], quantizeInt16(float64(s.Temperature), TemperatureScale))
	}
}

// encodeLocalisation writes the localisation section starting at lo
func encodeLocalisation(buf []byte, lo int, loc *Localisation) {
	PutInt24(buf[lo:], quantizeInt24(loc.ProbeLatitude, CoordinateScale))
	PutInt24(buf[lo+3:], quantizeInt24(loc.ProbeLongitude, CoordinateScale))
	for i, d := range loc.Detonations {
		if i >= MaxDetonationFix {
			break
		}
		off := lo + localisationFixBase + i*detonationFixSize
		PutUint16(buf[off:], quantizeUint16(float64(d.Distance), 1))
		PutInt16(buf[off+2:], quantizeInt16(float64(d.Azimuth), AzimuthScale))
	}
}
