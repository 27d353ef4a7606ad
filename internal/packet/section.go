package packet

// anchor says which end of the packet a section offset is measured from
type anchor int

const (
	fromStart anchor = iota
	fromEnd
)

// section describes where an optional scientific sub-record lives.
// minLen is the packet length the sender guarantees before the section may be read;
// it can exceed offset+size (the extra bytes act as guard bytes).
type section struct {
	name   string
	flag   Bitmap
	anchor anchor
	offset int // bytes from the start, or bytes back from the packet length
	size   int
	minLen int
}

// Optional scientific sections
var (
	detonationSection = section{
		name: "detonation", flag: FlagDetonation,
		anchor: fromStart, offset: 6, size: DetonationSize, minLen: 26,
	}
	secondarySection = section{
		name: "secondary", flag: FlagSecondary,
		anchor: fromStart, offset: 26, size: 20, minLen: 46,
	}
	localisationSection = section{
		name: "localisation", flag: FlagLocalisation,
		anchor: fromStart, offset: 46, size: 22, minLen: 71,
	}
	telemetryTailSection = section{
		name: "telemetry_tail", flag: FlagTelemetryTail,
		anchor: fromEnd, offset: 11, size: TelemetryTailSize, minLen: 77,
	}
)

// scientificSections lists every optional section in decode order
var scientificSections = []section{
	secondarySection,
	detonationSection,
	localisationSection,
	telemetryTailSection,
}

// resolve returns the byte range [lo, hi) of the section within a packet of length n.
// ok is false when the packet is too short to carry it.
func (s section) resolve(n int) (lo, hi int, ok bool) {
	if n < s.minLen {
		return 0, 0, false
	}

	lo = s.offset
	if s.anchor == fromEnd {
		lo = n - s.offset
	}
	hi = lo + s.size

	if lo < 0 || hi > n {
		return 0, 0, false
	}
	return lo, hi, true
}

// locate resolves the section only when its flag is set in bitmap
func (s section) locate(bitmap Bitmap, n int) (lo, hi int, ok bool) {
	if !bitmap.Has(s.flag) {
		return 0, 0, false
	}
	return s.resolve(n)
}
