package packet

import "errors"

var (
	ErrTooShort         = errors.New("packet too short")
	ErrWrongType        = errors.New("wrong packet type")
	ErrWrongTeam        = errors.New("packet from different team")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Rejection reason labels
const (
	ReasonTooShort         = "too_short"
	ReasonWrongType        = "wrong_type"
	ReasonWrongTeam        = "wrong_team"
	ReasonChecksumMismatch = "checksum_mismatch"
	ReasonUnknown          = "unknown"
)

// Reason maps a decode error to a stable label for logs and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrTooShort):
		return ReasonTooShort
	case errors.Is(err, ErrWrongType):
		return ReasonWrongType
	case errors.Is(err, ErrWrongTeam):
		return ReasonWrongTeam
	case errors.Is(err, ErrChecksumMismatch):
		return ReasonChecksumMismatch
	default:
		return ReasonUnknown
	}
}
