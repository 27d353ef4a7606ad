// Package console turns operator keystrokes into ground station actions.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode"

	"groundlink/internal/packet"
)

// Action is what a keystroke asks the station to do
type Action int

const (
	ActionUnknown Action = iota
	ActionRequestTelemetry
	ActionRequestScientific
	ActionRequestBoth
	ActionShowTelemetry
	ActionHelp
)

func (a Action) String() string {
	switch a {
	case ActionRequestTelemetry:
		return "request_telemetry"
	case ActionRequestScientific:
		return "request_scientific"
	case ActionRequestBoth:
		return "request_both"
	case ActionShowTelemetry:
		return "show_telemetry"
	case ActionHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Command returns the uplink command for a request action
func (a Action) Command(team packet.TeamID) (packet.Command, bool) {
	switch a {
	case ActionRequestTelemetry:
		return packet.Command{RequestTelemetry: true, Team: team}, true
	case ActionRequestScientific:
		return packet.Command{RequestScientific: true, Team: team}, true
	case ActionRequestBoth:
		return packet.Command{RequestTelemetry: true, RequestScientific: true, Team: team}, true
	default:
		return packet.Command{}, false
	}
}

// Input is one keystroke and the action it maps to
type Input struct {
	Action Action
	Key    rune
}

// Help lists the keystrokes the console understands
const Help = `
Commands:
  't' - Send TEL request (telemetry only)
  's' - Send SCI request (scientific only)
  'b' - Send both (TEL + SCI)
  'r' - Show last received telemetry
  'h' - Show this help
`

// UnknownMessage is the diagnostic for an unmapped keystroke
func UnknownMessage(key rune) string {
	return fmt.Sprintf("Unknown command: '%c'. Type 'h' for help.", key)
}

// Parse maps a keystroke to its action. Whitespace is ignored (ok is false).
func Parse(key rune) (in Input, ok bool) {
	if unicode.IsSpace(key) {
		return Input{}, false
	}

	in.Key = key
	switch unicode.ToLower(key) {
	case 't':
		in.Action = ActionRequestTelemetry
	case 's':
		in.Action = ActionRequestScientific
	case 'b':
		in.Action = ActionRequestBoth
	case 'r':
		in.Action = ActionShowTelemetry
	case 'h', '?':
		in.Action = ActionHelp
	default:
		in.Action = ActionUnknown
	}
	return in, true
}

// Read parses keystrokes from r and delivers them on out until r is
// exhausted or ctx is done. It returns nil at end of input.
func Read(ctx context.Context, r io.Reader, out chan<- Input) error {
	br := bufio.NewReader(r)

	for {
		key, _, err := br.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read console input: %w", err)
		}

		in, ok := Parse(key)
		if !ok {
			continue
		}

		select {
		case out <- in:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
