package station

import (
	"sync"
	"time"

	"groundlink/internal/packet"
)

// State holds the last validated records heard from the probe.
// Only records that passed every decode check are stored.
type State struct {
	mu           sync.RWMutex
	telemetry    *packet.TelemetryRecord
	telemetryAt  time.Time
	scientific   *packet.ScientificPacket
	scientificAt time.Time
}

// NewState creates an empty state
func NewState() *State {
	return &State{}
}

// SetTelemetry replaces the last telemetry record
func (s *State) SetTelemetry(rec packet.TelemetryRecord, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = &rec
	s.telemetryAt = at
}

// Telemetry returns a copy of the last telemetry record
func (s *State) Telemetry() (packet.TelemetryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.telemetry == nil {
		return packet.TelemetryRecord{}, false
	}
	return *s.telemetry, true
}

// SetScientific replaces the last scientific packet
func (s *State) SetScientific(pkt *packet.ScientificPacket, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scientific = pkt
	s.scientificAt = at
}

// Scientific returns the last scientific packet. Callers must not modify it.
func (s *State) Scientific() (*packet.ScientificPacket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scientific, s.scientific != nil
}

// Status is a point-in-time view of the station for the status endpoint
type Status struct {
	Team                 packet.TeamID            `json:"team"`
	Telemetry            *packet.TelemetryRecord  `json:"telemetry,omitempty"`
	TelemetryReceivedAt  *time.Time               `json:"telemetry_received_at,omitempty"`
	Scientific           *packet.ScientificPacket `json:"scientific,omitempty"`
	ScientificReceivedAt *time.Time               `json:"scientific_received_at,omitempty"`
}

func (s *State) snapshot(team packet.TeamID) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Team: team}
	if s.telemetry != nil {
		rec := *s.telemetry
		at := s.telemetryAt
		st.Telemetry = &rec
		st.TelemetryReceivedAt = &at
	}
	if s.scientific != nil {
		at := s.scientificAt
		st.Scientific = s.scientific
		st.ScientificReceivedAt = &at
	}
	return st
}
