package transfer

import (
	"firestige.xyz/ferry/internal/packet"
	"firestige.xyz/ferry/internal/store"
)

// Session is the receiver state for one connection: reset on open, appended
// on every valid unit, drained on close.
type Session struct {
	units []*packet.TCPSegment
	seen  map[int]int
}

func NewSession() *Session {
	s := &Session{}
	s.Reset()
	return s
}

// Reset discards everything received so far.
func (s *Session) Reset() {
	s.units = nil
	s.seen = make(map[int]int)
}

// Append stores unit and reports whether its sequence number was already
// stored. Duplicates are kept.
func (s *Session) Append(unit *packet.TCPSegment) (duplicate bool) {
	seq := unit.Seq()
	duplicate = s.seen[seq] > 0
	s.seen[seq]++
	s.units = append(s.units, unit)
	return duplicate
}

func (s *Session) Len() int { return len(s.units) }

// Drain returns the stored units sorted by sequence number and resets.
func (s *Session) Drain() []*packet.TCPSegment {
	units := s.units
	s.Reset()
	store.Sort(units)
	return units
}
