package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/ferry/internal/packet"
)

func seqUnit(seq uint32, payload string) *packet.TCPSegment {
	u := &packet.TCPSegment{}
	u.TCPHeader.SequenceNumber = seq
	u.IPv4Packet.EthernetFrame.Payload = []byte(payload)
	return u
}

func TestSessionAppendAndDrain(t *testing.T) {
	s := NewSession()
	assert.False(t, s.Append(seqUnit(2, "c")))
	assert.False(t, s.Append(seqUnit(0, "a")))
	assert.True(t, s.Append(seqUnit(2, "c")), "same sequence number twice")
	assert.False(t, s.Append(seqUnit(1, "b")))
	assert.Equal(t, 4, s.Len())

	units := s.Drain()
	var got []int
	for _, u := range units {
		got = append(got, u.Seq())
	}
	assert.Equal(t, []int{0, 1, 2, 2}, got)

	assert.Zero(t, s.Len(), "drain resets")
	assert.False(t, s.Append(seqUnit(2, "c")), "seen set resets too")
}

func TestSessionReset(t *testing.T) {
	s := NewSession()
	s.Append(seqUnit(0, "a"))
	s.Reset()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Drain())
}
