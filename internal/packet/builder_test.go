package packet

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ferry/internal/core"
	"firestige.xyz/ferry/internal/netif"
)

var testIface = netif.Static{HardwareAddr: "02:42:ac:11:00:02", IPv4: "10.0.0.1"}

func randomPayload(t *testing.T, n int, seed uint64) []byte {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.IntN(256))
	}
	return b
}

func TestBuildLayers(t *testing.T) {
	b := NewBuilder(testIface)
	payload := []byte("hello, ferry")

	seg, err := b.Build(payload, 3000, 8080, 7)
	require.NoError(t, err)

	frame := seg.IPv4Packet.EthernetFrame
	assert.Equal(t, "02:42:ac:11:00:02", frame.DestinationMAC)
	assert.Equal(t, "02:42:ac:11:00:02", frame.SourceMAC)
	assert.Equal(t, EtherTypeIPv4, frame.Type)
	assert.Equal(t, payload, frame.Payload)
	assert.True(t, VerifyFCS(frame))

	hdr := seg.IPv4Packet.Header
	assert.Equal(t, uint8(4), hdr.Version)
	assert.Equal(t, uint16(20), hdr.TotalLength)
	assert.Equal(t, uint16(0), hdr.Identification)
	assert.Equal(t, uint8(64), hdr.TimeToLive)
	assert.Equal(t, "10.0.0.1", hdr.Source)
	assert.Equal(t, "10.0.0.1", hdr.Destination)

	tcp := seg.TCPHeader
	assert.Equal(t, uint16(3000), tcp.SourcePort)
	assert.Equal(t, uint16(8080), tcp.DestinationPort)
	assert.Equal(t, uint32(7), tcp.SequenceNumber)
	assert.Equal(t, uint32(0), tcp.AcknowledgmentNumber)
	assert.Equal(t, uint8(5), tcp.DataOffset)
	assert.Equal(t, uint16(65535), tcp.WindowSize)
	assert.Equal(t, uint16(0), tcp.UrgentPointer)

	assert.True(t, Validate(&seg))
}

func TestBuildDoesNotAliasPayload(t *testing.T) {
	payload := []byte("abc")
	seg, err := NewBuilder(testIface).Build(payload, 1, 2, 0)
	require.NoError(t, err)

	payload[0] = 'z'
	assert.Equal(t, []byte("abc"), seg.Payload())
	assert.True(t, Validate(&seg))
}

func TestBuildWithoutInterfaceUsesZeroAddresses(t *testing.T) {
	seg, err := NewBuilder(nil).Build([]byte{1, 2, 3}, 3000, 8080, 0)
	require.NoError(t, err)

	assert.Equal(t, netif.ZeroHardwareAddr, seg.IPv4Packet.EthernetFrame.SourceMAC)
	assert.Equal(t, netif.ZeroIPv4, seg.IPv4Packet.Header.Source)
	assert.True(t, Validate(&seg))
}

func TestBuildMalformedAddress(t *testing.T) {
	_, err := NewBuilder(netif.Static{HardwareAddr: "not-a-mac", IPv4: "10.0.0.1"}).Build([]byte{1}, 1, 2, 0)
	assert.ErrorIs(t, err, core.ErrMalformedAddress)

	_, err = NewBuilder(netif.Static{HardwareAddr: "02:00:00:00:00:01", IPv4: "10.0.0"}).Build([]byte{1}, 1, 2, 0)
	assert.ErrorIs(t, err, core.ErrMalformedAddress)
}

func TestIPv4HeaderChecksumKnownValue(t *testing.T) {
	hdr := IPv4Header{
		Version:     4,
		TotalLength: 20,
		TimeToLive:  64,
		Source:      "10.0.0.1",
		Destination: "10.0.0.1",
	}
	sum, err := IPv4HeaderChecksum(hdr)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xa5eb), sum)

	// The stored checksum field never takes part in the computation.
	hdr.HeaderChecksum = 0x1234
	again, err := IPv4HeaderChecksum(hdr)
	require.NoError(t, err)
	assert.Equal(t, sum, again)
}

func TestValidateSymmetry(t *testing.T) {
	b := NewBuilder(testIface)
	for _, n := range []int{0, 1, 2, 3, 255, 1499, 1500} {
		seg, err := b.Build(randomPayload(t, n, uint64(n)), 3000, 8080, uint32(n))
		require.NoError(t, err)
		assert.True(t, Validate(&seg), "payload length %d", n)
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	seg, err := NewBuilder(testIface).Build([]byte("payload"), 3000, 8080, 1)
	require.NoError(t, err)

	before := seg.TCPHeader.Checksum
	Validate(&seg)
	assert.Equal(t, before, seg.TCPHeader.Checksum)
	assert.Nil(t, (*TCPSegment)(nil).Clone())
	assert.False(t, Validate(nil))
}

func TestValidateDetectsSingleByteShift(t *testing.T) {
	payload := randomPayload(t, 64, 42)
	seg, err := NewBuilder(testIface).Build(payload, 3000, 8080, 3)
	require.NoError(t, err)

	for i, v := range payload {
		for shift := 1; shift <= 8; shift++ {
			shifted := v >> shift
			if shifted == v {
				continue
			}
			bad := seg.Clone()
			bad.IPv4Packet.EthernetFrame.Payload[i] = shifted
			assert.False(t, Validate(bad), "byte %d shifted by %d", i, shift)
			assert.False(t, VerifyFCS(bad.IPv4Packet.EthernetFrame), "byte %d shifted by %d", i, shift)
		}
	}
	assert.True(t, Validate(&seg), "original must survive corrupting its clones")
}

func TestValidateDetectsHeaderTampering(t *testing.T) {
	seg, err := NewBuilder(testIface).Build([]byte("payload"), 3000, 8080, 1)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*TCPSegment)
	}{
		{"source port", func(s *TCPSegment) { s.TCPHeader.SourcePort++ }},
		{"sequence", func(s *TCPSegment) { s.TCPHeader.SequenceNumber++ }},
		{"checksum", func(s *TCPSegment) { s.TCPHeader.Checksum++ }},
		{"ttl", func(s *TCPSegment) { s.IPv4Packet.Header.TimeToLive-- }},
		{"ip source", func(s *TCPSegment) { s.IPv4Packet.Header.Source = "10.0.0.2" }},
		{"fcs", func(s *TCPSegment) { s.IPv4Packet.EthernetFrame.FCS ^= 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := seg.Clone()
			tt.mutate(bad)
			assert.False(t, Validate(bad))
		})
	}
}

func TestValidateChecksIPv4HeaderChecksum(t *testing.T) {
	seg, err := NewBuilder(testIface).Build([]byte("payload"), 3000, 8080, 1)
	require.NoError(t, err)

	// A wrong header checksum with a TCP checksum recomputed over it passes
	// the TCP check alone.
	bad := seg.Clone()
	bad.IPv4Packet.Header.HeaderChecksum ^= 0x0101
	sum, err := TCPChecksum(*bad)
	require.NoError(t, err)
	bad.TCPHeader.Checksum = sum

	assert.False(t, Validate(bad))
	assert.True(t, Validate(&seg))
}

func TestBuildAllNumbersByPosition(t *testing.T) {
	segs, err := NewBuilder(testIface).BuildAll(Split(randomPayload(t, 3200, 1), 1500), 3000, 8080)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	for i := range segs {
		assert.Equal(t, i, segs[i].Seq())
		assert.True(t, Validate(&segs[i]))
	}
	assert.Len(t, segs[2].Payload(), 200)
}
