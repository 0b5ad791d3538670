package packet

import (
	"encoding/json"
	"fmt"

	"firestige.xyz/ferry/internal/checksum"
	"firestige.xyz/ferry/internal/codec"
	"firestige.xyz/ferry/internal/crc"
	"firestige.xyz/ferry/internal/netif"
)

// Builder constructs segments addressed from one resolved local interface.
// The resolver is consulted once; an unavailable interface degrades to the
// all-zero addresses.
type Builder struct {
	iface netif.Interface
}

// NewBuilder resolves the local addresses through r.
func NewBuilder(r netif.Resolver) *Builder {
	return &Builder{iface: netif.ResolveOrZero(r)}
}

// Interface returns the addresses stamped into built frames.
func (b *Builder) Interface() netif.Interface {
	return b.iface
}

// BuildEthernetFrame wraps payload in a frame addressed to and from the
// local hardware address. The FCS is computed last.
func (b *Builder) BuildEthernetFrame(payload []byte) (EthernetFrame, error) {
	frame := EthernetFrame{
		DestinationMAC: b.iface.HardwareAddr,
		SourceMAC:      b.iface.HardwareAddr,
		Type:           EtherTypeIPv4,
		Payload:        append(make([]byte, 0, len(payload)), payload...),
	}

	fcs, err := ComputeFCS(frame)
	if err != nil {
		return EthernetFrame{}, fmt.Errorf("build ethernet frame: %w", err)
	}
	frame.FCS = fcs
	return frame, nil
}

// BuildIPv4Packet wraps frame in an IPv4 packet with a computed header checksum.
func (b *Builder) BuildIPv4Packet(frame EthernetFrame) (IPv4Packet, error) {
	hdr := IPv4Header{
		Version:     ipv4Version,
		TotalLength: ipv4TotalLength,
		TimeToLive:  ipv4TTL,
		Source:      b.iface.IPv4,
		Destination: b.iface.IPv4,
	}

	sum, err := IPv4HeaderChecksum(hdr)
	if err != nil {
		return IPv4Packet{}, fmt.Errorf("build ipv4 packet: %w", err)
	}
	hdr.HeaderChecksum = sum
	return IPv4Packet{Header: hdr, EthernetFrame: frame}, nil
}

// BuildTCPSegment wraps pkt in a TCP segment and computes its checksum.
func (b *Builder) BuildTCPSegment(pkt IPv4Packet, srcPort, dstPort uint16, seq uint32, flags uint8) (TCPSegment, error) {
	seg := TCPSegment{
		TCPHeader: TCPHeader{
			SourcePort:      srcPort,
			DestinationPort: dstPort,
			SequenceNumber:  seq,
			DataOffset:      tcpDataOffset,
			Flags:           flags,
			WindowSize:      tcpWindowSize,
		},
		IPv4Packet: pkt,
	}

	sum, err := TCPChecksum(seg)
	if err != nil {
		return TCPSegment{}, fmt.Errorf("build tcp segment: %w", err)
	}
	seg.TCPHeader.Checksum = sum
	return seg, nil
}

// Build composes the three layers for one payload segment.
func (b *Builder) Build(payload []byte, srcPort, dstPort uint16, seq uint32) (TCPSegment, error) {
	frame, err := b.BuildEthernetFrame(payload)
	if err != nil {
		return TCPSegment{}, err
	}
	pkt, err := b.BuildIPv4Packet(frame)
	if err != nil {
		return TCPSegment{}, err
	}
	return b.BuildTCPSegment(pkt, srcPort, dstPort, seq, 0)
}

// BuildAll builds one segment per payload, numbered by position.
func (b *Builder) BuildAll(payloads [][]byte, srcPort, dstPort uint16) ([]TCPSegment, error) {
	segs := make([]TCPSegment, 0, len(payloads))
	for i, p := range payloads {
		seg, err := b.Build(p, srcPort, dstPort, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// ComputeFCS returns the CRC32 over destination, source, type and payload.
func ComputeFCS(frame EthernetFrame) (uint32, error) {
	dst, err := codec.MACToBytes(frame.DestinationMAC)
	if err != nil {
		return 0, err
	}
	src, err := codec.MACToBytes(frame.SourceMAC)
	if err != nil {
		return 0, err
	}
	return crc.Checksum(codec.Concat(dst, src, codec.Uint(uint64(frame.Type), 2), frame.Payload)), nil
}

// VerifyFCS recomputes the frame check sequence. Acceptance does not depend
// on it; only the TCP checksum gates delivery.
func VerifyFCS(frame EthernetFrame) bool {
	fcs, err := ComputeFCS(frame)
	return err == nil && fcs == frame.FCS
}

// IPv4HeaderChecksum computes the header checksum with the checksum field zeroed.
//
// Field widths: version 1, totalLength 2, identification 1, timeToLive 1,
// headerChecksum 2, source 4, destination 4.
func IPv4HeaderChecksum(hdr IPv4Header) (uint16, error) {
	src, err := codec.IPv4ToBytes(hdr.Source)
	if err != nil {
		return 0, err
	}
	dst, err := codec.IPv4ToBytes(hdr.Destination)
	if err != nil {
		return 0, err
	}

	buf := codec.Concat(
		codec.Uint(uint64(hdr.Version), 1),
		codec.Uint(uint64(hdr.TotalLength), 2),
		codec.Uint(uint64(hdr.Identification), 1),
		codec.Uint(uint64(hdr.TimeToLive), 1),
		codec.Uint(0, 2),
		src,
		dst,
	)
	return checksum.Internet(buf), nil
}

// TCPChecksum computes the segment checksum with the checksum field zeroed.
//
// Field widths: sourcePort 2, destinationPort 2, sequenceNumber 1, flags 1,
// acknowledgmentNumber 1, dataOffset 1, reserved 1, windowSize 2, checksum 1,
// urgentPointer 1, followed by the JSON encoding of the IPv4 packet. Both
// endpoints must use this exact layout.
func TCPChecksum(seg TCPSegment) (uint16, error) {
	h := seg.TCPHeader
	inner, err := json.Marshal(seg.IPv4Packet)
	if err != nil {
		return 0, err
	}

	buf := codec.Concat(
		codec.Uint(uint64(h.SourcePort), 2),
		codec.Uint(uint64(h.DestinationPort), 2),
		codec.Uint(uint64(h.SequenceNumber), 1),
		codec.Uint(uint64(h.Flags), 1),
		codec.Uint(uint64(h.AcknowledgmentNumber), 1),
		codec.Uint(uint64(h.DataOffset), 1),
		codec.Uint(uint64(h.Reserved), 1),
		codec.Uint(uint64(h.WindowSize), 2),
		codec.Uint(0, 1),
		codec.Uint(uint64(h.UrgentPointer), 1),
		inner,
	)
	return checksum.Internet(buf), nil
}

// Validate recomputes the IPv4 header checksum and the TCP checksum and
// reports whether both match. seg is not modified.
func Validate(seg *TCPSegment) bool {
	if seg == nil {
		return false
	}
	ipSum, err := IPv4HeaderChecksum(seg.IPv4Packet.Header)
	if err != nil || ipSum != seg.IPv4Packet.Header.HeaderChecksum {
		return false
	}
	tcpSum, err := TCPChecksum(*seg)
	return err == nil && tcpSum == seg.TCPHeader.Checksum
}
