// Package trace writes transmitted units to a pcap file as real
// Ethernet/IPv4/TCP frames and reads such files back.
package trace

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/ferry/internal/packet"
)

const snapLen = 65536

// Recorder appends one pcap record per unit. Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	f   *os.File
	w   *pcapgo.Writer
	now func() time.Time
}

// Create truncates path and writes the pcap file header.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return &Recorder{f: f, w: w, now: time.Now}, nil
}

// Record serializes unit with its own addresses, ports, sequence number and
// payload. A corrupted unit is recorded as transmitted.
func (r *Recorder) Record(unit *packet.TCPSegment) error {
	data, err := Serialize(unit)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ci := gopacket.CaptureInfo{
		Timestamp:     r.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	return r.w.WritePacket(ci, data)
}

// Close closes the underlying file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// Serialize renders unit as an Ethernet frame with valid IPv4 and TCP checksums.
func Serialize(unit *packet.TCPSegment) ([]byte, error) {
	frame := unit.IPv4Packet.EthernetFrame
	hdr := unit.IPv4Packet.Header

	srcMAC, err := net.ParseMAC(frame.SourceMAC)
	if err != nil {
		return nil, fmt.Errorf("trace source mac: %w", err)
	}
	dstMAC, err := net.ParseMAC(frame.DestinationMAC)
	if err != nil {
		return nil, fmt.Errorf("trace destination mac: %w", err)
	}
	srcIP := net.ParseIP(hdr.Source).To4()
	dstIP := net.ParseIP(hdr.Destination).To4()
	if srcIP == nil || dstIP == nil {
		return nil, fmt.Errorf("trace: ipv4 addresses %q -> %q", hdr.Source, hdr.Destination)
	}

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetType(frame.Type),
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      hdr.TimeToLive,
		Id:       hdr.Identification,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(unit.TCPHeader.SourcePort),
		DstPort: layers.TCPPort(unit.TCPHeader.DestinationPort),
		Seq:     unit.TCPHeader.SequenceNumber,
		Ack:     unit.TCPHeader.AcknowledgmentNumber,
		Window:  unit.TCPHeader.WindowSize,
		Urgent:  unit.TCPHeader.UrgentPointer,
		PSH:     true,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(frame.Payload)); err != nil {
		return nil, fmt.Errorf("serialize unit %d: %w", unit.Seq(), err)
	}
	return buf.Bytes(), nil
}
