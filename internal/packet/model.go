// Package packet models the three-layer unit exchanged between endpoints:
// a TCP segment wrapping an IPv4 packet wrapping an Ethernet frame that
// carries one payload segment.
package packet

const (
	// EtherTypeIPv4 marks an Ethernet frame carrying an IPv4 payload.
	EtherTypeIPv4 uint16 = 0x0800

	ipv4Version     uint8  = 4
	ipv4TotalLength uint16 = 20
	ipv4TTL         uint8  = 64

	tcpDataOffset uint8  = 5
	tcpWindowSize uint16 = 65535
)

// EthernetFrame is the innermost layer. FCS is a CRC32 over the addresses,
// the type and the payload, computed once at build time.
type EthernetFrame struct {
	DestinationMAC string `json:"destinationMac"`
	SourceMAC      string `json:"sourceMac"`
	Type           uint16 `json:"type"`
	Payload        []byte `json:"payload"`
	FCS            uint32 `json:"fcs"`
}

// IPv4Header holds the fields covered by the header checksum.
type IPv4Header struct {
	Version        uint8  `json:"version"`
	TotalLength    uint16 `json:"totalLength"`
	Identification uint16 `json:"identification"`
	TimeToLive     uint8  `json:"timeToLive"`
	HeaderChecksum uint16 `json:"headerChecksum"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
}

// IPv4Packet encapsulates an Ethernet frame.
type IPv4Packet struct {
	Header        IPv4Header    `json:"header"`
	EthernetFrame EthernetFrame `json:"ethernetFrame"`
}

// TCPHeader carries the segment's addressing and checksum.
type TCPHeader struct {
	SourcePort           uint16 `json:"sourcePort"`
	DestinationPort      uint16 `json:"destinationPort"`
	SequenceNumber       uint32 `json:"sequenceNumber"`
	AcknowledgmentNumber uint32 `json:"acknowledgmentNumber"`
	DataOffset           uint8  `json:"dataOffset"`
	Reserved             uint8  `json:"reserved"`
	Flags                uint8  `json:"flags"`
	WindowSize           uint16 `json:"windowSize"`
	Checksum             uint16 `json:"checksum"`
	UrgentPointer        uint16 `json:"urgentPointer"`
}

// TCPSegment is the unit actually put on the wire.
type TCPSegment struct {
	TCPHeader  TCPHeader  `json:"tcpHeader"`
	IPv4Packet IPv4Packet `json:"ipv4Packet"`
}

// Payload returns the bytes carried by the innermost frame.
func (s *TCPSegment) Payload() []byte {
	return s.IPv4Packet.EthernetFrame.Payload
}

// Seq returns the segment's sequence number.
func (s *TCPSegment) Seq() int {
	return int(s.TCPHeader.SequenceNumber)
}

// Clone returns a structural deep copy. Mutating the copy's payload never
// touches the receiver.
func (s *TCPSegment) Clone() *TCPSegment {
	if s == nil {
		return nil
	}
	c := *s
	if p := s.IPv4Packet.EthernetFrame.Payload; p != nil {
		c.IPv4Packet.EthernetFrame.Payload = append(make([]byte, 0, len(p)), p...)
	}
	return &c
}
