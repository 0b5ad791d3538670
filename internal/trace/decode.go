package trace

import (
	"encoding/binary"
	"net"
	"net/netip"

	"firestige.xyz/ferry/internal/core"
)

const (
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4
	ipv4HeaderMinLen  = 20
	tcpHeaderMinLen   = 20

	etherTypeIPv4 = 0x0800
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8

	protocolTCP = 6
)

// Frame is one decoded trace record.
type Frame struct {
	SrcMAC  net.HardwareAddr
	DstMAC  net.HardwareAddr
	SrcIP   netip.Addr
	DstIP   netip.Addr
	TTL     uint8
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Payload []byte // zero-copy slice of the record
}

// Decode parses an Ethernet frame down to the TCP payload.
func Decode(data []byte) (Frame, error) {
	var f Frame

	payload, err := decodeEthernet(data, &f)
	if err != nil {
		return f, err
	}
	payload, err = decodeIPv4(payload, &f)
	if err != nil {
		return f, err
	}
	f.Payload, err = decodeTCP(payload, &f)
	return f, err
}

// decodeEthernet skips VLAN tags and requires an IPv4 EtherType.
func decodeEthernet(data []byte, f *Frame) ([]byte, error) {
	if len(data) < ethernetHeaderLen {
		return nil, core.ErrPacketTooShort
	}
	f.DstMAC = net.HardwareAddr(data[0:6])
	f.SrcMAC = net.HardwareAddr(data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	// VLAN tags can be nested (QinQ)
	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return nil, core.ErrPacketTooShort
		}
		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	if etherType != etherTypeIPv4 {
		return nil, core.ErrUnsupportedProto
	}
	return data[offset:], nil
}

func decodeIPv4(data []byte, f *Frame) ([]byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return nil, core.ErrPacketTooShort
	}
	if data[0]>>4 != 4 {
		return nil, core.ErrUnsupportedProto
	}

	// IHL is in 32-bit words
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return nil, core.ErrPacketTooShort
	}
	if data[9] != protocolTCP {
		return nil, core.ErrUnsupportedProto
	}

	f.TTL = data[8]
	f.SrcIP = netip.AddrFrom4([4]byte(data[12:16]))
	f.DstIP = netip.AddrFrom4([4]byte(data[16:20]))

	// Trim link-layer padding using the total length.
	end := int(binary.BigEndian.Uint16(data[2:4]))
	if end < headerLen || end > len(data) {
		end = len(data)
	}
	return data[headerLen:end], nil
}

func decodeTCP(data []byte, f *Frame) ([]byte, error) {
	if len(data) < tcpHeaderMinLen {
		return nil, core.ErrPacketTooShort
	}

	f.SrcPort = binary.BigEndian.Uint16(data[0:2])
	f.DstPort = binary.BigEndian.Uint16(data[2:4])
	f.Seq = binary.BigEndian.Uint32(data[4:8])

	// Data offset is in 32-bit words
	headerLen := int(data[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return nil, core.ErrPacketTooShort
	}
	return data[headerLen:], nil
}
