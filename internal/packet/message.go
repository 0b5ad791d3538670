package packet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"firestige.xyz/ferry/internal/core"
)

// Control strings exchanged on the wire.
const (
	RequestUnit = "send"
	AckPrefix   = "received/"
)

// Kind identifies a decoded wire message.
type Kind int

const (
	KindRequest Kind = iota // receiver asks for any unit
	KindAck                 // receiver acknowledges Message.Ack
	KindUnit                // a serialized TCPSegment
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindAck:
		return "ack"
	case KindUnit:
		return "unit"
	default:
		return "unknown"
	}
}

// Message is one decoded wire message.
type Message struct {
	Kind Kind
	Ack  int
	Unit *TCPSegment
}

// EncodeRequest returns the request-unit control string.
func EncodeRequest() []byte {
	return []byte(RequestUnit)
}

// EncodeAck returns "received/<seq>".
func EncodeAck(seq int) []byte {
	return strconv.AppendInt([]byte(AckPrefix), int64(seq), 10)
}

// EncodeUnit serializes seg as JSON.
func EncodeUnit(seg *TCPSegment) ([]byte, error) {
	data, err := json.Marshal(seg)
	if err != nil {
		return nil, fmt.Errorf("encode unit: %w", err)
	}
	return data, nil
}

// Decode parses a control string first and falls back to a JSON segment.
func Decode(data []byte) (Message, error) {
	if string(data) == RequestUnit {
		return Message{Kind: KindRequest}, nil
	}

	if rest, ok := bytes.CutPrefix(data, []byte(AckPrefix)); ok {
		n, err := strconv.ParseUint(string(rest), 10, 32)
		if err != nil {
			return Message{}, fmt.Errorf("%w: ack index %q", core.ErrMalformedMessage, rest)
		}
		return Message{Kind: KindAck, Ack: int(n)}, nil
	}

	var seg TCPSegment
	if err := json.Unmarshal(data, &seg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
	}
	return Message{Kind: KindUnit, Unit: &seg}, nil
}
