package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ferry/internal/core"
)

func TestDecodeControl(t *testing.T) {
	msg, err := Decode(EncodeRequest())
	require.NoError(t, err)
	assert.Equal(t, KindRequest, msg.Kind)

	msg, err = Decode(EncodeAck(12))
	require.NoError(t, err)
	assert.Equal(t, KindAck, msg.Kind)
	assert.Equal(t, 12, msg.Ack)
	assert.Equal(t, "received/12", string(EncodeAck(12)))
}

func TestDecodeMalformed(t *testing.T) {
	for _, in := range []string{"received/", "received/x", "received/-1", "{not json", "", "sendx"} {
		t.Run(in, func(t *testing.T) {
			_, err := Decode([]byte(in))
			assert.ErrorIs(t, err, core.ErrMalformedMessage)
		})
	}
}

func TestUnitRoundTripKeepsChecksums(t *testing.T) {
	b := NewBuilder(testIface)
	for _, n := range []int{0, 1, 1500} {
		seg, err := b.Build(randomPayload(t, n, 9), 3000, 8080, 300)
		require.NoError(t, err)

		data, err := EncodeUnit(&seg)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"tcpHeader"`)
		assert.Contains(t, string(data), `"ethernetFrame"`)

		msg, err := Decode(data)
		require.NoError(t, err)
		require.Equal(t, KindUnit, msg.Kind)
		assert.Equal(t, seg.TCPHeader, msg.Unit.TCPHeader)
		assert.Equal(t, seg.IPv4Packet.Header, msg.Unit.IPv4Packet.Header)
		assert.Equal(t, seg.Payload(), msg.Unit.Payload())
		assert.Equal(t, 300, msg.Unit.Seq())
		assert.True(t, Validate(msg.Unit))
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "request", KindRequest.String())
	assert.Equal(t, "ack", KindAck.String())
	assert.Equal(t, "unit", KindUnit.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
