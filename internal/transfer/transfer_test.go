package transfer

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ferry/internal/core"
	"firestige.xyz/ferry/internal/fault"
	"firestige.xyz/ferry/internal/netif"
	"firestige.xyz/ferry/internal/packet"
	"firestige.xyz/ferry/internal/store"
)

var testIface = netif.Static{HardwareAddr: "02:42:0a:00:00:01", IPv4: "10.0.0.1"}

// scripted fires according to fixed sequences, then never again.
type scripted struct {
	drops    []bool
	corrupts []bool
}

func (s *scripted) ShouldDrop() bool {
	if len(s.drops) == 0 {
		return false
	}
	d := s.drops[0]
	s.drops = s.drops[1:]
	return d
}

func (s *scripted) Corrupt(unit *packet.TCPSegment) *packet.TCPSegment {
	if len(s.corrupts) == 0 {
		return unit
	}
	c := s.corrupts[0]
	s.corrupts = s.corrupts[1:]
	if !c {
		return unit
	}
	bad := unit.Clone()
	bad.IPv4Packet.EthernetFrame.Payload[0] >>= 1
	return bad
}

type recordingTracer struct{ seqs []int }

func (r *recordingTracer) Record(unit *packet.TCPSegment) error {
	r.seqs = append(r.seqs, unit.Seq())
	return nil
}

type outcome struct {
	summary core.Summary
	result  core.ReceiveResult
	output  []byte
}

func buildUnits(t *testing.T, data []byte, size int) []packet.TCPSegment {
	t.Helper()
	units, err := packet.NewBuilder(testIface).BuildAll(packet.Split(data, size), 3000, 8080)
	require.NoError(t, err)
	return units
}

func runSession(t *testing.T, data []byte, size int, senderPolicy, receiverPolicy fault.Policy, seed uint64, tracer Tracer) outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dir := t.TempDir()
	sConn, rConn := Pipe()

	type served struct {
		result core.ReceiveResult
		err    error
	}
	done := make(chan served, 1)
	recv := NewReceiver(receiverPolicy, store.FileOpener(dir, "file.txt"))
	go func() {
		r, err := recv.Serve(ctx, rConn)
		done <- served{r, err}
	}()

	sender := NewSender(buildUnits(t, data, size), SenderOptions{
		Policy: senderPolicy,
		Rand:   rand.New(rand.NewPCG(seed, 1)),
		Tracer: tracer,
	})
	summary, err := sender.Run(ctx, sConn)
	require.NoError(t, err)
	assert.Zero(t, sender.Outstanding())

	s := <-done
	require.NoError(t, s.err)

	out, err := os.ReadFile(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	return outcome{summary: summary, result: s.result, output: out}
}

func knownContent(n int) []byte {
	return bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog. "), n/45+1)[:n]
}

func TestTransferWithoutFaults(t *testing.T) {
	data := knownContent(3000)
	tracer := &recordingTracer{}

	o := runSession(t, data, 1500, fault.None{}, fault.None{}, 1, tracer)

	assert.Equal(t, 2, o.summary.Segments)
	assert.Equal(t, 2, o.summary.Sent, "exactly one round trip per unit")
	assert.Equal(t, 2, o.summary.Acknowledged)
	assert.True(t, o.summary.Complete())
	assert.InDelta(t, 100.0, o.summary.DeliveryRatio(), 0.001)
	assert.False(t, o.summary.Started.IsZero())
	assert.False(t, o.summary.Finished.Before(o.summary.Started))

	assert.Equal(t, core.ReceiveResult{Accepted: 2, BytesWritten: 3000}, o.result)
	assert.Equal(t, data, o.output)
	assert.ElementsMatch(t, []int{0, 1}, tracer.seqs)
}

func TestTransferRejectsCorruptedUnits(t *testing.T) {
	data := knownContent(3000)
	corrupt := &scripted{corrupts: []bool{true, false, true, true}}

	o := runSession(t, data, 1500, corrupt, fault.None{}, 2, nil)

	assert.Equal(t, 3, o.result.Rejected)
	assert.Equal(t, 2, o.result.Accepted)
	assert.Equal(t, 5, o.summary.Sent, "every rejection costs one more transmission")
	assert.Equal(t, 2, o.summary.Acknowledged)
	assert.InDelta(t, 40.0, o.summary.DeliveryRatio(), 0.001)
	assert.Equal(t, data, o.output)
}

func TestTransferRecoversFromLoss(t *testing.T) {
	data := knownContent(4000)
	drop := &scripted{drops: []bool{true, true, false, true}}

	o := runSession(t, data, 1500, fault.None{}, drop, 3, nil)

	assert.Equal(t, 3, o.result.Dropped)
	assert.Equal(t, 3, o.result.Accepted)
	assert.Equal(t, 6, o.summary.Sent)
	assert.Equal(t, data, o.output)
}

func TestTransferLivenessWithRandomFaults(t *testing.T) {
	data := knownContent(2000)
	for seed := uint64(1); seed <= 5; seed++ {
		o := runSession(t, data, 100,
			fault.NewRandom(fault.DefaultLossOneIn, fault.DefaultCorruptOneIn, seed),
			fault.NewRandom(fault.DefaultLossOneIn, fault.DefaultCorruptOneIn, seed+100),
			seed, nil)

		assert.Equal(t, 20, o.summary.Segments, "seed %d", seed)
		assert.Equal(t, 20, o.summary.Acknowledged, "seed %d", seed)
		assert.GreaterOrEqual(t, o.summary.Sent, 20, "seed %d", seed)
		assert.Equal(t, o.summary.Sent, o.result.Accepted+o.result.Rejected+o.result.Dropped, "seed %d", seed)
		assert.Equal(t, data, o.output, "seed %d", seed)
	}
}

func TestTransferEmptyInput(t *testing.T) {
	o := runSession(t, nil, 1500, fault.None{}, fault.None{}, 4, nil)

	assert.Zero(t, o.summary.Segments)
	assert.Zero(t, o.summary.Sent)
	assert.True(t, o.summary.Complete())
	assert.Zero(t, o.summary.DeliveryRatio())
	assert.Empty(t, o.output)
}

func TestSenderPeerClosedEarly(t *testing.T) {
	sConn, rConn := Pipe()
	require.NoError(t, rConn.Close())

	sender := NewSender(buildUnits(t, knownContent(10), 5), SenderOptions{})
	summary, err := sender.Run(context.Background(), sConn)
	assert.ErrorIs(t, err, core.ErrPeerClosed)
	assert.False(t, summary.Complete())
	assert.Equal(t, 2, sender.Outstanding())
}

func TestSenderContextCancelled(t *testing.T) {
	sConn, _ := Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSender(buildUnits(t, knownContent(10), 5), SenderOptions{}).Run(ctx, sConn)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSenderIgnoresStaleAcks(t *testing.T) {
	ctx := context.Background()
	sConn, peer := Pipe()
	sender := NewSender(buildUnits(t, knownContent(10), 5), SenderOptions{Rand: rand.New(rand.NewPCG(7, 7))})

	done := make(chan core.Summary, 1)
	go func() {
		s, _ := sender.Run(ctx, sConn)
		done <- s
	}()

	require.NoError(t, peer.WriteMessage(ctx, packet.EncodeRequest()))
	_, err := peer.ReadMessage(ctx)
	require.NoError(t, err)

	for _, msg := range [][]byte{packet.EncodeAck(0), packet.EncodeAck(0), []byte("junk"), packet.EncodeAck(1)} {
		require.NoError(t, peer.WriteMessage(ctx, msg))
		if _, err := peer.ReadMessage(ctx); err != nil {
			break
		}
	}

	s := <-done
	assert.Equal(t, 2, s.Acknowledged, "a repeated ack removes nothing")
	assert.Equal(t, 4, s.Sent)
}

// The receiver stores a unit every time it validates, even if its sequence
// number was already stored.
func TestReceiverKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	units := buildUnits(t, []byte("aaabbb"), 3)
	dir := t.TempDir()

	sConn, rConn := Pipe()
	done := make(chan core.ReceiveResult, 1)
	go func() {
		r, _ := NewReceiver(nil, store.FileOpener(dir, "out")).Serve(ctx, rConn)
		done <- r
	}()

	expect := func(want string) {
		msg, err := sConn.ReadMessage(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, string(msg))
	}
	send := func(u *packet.TCPSegment) {
		data, err := packet.EncodeUnit(u)
		require.NoError(t, err)
		require.NoError(t, sConn.WriteMessage(ctx, data))
	}

	expect("send")
	send(&units[0])
	expect("received/0")
	send(&units[0])
	expect("received/0")
	require.NoError(t, sConn.WriteMessage(ctx, []byte("garbage")))
	expect("send")
	send(&units[1])
	expect("received/1")
	require.NoError(t, sConn.Close())

	r := <-done
	assert.Equal(t, core.ReceiveResult{Accepted: 3, Rejected: 1, Duplicates: 1, BytesWritten: 9}, r)

	out, err := os.ReadFile(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, "aaaaaabbb", string(out))
}
