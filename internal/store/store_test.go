package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ferry/internal/packet"
)

func unit(seq uint32, payload string) *packet.TCPSegment {
	seg := &packet.TCPSegment{}
	seg.TCPHeader.SequenceNumber = seq
	seg.IPv4Packet.EthernetFrame.Payload = []byte(payload)
	return seg
}

type recordingSink struct {
	bytes.Buffer
	flushes int
	failAt  int
	closed  bool
}

func (s *recordingSink) Write(p []byte) (int, error) {
	if s.failAt > 0 && s.flushes+1 == s.failAt {
		return 0, errors.New("disk full")
	}
	return s.Buffer.Write(p)
}
func (s *recordingSink) Flush() error { s.flushes++; return nil }
func (s *recordingSink) Close() error { s.closed = true; return nil }

func TestReassembleOrdersBySequence(t *testing.T) {
	units := []*packet.TCPSegment{unit(2, "cc"), unit(0, "aa"), unit(1, "bb")}
	sink := &recordingSink{}

	n, err := Reassemble(units, sink)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "aabbcc", sink.String())
	assert.Equal(t, 3, sink.flushes, "one flush per unit")
}

func TestReassembleKeepsDuplicates(t *testing.T) {
	units := []*packet.TCPSegment{unit(1, "b"), unit(0, "a"), unit(1, "b")}
	sink := &recordingSink{}

	_, err := Reassemble(units, sink)
	require.NoError(t, err)
	assert.Equal(t, "abb", sink.String())
}

func TestReassembleEmpty(t *testing.T) {
	sink := &recordingSink{}
	n, err := Reassemble(nil, sink)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, sink.flushes)
}

func TestReassembleWriteError(t *testing.T) {
	sink := &recordingSink{failAt: 2}
	n, err := Reassemble([]*packet.TCPSegment{unit(0, "a"), unit(1, "b")}, sink)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestFileSinkTruncatesAndCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")

	for _, content := range []string{"first run, longer content", "second"} {
		sink, err := FileOpener(dir, "file.txt")()
		require.NoError(t, err)
		_, err = Reassemble([]*packet.TCPSegment{unit(0, content)}, sink)
		require.NoError(t, err)
		require.NoError(t, sink.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFileSinkBinarySafe(t *testing.T) {
	dir := t.TempDir()
	sink, err := OpenFile(dir, "out.bin")
	require.NoError(t, err)

	// A multi-byte rune split across two units must come out intact.
	r := []byte("é")
	_, err = Reassemble([]*packet.TCPSegment{unit(1, string(r[1:])), unit(0, "caf"+string(r[:1]))}, sink)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, "café", string(data))
}

func TestSessionFileName(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want string
	}{
		{"file.txt", 0, "file.txt"},
		{"file.txt", 1, "file.txt"},
		{"file.txt", 2, "file-2.txt"},
		{"file.txt", 12, "file-12.txt"},
		{"output", 3, "output-3"},
		{"archive.tar.gz", 2, "archive.tar-2.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionFileName(tt.name, tt.n))
		})
	}
}

func TestSessionFilesDoNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	for n, payload := range []string{"first", "second"} {
		sink, err := OpenFile(dir, SessionFileName("file.txt", n+1))
		require.NoError(t, err)
		_, err = Reassemble([]*packet.TCPSegment{unit(0, payload)}, sink)
		require.NoError(t, err)
		require.NoError(t, sink.Close())
	}

	first, err := os.ReadFile(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "file-2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(first))
	assert.Equal(t, "second", string(second))
}

func TestReassembleKeepsCharactersSplitAcrossUnits(t *testing.T) {
	text := []byte("café")
	units := []*packet.TCPSegment{
		unit(1, string(text[4:])),
		unit(0, string(text[:4])), // ends inside the two-byte é
	}

	sink := &recordingSink{}
	n, err := Reassemble(units, sink)
	require.NoError(t, err)
	assert.Equal(t, len(text), n)
	assert.Equal(t, "café", sink.String())
}
