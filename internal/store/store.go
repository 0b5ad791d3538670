// Package store reassembles accepted units in sequence order and persists
// their payloads.
package store

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"firestige.xyz/ferry/internal/packet"
)

// Sink is an append-only destination flushed after every unit.
type Sink interface {
	io.Writer
	Flush() error
	Close() error
}

// Opener creates a fresh sink for one finished session.
type Opener func() (Sink, error)

// FileSink buffers writes to a file.
type FileSink struct {
	f *os.File
	w *bufio.Writer
}

// OpenFile creates dir if needed and truncates dir/name.
func OpenFile(dir, name string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("create store file: %w", err)
	}
	return &FileSink{f: f, w: bufio.NewWriter(f)}, nil
}

// FileOpener returns an Opener for dir/name.
func FileOpener(dir, name string) Opener {
	return func() (Sink, error) {
		return OpenFile(dir, name)
	}
}

// SessionFileName names the output of the n-th receive session: name itself
// for the first, name with "-<n>" before the extension after that.
func SessionFileName(name string, n int) string {
	if n <= 1 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// Path returns the file's path.
func (s *FileSink) Path() string { return s.f.Name() }

func (s *FileSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *FileSink) Flush() error { return s.w.Flush() }

// Close flushes pending bytes and closes the file.
func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// Sort orders units by sequence number. Equal sequence numbers keep their
// arrival order.
func Sort(units []*packet.TCPSegment) {
	slices.SortStableFunc(units, func(a, b *packet.TCPSegment) int {
		return cmp.Compare(a.TCPHeader.SequenceNumber, b.TCPHeader.SequenceNumber)
	})
}

// Reassemble sorts units and appends each payload to sink in order,
// flushing after every unit. Duplicates are written as many times as they
// appear; completeness is the sender's concern. It returns the number of
// bytes written. Payloads are copied byte for byte, never decoded per unit.
func Reassemble(units []*packet.TCPSegment, sink Sink) (int, error) {
	Sort(units)

	written := 0
	for _, u := range units {
		n, err := sink.Write(u.Payload())
		written += n
		if err != nil {
			return written, fmt.Errorf("write unit %d: %w", u.Seq(), err)
		}
		if err := sink.Flush(); err != nil {
			return written, fmt.Errorf("flush unit %d: %w", u.Seq(), err)
		}
	}
	return written, nil
}
