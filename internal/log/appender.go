package log

import (
	"errors"
	"io"
	"os"
)

// MultiWriter copies each log line to stdout and the configured appenders.
// Every appender sees every line; their errors are joined.
type MultiWriter struct {
	appenders []io.Writer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}

// Add registers an appender. nil is ignored.
func (m *MultiWriter) Add(w io.Writer) *MultiWriter {
	if w != nil {
		m.appenders = append(m.appenders, w)
	}
	return m
}

func (m *MultiWriter) Write(p []byte) (int, error) {
	var errs []error
	for _, w := range m.appenders {
		if _, err := w.Write(p); err != nil {
			errs = append(errs, err)
		}
	}
	return len(p), errors.Join(errs...)
}

// Close releases appenders that own a resource, such as rotated log files.
// Process streams like os.Stdout stay open.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.appenders {
		if _, std := w.(*os.File); std {
			continue
		}
		if c, ok := w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
