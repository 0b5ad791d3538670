// Package log provides the process-wide logger: logrus behind a small
// interface, written to stdout and optionally to a rotating file.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"firestige.xyz/ferry/internal/config"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
}

const (
	DefaultPattern    = "%time [%level] %msg %field%n"
	DefaultTimeFormat = "2006-01-02 15:04:05.000"
)

var (
	mu     sync.RWMutex
	logger Logger = newDefault()
	output *MultiWriter
)

func newDefault() Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&formatter{pattern: DefaultPattern, time: DefaultTimeFormat})
	l.SetLevel(logrus.InfoLevel)
	return &logrusAdapter{entry: logrus.NewEntry(l)}
}

// GetLogger returns the global logger. It is usable before Init.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the global logger.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Init builds a logger from cfg and installs it globally.
func Init(cfg config.LogConfig) error {
	out := NewMultiWriter().Add(os.Stdout)
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return fmt.Errorf("file output requires 'path' field")
		}
		out.AddFileAppender(FileAppenderOpt{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.Rotation.MaxSizeMB,
			MaxBackups: cfg.File.Rotation.MaxBackups,
			MaxAge:     cfg.File.Rotation.MaxAgeDays,
			Compress:   cfg.File.Rotation.Compress,
		})
	}

	l, err := New(cfg, out)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := output
	logger, output = l, out
	mu.Unlock()
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Close releases the file appenders installed by Init.
func Close() error {
	mu.Lock()
	out := output
	output = nil
	mu.Unlock()
	if out == nil {
		return nil
	}
	return out.Close()
}

// New builds a logger writing to w.
func New(cfg config.LogConfig, w io.Writer) (Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: orDefault(cfg.TimeFormat, DefaultTimeFormat)})
	case "text", "":
		l.SetFormatter(&formatter{
			pattern: orDefault(cfg.Pattern, DefaultPattern),
			time:    orDefault(cfg.TimeFormat, DefaultTimeFormat),
		})
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
