// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers wrap them with fmt.Errorf("...: %w") and match with errors.Is.
var (
	// Configuration errors
	ErrConfigInvalid = errors.New("ferry: invalid configuration")

	// Construction errors
	ErrMalformedAddress = errors.New("ferry: malformed address")

	// Wire errors
	ErrMalformedMessage = errors.New("ferry: malformed message")

	// Connection errors
	ErrConnClosed = errors.New("ferry: connection closed")
	ErrPeerClosed = errors.New("ferry: peer closed connection before transfer completed")

	// Trace decoding errors
	ErrPacketTooShort   = errors.New("ferry: packet too short")
	ErrUnsupportedProto = errors.New("ferry: unsupported protocol")
)
