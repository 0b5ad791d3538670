// Package codec converts addresses and integers into fixed-width big-endian
// byte sequences for checksum and frame-check computation.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"firestige.xyz/ferry/internal/core"
)

const (
	macLen  = 6
	ipv4Len = 4
)

// MACToBytes parses a colon-delimited hardware address ("aa:bb:cc:dd:ee:ff").
// Every token is read as hexadecimal.
func MACToBytes(mac string) ([]byte, error) {
	tokens := strings.Split(mac, ":")
	if len(tokens) != macLen {
		return nil, fmt.Errorf("%w: %q has %d groups, want %d", core.ErrMalformedAddress, mac, len(tokens), macLen)
	}

	out := make([]byte, macLen)
	for i, tok := range tokens {
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", core.ErrMalformedAddress, mac, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// IPv4ToBytes parses a dotted-decimal address. Every token is read as decimal.
func IPv4ToBytes(ip string) ([]byte, error) {
	tokens := strings.Split(ip, ".")
	if len(tokens) != ipv4Len {
		return nil, fmt.Errorf("%w: %q has %d octets, want %d", core.ErrMalformedAddress, ip, len(tokens), ipv4Len)
	}

	out := make([]byte, ipv4Len)
	for i, tok := range tokens {
		v, err := strconv.ParseUint(tok, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", core.ErrMalformedAddress, ip, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// Uint encodes the low-order n bytes of v, most significant first.
// Values that do not fit are truncated silently.
func Uint(v uint64, n int) []byte {
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// Concat joins parts into one contiguous slice, preserving order.
func Concat(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}

	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
