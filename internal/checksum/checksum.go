// Package checksum implements the 16-bit one's-complement Internet checksum.
package checksum

// Internet sums data as big-endian 16-bit words, folding every carry back
// into the low 16 bits, and returns the one's complement of the sum.
// A trailing odd byte is padded with a zero low byte.
//
// Callers zero the checksum field before computing or re-verifying.
func Internet(data []byte) uint16 {
	var sum uint32
	for i := 0; i < len(data); i += 2 {
		word := uint32(data[i]) << 8
		if i+1 < len(data) {
			word |= uint32(data[i+1])
		}

		sum += word
		if sum > 0xffff {
			sum = (sum & 0xffff) + 1
		}
	}
	return ^uint16(sum)
}
