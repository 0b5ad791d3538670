// Package crc computes the reflected IEEE 802.3 CRC-32 used as the
// Ethernet frame-check sequence.
//
// The 256-entry table is built once at package initialisation; fifteen
// derived tables enable slice-by-16 processing of long inputs. Both paths
// produce identical results and match hash/crc32.ChecksumIEEE.
package crc

// Polynomial is the reversed IEEE 802.3 polynomial.
const Polynomial = 0xedb88320

var (
	table   [256]uint32
	slicing [16][256]uint32
)

func init() {
	for n := 0; n < 256; n++ {
		c := uint32(n)
		for k := 0; k < 8; k++ {
			if c&1 == 1 {
				c = Polynomial ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		table[n] = c
	}

	slicing[0] = table
	for n := 0; n < 256; n++ {
		v := table[n]
		for k := 1; k < 16; k++ {
			v = (v >> 8) ^ table[v&0xff]
			slicing[k][n] = v
		}
	}
}

// Checksum returns the CRC-32 of data, seeded with all ones.
func Checksum(data []byte) uint32 {
	return Update(0, data)
}

// Update continues a CRC-32 computation. Pass 0 to start a new one.
func Update(crc uint32, data []byte) uint32 {
	c := ^crc
	for len(data) >= 16 {
		c = slicing[15][data[0]^byte(c)] ^
			slicing[14][data[1]^byte(c>>8)] ^
			slicing[13][data[2]^byte(c>>16)] ^
			slicing[12][data[3]^byte(c>>24)] ^
			slicing[11][data[4]] ^
			slicing[10][data[5]] ^
			slicing[9][data[6]] ^
			slicing[8][data[7]] ^
			slicing[7][data[8]] ^
			slicing[6][data[9]] ^
			slicing[5][data[10]] ^
			slicing[4][data[11]] ^
			slicing[3][data[12]] ^
			slicing[2][data[13]] ^
			slicing[1][data[14]] ^
			slicing[0][data[15]]
		data = data[16:]
	}
	for _, b := range data {
		c = (c >> 8) ^ table[byte(c)^b]
	}
	return ^c
}

// ChecksumBytewise is the byte-at-a-time reference implementation.
func ChecksumBytewise(data []byte) uint32 {
	c := ^uint32(0)
	for _, b := range data {
		c = (c >> 8) ^ table[byte(c)^b]
	}
	return ^c
}
