package crc

import (
	"hash/crc32"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", []byte{}, 0},
		{"nil", nil, 0},
		{"check string", []byte("123456789"), 0xcbf43926},
		{"single a", []byte("a"), 0xe8b7be43},
		{"fox", []byte("The quick brown fox jumps over the lazy dog"), 0x414fa339},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.input))
			assert.Equal(t, tt.want, ChecksumBytewise(tt.input))
		})
	}
}

func TestTableMatchesPolynomial(t *testing.T) {
	ieee := crc32.MakeTable(crc32.IEEE)
	for i := range table {
		assert.Equal(t, ieee[i], table[i], "table entry %d", i)
	}
}

func TestSlicingMatchesBytewise(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, size := range []int{1, 15, 16, 17, 31, 32, 33, 100, 1500, 4099} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(rng.UintN(256))
		}

		want := crc32.ChecksumIEEE(data)
		assert.Equal(t, want, Checksum(data), "slice-by-16, size %d", size)
		assert.Equal(t, want, ChecksumBytewise(data), "bytewise, size %d", size)
	}
}

func TestUpdateIsIncremental(t *testing.T) {
	data := []byte("frame check sequences are computed over address, type and payload")

	for split := 0; split <= len(data); split += 7 {
		c := Update(0, data[:split])
		c = Update(c, data[split:])
		assert.Equal(t, Checksum(data), c, "split at %d", split)
	}
}

func BenchmarkChecksum1500(b *testing.B) {
	data := make([]byte, 1500)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		Checksum(data)
	}
}

func BenchmarkChecksumBytewise1500(b *testing.B) {
	data := make([]byte, 1500)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		ChecksumBytewise(data)
	}
}
