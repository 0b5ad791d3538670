package packet

// MaxSegmentSize is the default payload bound per unit.
const MaxSegmentSize = 1500

// Split cuts data into consecutive chunks of at most size bytes. Every chunk
// but the last has exactly size bytes. Chunks share data's backing array but
// are capacity-limited, so appending to one never overwrites its neighbour.
// Empty input yields no chunks; size <= 0 falls back to MaxSegmentSize.
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		size = MaxSegmentSize
	}

	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for off := 0; off < len(data); off += size {
		end := min(off+size, len(data))
		chunks = append(chunks, data[off:end:end])
	}
	return chunks
}
