package trace

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/gopacket/pcapgo"
)

// Record is one decoded pcap record.
type Record struct {
	Timestamp time.Time
	Frame
}

// ReadFile decodes every record of a pcap file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read trace header: %w", err)
	}

	var records []Record
	for i := 0; ; i++ {
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("read record %d: %w", i, err)
		}
		frame, err := Decode(data)
		if err != nil {
			return records, fmt.Errorf("decode record %d: %w", i, err)
		}
		records = append(records, Record{Timestamp: ci.Timestamp, Frame: frame})
	}
}

// SeqStat aggregates the transmissions of one sequence number.
type SeqStat struct {
	Seq           uint32
	Transmissions int
	PayloadBytes  int // payload length of the last transmission
}

// Summarize counts transmissions per sequence number, ascending.
func Summarize(records []Record) []SeqStat {
	bySeq := make(map[uint32]*SeqStat)
	for _, rec := range records {
		st, ok := bySeq[rec.Seq]
		if !ok {
			st = &SeqStat{Seq: rec.Seq}
			bySeq[rec.Seq] = st
		}
		st.Transmissions++
		st.PayloadBytes = len(rec.Payload)
	}

	stats := make([]SeqStat, 0, len(bySeq))
	for _, st := range bySeq {
		stats = append(stats, *st)
	}
	slices.SortFunc(stats, func(a, b SeqStat) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return stats
}
