// Package core defines session result types shared by both endpoints.
package core

import "time"

// Summary is the sender's completion summary.
type Summary struct {
	Segments     int       // number of units the input was split into
	Sent         int       // units written to the connection, retransmissions included
	Acknowledged int       // distinct units acknowledged by the receiver
	Started      time.Time // first inbound signal
	Finished     time.Time // outstanding set drained or connection lost
}

// Duration returns how long the exchange took.
func (s Summary) Duration() time.Duration {
	if s.Finished.IsZero() || s.Started.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// DeliveryRatio is the percentage of transmissions that ended up acknowledged.
// Returns 0 when nothing was sent.
func (s Summary) DeliveryRatio() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Acknowledged) / float64(s.Sent) * 100
}

// Complete reports whether every unit was acknowledged.
func (s Summary) Complete() bool {
	return s.Acknowledged == s.Segments
}

// ReceiveResult describes one finished receiver session.
type ReceiveResult struct {
	Accepted     int // units that passed checksum validation
	Rejected     int // units that failed validation or did not decode
	Dropped      int // units discarded by simulated channel loss
	Duplicates   int // accepted units whose sequence number was already stored
	BytesWritten int // bytes flushed to the sink during reassembly
}
