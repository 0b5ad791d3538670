// Package fault simulates an unreliable channel: units may be lost before
// the receiver evaluates them, or corrupted before the sender transmits them.
package fault

import (
	"math/rand/v2"
	"sync"
	"time"

	"firestige.xyz/ferry/internal/packet"
)

// Default one-in-n ratios.
const (
	DefaultLossOneIn    = 3
	DefaultCorruptOneIn = 10
)

// Policy decides channel faults. Implementations must never mutate the unit
// handed to Corrupt; the sender retransmits it later.
type Policy interface {
	// ShouldDrop reports whether the next inbound unit is lost.
	ShouldDrop() bool
	// Corrupt returns the unit to transmit: unit itself, or a damaged copy.
	Corrupt(unit *packet.TCPSegment) *packet.TCPSegment
}

// None never fires.
type None struct{}

func (None) ShouldDrop() bool                                   { return false }
func (None) Corrupt(unit *packet.TCPSegment) *packet.TCPSegment { return unit }

// Fires draws uniformly from [0, n) and reports whether the draw equals 1.
// The fire probability is therefore 1/n for n >= 2 and zero for n <= 1.
func Fires(r *rand.Rand, n int) bool {
	if n <= 1 {
		return false
	}
	return r.IntN(n) == 1
}

// ShiftPayload returns a deep copy of unit with every payload byte shifted
// right by an amount drawn uniformly from [1, 8].
func ShiftPayload(r *rand.Rand, unit *packet.TCPSegment) *packet.TCPSegment {
	c := unit.Clone()
	p := c.IPv4Packet.EthernetFrame.Payload
	for i := range p {
		p[i] >>= uint(r.IntN(8) + 1)
	}
	return c
}

// Random is the probabilistic Policy. LossOneIn and CorruptOneIn follow the
// Fires rule; values <= 1 disable the respective fault.
type Random struct {
	LossOneIn    int
	CorruptOneIn int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom seeds a PCG source. A zero seed draws one from the clock.
func NewRandom(lossOneIn, corruptOneIn int, seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{
		LossOneIn:    lossOneIn,
		CorruptOneIn: corruptOneIn,
		rng:          rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// ShouldDrop implements Policy.
func (p *Random) ShouldDrop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Fires(p.rng, p.LossOneIn)
}

// Corrupt implements Policy.
func (p *Random) Corrupt(unit *packet.TCPSegment) *packet.TCPSegment {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !Fires(p.rng, p.CorruptOneIn) {
		return unit
	}
	return ShiftPayload(p.rng, unit)
}
