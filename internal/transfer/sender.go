package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"firestige.xyz/ferry/internal/core"
	"firestige.xyz/ferry/internal/fault"
	"firestige.xyz/ferry/internal/log"
	"firestige.xyz/ferry/internal/metrics"
	"firestige.xyz/ferry/internal/packet"
)

// Tracer observes every unit as it is put on the wire.
type Tracer interface {
	Record(unit *packet.TCPSegment) error
}

// SenderOptions configures a Sender. Zero values are usable.
type SenderOptions struct {
	Policy fault.Policy // nil means no faults
	Rand   *rand.Rand   // unit selection; nil seeds from the clock
	Tracer Tracer       // optional
}

// Sender owns the built units and the outstanding set.
type Sender struct {
	units       []packet.TCPSegment
	outstanding *Outstanding
	policy      fault.Policy
	rng         *rand.Rand
	tracer      Tracer
	logger      log.Logger
}

// NewSender prepares units for transmission. Unit i must carry sequence number i.
func NewSender(units []packet.TCPSegment, opts SenderOptions) *Sender {
	s := &Sender{
		units:       units,
		outstanding: NewOutstanding(len(units)),
		policy:      opts.Policy,
		rng:         opts.Rand,
		tracer:      opts.Tracer,
		logger:      log.GetLogger().WithField("role", "sender"),
	}
	if s.policy == nil {
		s.policy = fault.None{}
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return s
}

// Outstanding returns the number of unacknowledged units.
func (s *Sender) Outstanding() int { return s.outstanding.Len() }

// Run answers every inbound signal with one randomly chosen outstanding
// unit until all units are acknowledged, then closes conn. An empty unit
// list closes on the first signal. There is no retry limit; only ctx or the
// peer closing ends an incomplete run.
func (s *Sender) Run(ctx context.Context, conn Conn) (core.Summary, error) {
	summary := core.Summary{Segments: len(s.units)}

	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			summary.Finished = time.Now()
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("%w: %d of %d units outstanding", core.ErrPeerClosed, s.outstanding.Len(), len(s.units))
			}
			conn.Close()
			return summary, err
		}
		if summary.Started.IsZero() {
			summary.Started = time.Now()
		}

		s.handleSignal(data, &summary)

		if s.outstanding.Len() == 0 {
			summary.Finished = time.Now()
			metrics.SessionDurationSeconds.Observe(summary.Duration().Seconds())
			s.logger.WithFields(map[string]interface{}{
				"sent":         summary.Sent,
				"acknowledged": summary.Acknowledged,
			}).Info("all units acknowledged")
			return summary, conn.Close()
		}

		if err := s.transmit(ctx, conn); err != nil {
			summary.Finished = time.Now()
			conn.Close()
			return summary, err
		}
		summary.Sent++
	}
}

func (s *Sender) handleSignal(data []byte, summary *core.Summary) {
	msg, err := packet.Decode(data)
	if err != nil {
		s.logger.WithError(err).Warn("unrecognised signal, treating as request")
		return
	}

	switch msg.Kind {
	case packet.KindAck:
		if s.outstanding.Remove(msg.Ack) {
			summary.Acknowledged++
			metrics.AcksTotal.Inc()
			s.logger.WithField("seq", msg.Ack).Debug("unit acknowledged")
		} else {
			s.logger.WithField("seq", msg.Ack).Debug("acknowledgment for unit no longer outstanding")
		}
	case packet.KindRequest:
	default:
		s.logger.WithField("kind", msg.Kind).Warn("unexpected message, treating as request")
	}
}

func (s *Sender) transmit(ctx context.Context, conn Conn) error {
	seq := s.outstanding.Pick(s.rng)
	unit := &s.units[seq]

	out := s.policy.Corrupt(unit)
	if out != unit {
		metrics.UnitsCorruptedTotal.Inc()
		s.logger.WithField("seq", seq).Debug("unit corrupted in transit")
	}

	data, err := packet.EncodeUnit(out)
	if err != nil {
		return err
	}
	if s.tracer != nil {
		if err := s.tracer.Record(out); err != nil {
			s.logger.WithError(err).Warn("trace record failed")
		}
	}
	if err := conn.WriteMessage(ctx, data); err != nil {
		return fmt.Errorf("send unit %d: %w", seq, err)
	}
	metrics.UnitsSentTotal.Inc()
	return nil
}
