package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/ferry/internal/core"
	"firestige.xyz/ferry/internal/fault"
	"firestige.xyz/ferry/internal/log"
	"firestige.xyz/ferry/internal/metrics"
	"firestige.xyz/ferry/internal/packet"
	"firestige.xyz/ferry/internal/store"
)

// Receiver validates inbound units and persists them when the connection
// closes. One Receiver may serve many connections; each gets its own Session.
type Receiver struct {
	policy fault.Policy
	open   store.Opener
	logger log.Logger
}

// NewReceiver returns a receiver that persists through open. A nil policy
// means no simulated loss.
func NewReceiver(policy fault.Policy, open store.Opener) *Receiver {
	if policy == nil {
		policy = fault.None{}
	}
	return &Receiver{
		policy: policy,
		open:   open,
		logger: log.GetLogger().WithField("role", "receiver"),
	}
}

// Serve runs one session on conn: it requests the first unit, answers every
// inbound unit with an acknowledgment or a new request, and reassembles the
// accepted units once conn reports io.EOF. Units received before any other
// read error are still persisted.
func (r *Receiver) Serve(ctx context.Context, conn Conn) (core.ReceiveResult, error) {
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()
	defer conn.Close()

	var result core.ReceiveResult
	sess := NewSession()

	loopErr := r.exchange(ctx, conn, sess, &result)

	n, err := r.persist(sess)
	result.BytesWritten = n
	if err != nil {
		return result, errors.Join(loopErr, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"accepted":   result.Accepted,
		"rejected":   result.Rejected,
		"dropped":    result.Dropped,
		"duplicates": result.Duplicates,
		"bytes":      result.BytesWritten,
	}).Info("session finished")
	return result, loopErr
}

func (r *Receiver) exchange(ctx context.Context, conn Conn, sess *Session, result *core.ReceiveResult) error {
	if err := conn.WriteMessage(ctx, packet.EncodeRequest()); err != nil {
		return fmt.Errorf("request first unit: %w", err)
	}

	for {
		data, err := conn.ReadMessage(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		reply := r.evaluate(data, sess, result)
		if err := conn.WriteMessage(ctx, reply); err != nil {
			return fmt.Errorf("reply: %w", err)
		}
	}
}

// evaluate decides the reply to one inbound message.
func (r *Receiver) evaluate(data []byte, sess *Session, result *core.ReceiveResult) []byte {
	if r.policy.ShouldDrop() {
		result.Dropped++
		metrics.UnitsReceivedTotal.WithLabelValues(metrics.OutcomeDropped).Inc()
		r.logger.Debug("unit lost in transit")
		return packet.EncodeRequest()
	}

	msg, err := packet.Decode(data)
	if err != nil || msg.Kind != packet.KindUnit || !packet.Validate(msg.Unit) {
		result.Rejected++
		metrics.UnitsReceivedTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		if err != nil {
			r.logger.WithError(err).Debug("unit rejected")
		} else {
			r.logger.WithField("kind", msg.Kind).Debug("unit failed checksum validation")
		}
		return packet.EncodeRequest()
	}

	seq := msg.Unit.Seq()
	if sess.Append(msg.Unit) {
		result.Duplicates++
		metrics.DuplicatesTotal.Inc()
		r.logger.WithField("seq", seq).Warn("duplicate unit stored")
	}
	result.Accepted++
	metrics.UnitsReceivedTotal.WithLabelValues(metrics.OutcomeAccepted).Inc()
	return packet.EncodeAck(seq)
}

func (r *Receiver) persist(sess *Session) (int, error) {
	units := sess.Drain()
	if r.open == nil {
		return 0, nil
	}

	sink, err := r.open()
	if err != nil {
		return 0, fmt.Errorf("open sink: %w", err)
	}
	n, err := store.Reassemble(units, sink)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	return n, err
}
