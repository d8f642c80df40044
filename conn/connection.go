/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package conn implements the reliable-delivery protocol for a single remote
// endpoint: sequencing, the ack bitfield, RTT-adaptive retransmission and
// heartbeat/timeout tracking. A Connection never spawns a goroutine and
// never takes a lock — every exported method here is only ever called from
// the owning Peer's tick(), so state mutation is naturally single-threaded.
package conn

import (
	"math"

	liberr "github.com/sabouaram/peerlink/errors"
	"github.com/sabouaram/peerlink/logger"
	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/metrics"
	"github.com/sabouaram/peerlink/transport"
	"github.com/sabouaram/peerlink/wire"
)

// minRetransmitMs is the retransmission timeout floor, applied before an RTT
// sample exists and whenever the computed RTO would otherwise be too tight
// for a LAN round trip's natural jitter.
const minRetransmitMs = 50

// ackWindow is the width of the duplicate-suppression bitfield: a Reliable
// frame arriving more than this many sequence numbers behind the newest one
// seen is treated as too old to matter rather than inspected bit-by-bit.
const ackWindow = 16

// pendingAck is an in-flight Reliable frame awaiting acknowledgement.
type pendingAck struct {
	bytes       []byte
	firstSentAt int64
	lastSentAt  int64
	retryCount  int
}

// Connection tracks one remote endpoint's reliable-delivery state. Owners
// (client.Client, server.Server) embed or hold a Connection per remote peer
// and drive it from their own tick().
type Connection struct {
	remote transport.Endpoint
	state  State
	id     uint16 // server-assigned client ID; 0 (unassigned) on the client side

	pool      *message.Pool
	transport transport.Transport
	log       logger.Logger
	metrics   metrics.Collector

	timeoutMs           int64
	heartbeatIntervalMs int64

	nextReliableSeq    uint16
	lastReceivedSeq    uint16
	receivedAny        bool
	receiveAckBitfield uint16
	pendingAcks        map[uint16]*pendingAck

	smoothedRtt float64
	rttVariance float64

	lastHeardFrom     int64
	heardFrom         bool
	lastHeartbeatSent int64
	pendingHeartbeat  uint64
	heartbeatOutstanding bool

	// OnMessage is invoked for each delivered user payload, reliable or not.
	OnMessage func(payload []byte, reliable bool)
	// OnDisconnected is invoked exactly once when the connection leaves the
	// Connected state for Disconnected, whether locally or peer-initiated.
	OnDisconnected func(reason wire.DisconnectReason, payload []byte)
}

// New builds a Connection in NotConnected state. Callers drive it to
// Connecting/Pending/Connected themselves (client/server own the handshake).
func New(remote transport.Endpoint, pool *message.Pool, t transport.Transport, log logger.Logger, timeoutMs, heartbeatIntervalMs int64) *Connection {
	return &Connection{
		remote:              remote,
		state:               NotConnected,
		pool:                pool,
		transport:           t,
		log:                 log,
		metrics:             metrics.Noop(),
		timeoutMs:           timeoutMs,
		heartbeatIntervalMs: heartbeatIntervalMs,
		pendingAcks:         make(map[uint16]*pendingAck),
	}
}

// SetMetrics wires a Collector other than the default no-op; call before
// the connection starts exchanging reliable frames.
func (c *Connection) SetMetrics(m metrics.Collector) {
	if m != nil {
		c.metrics = m
	}
}

func (c *Connection) Remote() transport.Endpoint { return c.remote }
func (c *Connection) State() State               { return c.state }
func (c *Connection) ID() uint16                 { return c.id }
func (c *Connection) SetID(id uint16)            { c.id = id }

// SetState forces a state transition, honoring the FSM's monotonicity
// invariant; handshake transitions (NotConnected->Connecting->Connected,
// etc.) are driven by client/server, which own handshake semantics.
func (c *Connection) SetState(s State) {
	if !c.state.CanTransitionTo(s) {
		return
	}
	c.state = s
}

// Touch marks nowMs as the last time any datagram was heard from this
// endpoint, resetting the idle-timeout clock. Called for every inbound
// datagram regardless of header kind.
func (c *Connection) Touch(nowMs int64) {
	c.lastHeardFrom = nowMs
	c.heardFrom = true
}

// sendRaw transmits a pre-built frame to the remote endpoint. A transport
// failure here is never transient background noise: per the engine's error
// model it ends the connection, so sendRaw wraps the failure in an
// errors.Error and tears the connection down with DisconnectTransportError
// before returning it to the caller.
func (c *Connection) sendRaw(b []byte) error {
	if err := c.transport.Send(c.remote, b); err != nil {
		wrapped := liberr.New(liberr.CodeTransportError, err)
		c.HandleDisconnect(wire.DisconnectTransportError, []byte(wrapped.Error()))
		return wrapped
	}
	return nil
}

// SendReliable assigns the next sequence number, frames the payload, sends
// it, and records it in pendingAcks for retransmission until acked.
func (c *Connection) SendReliable(nowMs int64, payload []byte) (uint16, error) {
	seq := c.nextReliableSeq
	c.nextReliableSeq++

	m := wire.EncodeReliable(c.pool, seq, payload)
	defer m.Release()
	raw := append([]byte(nil), m.Bytes()...)

	if err := c.sendRaw(raw); err != nil {
		return seq, err
	}
	c.pendingAcks[seq] = &pendingAck{bytes: raw, firstSentAt: nowMs, lastSentAt: nowMs}
	c.metrics.ReliableSent()
	return seq, nil
}

// SendUnreliable frames and sends payload with no delivery guarantee.
func (c *Connection) SendUnreliable(payload []byte) error {
	m := wire.EncodeUnreliable(c.pool, payload)
	defer m.Release()
	return c.sendRaw(m.Bytes())
}

func (c *Connection) sendAck() error {
	m := wire.EncodeAck(c.pool, c.lastReceivedSeq, c.receiveAckBitfield)
	defer m.Release()
	return c.sendRaw(m.Bytes())
}

// HandleReliable applies the diff/bitfield duplicate-suppression algorithm
// to an inbound Reliable frame's sequence number and reports whether the
// payload is new and should be delivered to the application. An ack is sent
// unconditionally, since a duplicate's ack may itself have been lost.
func (c *Connection) HandleReliable(nowMs int64, seq uint16, payload []byte) (deliver bool, err error) {
	if !c.receivedAny {
		c.receivedAny = true
		c.lastReceivedSeq = seq
		c.receiveAckBitfield = 0
		if err = c.sendAck(); err != nil {
			return true, err
		}
		if c.OnMessage != nil {
			c.OnMessage(payload, true)
		}
		return true, nil
	}

	diff := int16(seq - c.lastReceivedSeq)
	switch {
	case diff > 0:
		// Bit i stands for lastReceivedSeq-1-i, so after advancing by diff the
		// previous newest sequence sits at bit diff-1.
		if diff > ackWindow {
			c.receiveAckBitfield = 0
		} else {
			c.receiveAckBitfield <<= uint16(diff)
			c.receiveAckBitfield |= uint16(1) << uint16(diff-1)
		}
		c.lastReceivedSeq = seq
		deliver = true
	case diff == 0:
		deliver = false
	default:
		if diff < -ackWindow {
			deliver = false
		} else {
			bit := uint16(1) << uint16(-diff-1)
			if c.receiveAckBitfield&bit != 0 {
				deliver = false
			} else {
				c.receiveAckBitfield |= bit
				deliver = true
			}
		}
	}

	if err = c.sendAck(); err != nil {
		return deliver, err
	}
	if deliver && c.OnMessage != nil {
		c.OnMessage(payload, true)
	}
	return deliver, nil
}

// HandleAck clears every pendingAck confirmed by ackedSeq and its bitfield,
// sampling RTT from first-attempt acknowledgements only (a retransmitted
// frame's ack can't be attributed to a single send, per Karn's algorithm).
func (c *Connection) HandleAck(nowMs int64, ackedSeq, bitfield uint16) {
	c.resolveAck(nowMs, ackedSeq)
	for i := uint16(0); i < ackWindow; i++ {
		if bitfield&(uint16(1)<<i) != 0 {
			c.resolveAck(nowMs, ackedSeq-1-i)
		}
	}
}

func (c *Connection) resolveAck(nowMs int64, seq uint16) {
	p, ok := c.pendingAcks[seq]
	if !ok {
		return
	}
	delete(c.pendingAcks, seq)
	c.metrics.ReliableAcked()
	if p.retryCount == 0 {
		c.sampleRtt(float64(nowMs - p.firstSentAt))
	}
}

// sampleRtt folds a new RTT sample into the smoothed estimate using the
// standard EWMA coefficients (alpha=1/8 for the mean, beta=1/4 for the
// mean deviation), the same weighting TCP's RTO estimator uses.
func (c *Connection) sampleRtt(sample float64) {
	if c.smoothedRtt == 0 {
		c.smoothedRtt = sample
		c.rttVariance = sample / 2
		return
	}
	delta := sample - c.smoothedRtt
	c.smoothedRtt += delta / 8
	c.rttVariance += (math.Abs(delta) - c.rttVariance) / 4
}

func (c *Connection) retransmitTimeoutMs() int64 {
	rto := c.smoothedRtt + 4*c.rttVariance
	if rto < minRetransmitMs {
		rto = minRetransmitMs
	}
	return int64(rto)
}

// HandleHeartbeat implements the symmetric echo model: a heartbeat carrying
// a timestamp this side is not already waiting on is a ping and gets echoed
// immediately; a heartbeat carrying exactly the timestamp this side last
// sent is the echo of its own ping, and yields an RTT sample instead of a
// second echo (otherwise every heartbeat would ping-pong forever).
func (c *Connection) HandleHeartbeat(nowMs int64, timestampMs uint64) error {
	if c.heartbeatOutstanding && timestampMs == c.pendingHeartbeat {
		c.heartbeatOutstanding = false
		c.sampleRtt(float64(nowMs) - float64(timestampMs))
		return nil
	}
	m := wire.EncodeHeartbeat(c.pool, timestampMs)
	defer m.Release()
	return c.sendRaw(m.Bytes())
}

func (c *Connection) sendHeartbeat(nowMs int64) error {
	c.lastHeartbeatSent = nowMs
	c.pendingHeartbeat = uint64(nowMs)
	c.heartbeatOutstanding = true
	m := wire.EncodeHeartbeat(c.pool, c.pendingHeartbeat)
	defer m.Release()
	return c.sendRaw(m.Bytes())
}

// HandleDisconnect transitions the connection to Disconnected on a
// peer-initiated teardown and fires OnDisconnected once.
func (c *Connection) HandleDisconnect(reason wire.DisconnectReason, payload []byte) {
	if c.state == Disconnected {
		return
	}
	c.SetState(Disconnected)
	if c.OnDisconnected != nil {
		c.OnDisconnected(reason, payload)
	}
}

// Disconnect sends a best-effort Disconnect frame and transitions locally;
// it does not wait for any acknowledgement, matching an unreliable teardown.
func (c *Connection) Disconnect(reason wire.DisconnectReason, payload []byte) error {
	if c.state == Disconnected {
		return nil
	}
	m := wire.EncodeDisconnect(c.pool, reason, payload)
	defer m.Release()
	err := c.transport.Send(c.remote, m.Bytes())
	c.SetState(Disconnected)
	if c.OnDisconnected != nil {
		c.OnDisconnected(reason, payload)
	}
	return err
}

// Tick runs one scheduling pass: retransmit overdue pendingAcks, send a
// heartbeat if the interval elapsed, and time out an idle connection. Peer
// calls this once per connection per tick(), after inbound processing.
func (c *Connection) Tick(nowMs int64) {
	if c.state == Disconnected || c.state == NotConnected {
		return
	}

	rto := c.retransmitTimeoutMs()
	for seq, p := range c.pendingAcks {
		if nowMs-p.lastSentAt >= rto {
			if err := c.sendRaw(p.bytes); err != nil {
				if c.log != nil {
					c.log.Warn("retransmit failed: " + err.Error())
				}
				return
			}
			p.lastSentAt = nowMs
			p.retryCount++
			c.pendingAcks[seq] = p
			c.metrics.ReliableRetransmitted()
		}
	}

	if c.state == Connected && nowMs-c.lastHeartbeatSent >= c.heartbeatIntervalMs {
		if err := c.sendHeartbeat(nowMs); err != nil {
			if c.log != nil {
				c.log.Warn("heartbeat send failed: " + err.Error())
			}
			return
		}
	}

	if c.heardFrom && nowMs-c.lastHeardFrom > c.timeoutMs {
		c.HandleDisconnect(wire.DisconnectTimedOut, nil)
	}
}

// PendingCount reports how many Reliable frames are awaiting acknowledgement,
// exposed for metrics and tests.
func (c *Connection) PendingCount() int { return len(c.pendingAcks) }

// SmoothedRTT returns the current RTT estimate in milliseconds, 0 before the
// first sample.
func (c *Connection) SmoothedRTT() float64 { return c.smoothedRtt }
