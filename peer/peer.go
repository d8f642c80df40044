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

// Package peer holds the shared engine every Client and Server embeds: a
// monotonic clock, the tick() dispatch loop, the thread-safe inbound
// datagram queue fed by the transport's background reader, and the
// delayed-event scheduler used for heartbeats and grace-period closes.
package peer

import (
	"sync"
	"time"

	syncmap "github.com/sabouaram/peerlink/atomic"
	"github.com/sabouaram/peerlink/conn"
	liberr "github.com/sabouaram/peerlink/errors"
	"github.com/sabouaram/peerlink/logger"
	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/transport"
	"github.com/sabouaram/peerlink/wire"
)

// inboundQueueSize bounds the thread-safe FIFO between the transport's
// background reader and tick(); once full, the oldest datagram is dropped
// rather than blocking the reader.
const inboundQueueSize = 1024

type inboundDatagram struct {
	from transport.Endpoint
	data []byte
}

// Dispatcher resolves the headers tick() cannot hand to an existing
// Connection on its own: Connect (may create a Connection), Reject,
// Welcome, ClientConnected and ClientDisconnected. Client and Server each
// implement it with their own handshake semantics.
type Dispatcher interface {
	HandleHandshake(nowMs int64, from transport.Endpoint, h wire.Header, m message.Message)
}

// Peer is the base embedded by client.Client and server.Server. All of its
// exported methods are intended to run only from inside tick(); the one
// exception is enqueue, invoked by the transport's background goroutine.
type Peer struct {
	Transport transport.Transport
	Pool      *message.Pool
	Log       logger.Logger

	dispatcher Dispatcher
	startedAt  time.Time

	inboundMu sync.Mutex
	inbound   []inboundDatagram

	events *eventScheduler

	// connections is reachable from outside tick() (the transport's
	// OnDisconnected callback, which the UDP transport can invoke from its
	// background read goroutine, looks connections up here), so it is the one
	// piece of Peer state backed by atomic.Map rather than the tick()-only
	// discipline the rest of the engine relies on.
	connections *syncmap.Map[transport.Endpoint, *conn.Connection]

	TimeoutMs           int64
	HeartbeatIntervalMs int64
}

// New builds a Peer. Start still needs to be called to bind the transport.
func New(t transport.Transport, pool *message.Pool, log logger.Logger, timeoutMs, heartbeatIntervalMs int64, dispatcher Dispatcher) *Peer {
	return &Peer{
		Transport:           t,
		Pool:                pool,
		Log:                 log,
		dispatcher:          dispatcher,
		events:              newEventScheduler(),
		connections:         syncmap.NewMap[transport.Endpoint, *conn.Connection](),
		TimeoutMs:           timeoutMs,
		HeartbeatIntervalMs: heartbeatIntervalMs,
	}
}

// Start anchors the monotonic clock, wires the transport callbacks, takes a
// reference on the shared Message pool (the pool is only torn down once the
// last active peer releases its reference), and binds the given port.
func (p *Peer) Start(port int) error {
	p.startedAt = time.Now()
	p.Pool.Ref()

	p.Transport.SetOnData(p.enqueue)
	p.Transport.SetOnConnected(func(transport.Endpoint) {})
	p.Transport.SetOnDisconnected(func(ep transport.Endpoint, err error) {
		if c, ok := p.connections.Get(ep); ok {
			var payload []byte
			if err != nil {
				payload = []byte(liberr.New(liberr.CodeTransportError, err).Error())
			}
			c.HandleDisconnect(wire.DisconnectTransportError, payload)
		}
	})

	return p.Transport.Start(port)
}

// Stop releases the transport and the pool reference taken in Start.
func (p *Peer) Stop() error {
	p.Pool.Unref()
	return p.Transport.Shutdown()
}

// NowMs returns milliseconds elapsed since Start, the clock every Connection
// timestamp on this Peer is expressed against.
func (p *Peer) NowMs() int64 { return time.Since(p.startedAt).Milliseconds() }

// enqueue is the transport's OnData callback: it must return promptly, so it
// only appends to the thread-safe FIFO tick() drains.
func (p *Peer) enqueue(b []byte, from transport.Endpoint) {
	p.inboundMu.Lock()
	defer p.inboundMu.Unlock()
	if len(p.inbound) >= inboundQueueSize {
		p.inbound = p.inbound[1:]
	}
	p.inbound = append(p.inbound, inboundDatagram{from: from, data: b})
}

// ScheduleEvent queues fn to run the first time Tick observes nowMs >= dueMs.
func (p *Peer) ScheduleEvent(dueMs int64, fn func()) { p.events.Schedule(dueMs, fn) }

// AddConnection registers c under its remote endpoint.
func (p *Peer) AddConnection(c *conn.Connection) {
	p.connections.Set(c.Remote(), c)
}

// RemoveConnection drops c from the endpoint index and releases whatever
// transport-level bookkeeping the Transport keeps for ep (e.g. the UDP
// transport's announced-endpoint set), so a churned endpoint doesn't linger
// there forever.
func (p *Peer) RemoveConnection(ep transport.Endpoint) {
	_ = p.Transport.Close(ep)
	p.connections.Delete(ep)
}

// ConnectionByEndpoint looks up the Connection for ep, if any.
func (p *Peer) ConnectionByEndpoint(ep transport.Endpoint) (*conn.Connection, bool) {
	return p.connections.Get(ep)
}

// Connections returns a snapshot slice of all registered connections, safe
// to range over without holding the Peer's lock.
func (p *Peer) Connections() []*conn.Connection {
	snap := p.connections.Snapshot()
	out := make([]*conn.Connection, 0, len(snap))
	for _, c := range snap {
		out = append(out, c)
	}
	return out
}

// Tick drains the inbound queue, fires due delayed events, then runs each
// connection's retransmit/heartbeat/timeout scan — matching the ordering
// the engine commits to: inbound first, delayed events next, heartbeats
// last within a single tick.
func (p *Peer) Tick() {
	now := p.NowMs()

	p.inboundMu.Lock()
	batch := p.inbound
	p.inbound = nil
	p.inboundMu.Unlock()

	for _, dg := range batch {
		p.dispatchOne(now, dg.from, dg.data)
	}

	p.events.Drain(now)

	for _, c := range p.Connections() {
		c.Tick(now)
	}
}

func (p *Peer) dispatchOne(now int64, from transport.Endpoint, raw []byte) {
	m := p.Pool.Wrap(raw)
	defer m.Release()

	h, err := wire.PeekHeader(m)
	if err != nil {
		if p.Log != nil {
			p.Log.Warn("dropping malformed datagram from " + from.String())
		}
		return
	}

	c, ok := p.ConnectionByEndpoint(from)
	if !ok || isHandshakeHeader(h) {
		p.dispatcher.HandleHandshake(now, from, h, m)
		return
	}

	c.Touch(now)
	switch h {
	case wire.Reliable:
		seq, payload, derr := wire.DecodeReliable(m)
		if derr != nil {
			p.logProtocolViolation(from, derr)
			return
		}
		if _, aerr := c.HandleReliable(now, seq, payload); aerr != nil && p.Log != nil {
			p.Log.Warn("ack send failed for " + from.String() + ": " + aerr.Error())
		}
	case wire.Unreliable:
		payload, derr := wire.DecodeUnreliable(m)
		if derr != nil {
			p.logProtocolViolation(from, derr)
			return
		}
		if c.OnMessage != nil {
			c.OnMessage(payload, false)
		}
	case wire.Ack, wire.AckExtra:
		ackedSeq, bitfield, derr := wire.DecodeAck(m)
		if derr != nil {
			p.logProtocolViolation(from, derr)
			return
		}
		c.HandleAck(now, ackedSeq, bitfield)
	case wire.Heartbeat:
		ts, derr := wire.DecodeHeartbeat(m)
		if derr != nil {
			p.logProtocolViolation(from, derr)
			return
		}
		if herr := c.HandleHeartbeat(now, ts); herr != nil && p.Log != nil {
			p.Log.Warn("heartbeat echo failed for " + from.String() + ": " + herr.Error())
		}
	case wire.Disconnect:
		reason, payload, derr := wire.DecodeDisconnect(m)
		if derr != nil {
			p.logProtocolViolation(from, derr)
			return
		}
		c.HandleDisconnect(reason, payload)
	default:
		if p.Log != nil {
			p.Log.Warn("unexpected header from " + from.String() + ": " + h.String())
		}
	}
}

func (p *Peer) logProtocolViolation(from transport.Endpoint, err error) {
	if p.Log != nil {
		p.Log.Warn("protocol violation from " + from.String() + ": " + err.Error())
	}
}

func isHandshakeHeader(h wire.Header) bool {
	switch h {
	case wire.Connect, wire.Reject, wire.Welcome, wire.ClientConnected, wire.ClientDisconnected:
		return true
	default:
		return false
	}
}
