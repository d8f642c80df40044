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

// Package server implements admission control over many remote endpoints:
// pending-connection arbitration, client-ID allocation, broadcast, and the
// relay filter that lets selected message IDs bypass the server's own
// handler and go straight back out to every other client.
package server

import (
	"sync"

	"github.com/sabouaram/peerlink/conn"
	"github.com/sabouaram/peerlink/logger"
	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/metrics"
	"github.com/sabouaram/peerlink/peer"
	"github.com/sabouaram/peerlink/transport"
	"github.com/sabouaram/peerlink/wire"
)

// rejectRetryCount is how many times a Reject frame is sent back-to-back,
// improving its odds of surviving a lossy link since rejection itself gets
// no acknowledgement.
const rejectRetryCount = 3

// Server admits and tracks many Connections, enforcing maxClientCount and
// allocating client IDs from a reusable pool.
type Server struct {
	*peer.Peer

	maxClientCount     int
	UseMessageHandlers bool
	ConnectTimeoutMs   int64
	Metrics            metrics.Collector

	mu                 sync.Mutex
	clients            map[uint16]*conn.Connection
	pendingConnections map[transport.Endpoint]*conn.Connection
	ids                *idAllocator

	// HandleConnection, if set, is invoked for every new pending connection
	// instead of auto-accepting it; the callback must eventually call
	// Accept or Reject.
	HandleConnection func(c *conn.Connection, userData []byte)

	// MessageIDExtractor and RelayFilter together implement the relay
	// filter: when both are set and the extracted ID passes RelayFilter,
	// the payload is rebroadcast to every other client and the server's own
	// handling of that payload is skipped. The rebroadcast is a freshly
	// encoded Unreliable frame carrying the payload; the sender's original
	// frame bytes (a Reliable header and sequence number) are not replayed.
	MessageIDExtractor func(payload []byte) (id uint32, ok bool)
	RelayFilter        func(id uint32) bool

	messageHandlers map[uint32]func(fromID uint16, payload []byte)

	OnClientConnected    func(id uint16)
	OnClientDisconnected func(id uint16, reason wire.DisconnectReason)
	OnMessageReceived    func(fromID uint16, payload []byte, reliable bool)
}

// New builds a Server bound to no port yet; call Start to begin accepting.
func New(t transport.Transport, pool *message.Pool, log logger.Logger, maxClientCount int, timeoutMs, heartbeatIntervalMs, connectTimeoutMs int64) *Server {
	s := &Server{
		maxClientCount:     maxClientCount,
		ConnectTimeoutMs:   connectTimeoutMs,
		Metrics:            metrics.Noop(),
		clients:            make(map[uint16]*conn.Connection),
		pendingConnections: make(map[transport.Endpoint]*conn.Connection),
		ids:                newIDAllocator(maxClientCount),
		messageHandlers:    make(map[uint32]func(fromID uint16, payload []byte)),
	}
	s.Peer = peer.New(t, pool, log, timeoutMs, heartbeatIntervalMs, s)
	return s
}

// RegisterMessageHandler associates id with fn, consulted only when
// UseMessageHandlers is true and no relay filter claims the message first.
func (s *Server) RegisterMessageHandler(id uint32, fn func(fromID uint16, payload []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageHandlers[id] = fn
}

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ClientByID looks up a connected client's Connection.
func (s *Server) ClientByID(id uint16) (*conn.Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	return c, ok
}

// HandleHandshake implements peer.Dispatcher: the server only expects
// Connect on this path; every other handshake-shaped header arriving here
// is either stray traffic from an unknown endpoint or a client-only frame
// misdirected at the server, both protocol violations to log and drop.
func (s *Server) HandleHandshake(nowMs int64, from transport.Endpoint, h wire.Header, m message.Message) {
	if h != wire.Connect {
		if s.Log != nil {
			s.Log.Warn("unexpected header from " + from.String() + ": " + h.String())
		}
		return
	}

	if existing, ok := s.ConnectionByEndpoint(from); ok {
		if existing.State() == conn.Connected {
			// AlreadyConnected never emits a frame (information-leak hardening).
			return
		}
		s.echoConnect(from)
		return
	}

	userData, err := wire.DecodeConnect(m)
	if err != nil {
		if s.Log != nil {
			s.Log.Warn("malformed connect from " + from.String() + ": " + err.Error())
		}
		return
	}

	c := conn.New(from, s.Pool, s.Transport, s.Log, s.TimeoutMs, s.HeartbeatIntervalMs)
	c.SetMetrics(s.Metrics)
	c.SetState(conn.Pending)
	c.Touch(nowMs)
	s.AddConnection(c)

	s.echoConnect(from)

	s.mu.Lock()
	s.pendingConnections[from] = c
	s.mu.Unlock()

	if s.HandleConnection == nil {
		s.Accept(c)
		return
	}
	s.HandleConnection(c, userData)
}

func (s *Server) echoConnect(ep transport.Endpoint) {
	m := wire.EncodeConnect(s.Pool, nil)
	defer m.Release()
	_ = s.Transport.Send(ep, m.Bytes())
}

// Accept admits a pending Connection, allocating it the ID at the front of
// the allocator's queue (lowest-first initially; freed IDs rejoin at the
// back). Calling Accept on a Connection not in pendingConnections is a
// no-op, matching the state-misuse error policy.
func (s *Server) Accept(c *conn.Connection) {
	s.mu.Lock()
	if _, ok := s.pendingConnections[c.Remote()]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pendingConnections, c.Remote())

	if len(s.clients) >= s.maxClientCount {
		s.mu.Unlock()
		s.Reject(c, wire.RejectServerFull, nil)
		return
	}

	id := s.ids.Pop()
	if id == 0 {
		s.mu.Unlock()
		if s.Log != nil {
			s.Log.Error("no available client IDs despite admission guard")
		}
		s.Reject(c, wire.RejectServerFull, nil)
		return
	}

	c.SetID(id)
	c.SetState(conn.Connected)
	c.OnMessage = s.makeMessageHandler(id)
	c.OnDisconnected = s.makeDisconnectHandler(id)
	s.clients[id] = c
	open := len(s.clients)
	s.mu.Unlock()

	welcome := wire.EncodeWelcome(s.Pool, id)
	_ = s.Transport.Send(c.Remote(), welcome.Bytes())
	welcome.Release()

	s.Metrics.ConnectionAccepted()
	s.Metrics.SetOpenConnections(open)
	s.broadcastClientChanged(wire.ClientConnected, id, id)

	if s.OnClientConnected != nil {
		s.OnClientConnected(id)
	}
}

// Reject removes c from pendingConnections and, for every reason but
// AlreadyConnected, sends the rejection three times before scheduling a
// grace-period close to let those retries drain.
func (s *Server) Reject(c *conn.Connection, reason wire.RejectReason, payload []byte) {
	s.mu.Lock()
	delete(s.pendingConnections, c.Remote())
	s.mu.Unlock()

	s.Metrics.ConnectionRejected(reason.String())

	if reason == wire.RejectAlreadyConnected {
		s.RemoveConnection(c.Remote())
		return
	}

	m := wire.EncodeReject(s.Pool, reason, payload)
	raw := append([]byte(nil), m.Bytes()...)
	m.Release()
	for i := 0; i < rejectRetryCount; i++ {
		_ = s.Transport.Send(c.Remote(), raw)
	}

	ep := c.Remote()
	s.ScheduleEvent(s.NowMs()+s.ConnectTimeoutMs, func() {
		s.RemoveConnection(ep)
	})
}

// DisconnectClient kicks a connected client with an optional payload.
func (s *Server) DisconnectClient(id uint16, payload []byte) {
	s.mu.Lock()
	c, ok := s.clients[id]
	s.mu.Unlock()
	if !ok {
		if s.Log != nil {
			s.Log.Warn("disconnectClient on unknown client id")
		}
		return
	}
	_ = c.Disconnect(wire.DisconnectKicked, payload)
}

func (s *Server) makeMessageHandler(id uint16) func(payload []byte, reliable bool) {
	return func(payload []byte, reliable bool) {
		if s.RelayFilter != nil && s.MessageIDExtractor != nil {
			if msgID, ok := s.MessageIDExtractor(payload); ok && s.RelayFilter(msgID) {
				s.relayToAllExcept(id, payload)
				return
			}
		}
		if s.UseMessageHandlers && s.MessageIDExtractor != nil {
			if msgID, ok := s.MessageIDExtractor(payload); ok {
				s.mu.Lock()
				h, ok2 := s.messageHandlers[msgID]
				s.mu.Unlock()
				if ok2 {
					h(id, payload)
					return
				}
			}
		}
		if s.OnMessageReceived != nil {
			s.OnMessageReceived(id, payload, reliable)
		}
	}
}

func (s *Server) makeDisconnectHandler(id uint16) func(reason wire.DisconnectReason, payload []byte) {
	return func(reason wire.DisconnectReason, payload []byte) {
		s.mu.Lock()
		c, ok := s.clients[id]
		if ok {
			delete(s.clients, id)
			s.ids.Push(id)
		}
		open := len(s.clients)
		s.mu.Unlock()
		if !ok {
			return
		}
		s.RemoveConnection(c.Remote())
		s.Metrics.SetOpenConnections(open)
		s.broadcastClientChanged(wire.ClientDisconnected, id, 0)
		if s.OnClientDisconnected != nil {
			s.OnClientDisconnected(id, reason)
		}
	}
}

// SendToAll broadcasts an unreliable payload to every connected client
// except exceptID (0 to exclude none); the frame is built once and shared
// across every Send.
func (s *Server) SendToAll(payload []byte, exceptID uint16) {
	m := wire.EncodeUnreliable(s.Pool, payload)
	raw := m.Bytes()
	s.forEachClientExcept(exceptID, func(c *conn.Connection) {
		_ = s.Transport.Send(c.Remote(), raw)
	})
	m.Release()
}

func (s *Server) relayToAllExcept(senderID uint16, payload []byte) {
	s.SendToAll(payload, senderID)
}

func (s *Server) broadcastClientChanged(h wire.Header, peerID uint16, exceptID uint16) {
	m := wire.EncodeClientChanged(s.Pool, h, peerID)
	raw := m.Bytes()
	s.forEachClientExcept(exceptID, func(c *conn.Connection) {
		_ = s.Transport.Send(c.Remote(), raw)
	})
	m.Release()
}

func (s *Server) forEachClientExcept(exceptID uint16, fn func(c *conn.Connection)) {
	s.mu.Lock()
	targets := make([]*conn.Connection, 0, len(s.clients))
	for id, c := range s.clients {
		if id == exceptID {
			continue
		}
		targets = append(targets, c)
	}
	s.mu.Unlock()
	for _, c := range targets {
		fn(c)
	}
}
