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

// Package client drives a single Connection against one server endpoint:
// the connect handshake with retry, welcome/reject handling, and the
// lifecycle events an application observes (connected, connectionFailed,
// disconnected, dataReceived).
package client

import (
	"github.com/sabouaram/peerlink/conn"
	"github.com/sabouaram/peerlink/logger"
	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/peer"
	"github.com/sabouaram/peerlink/transport"
	"github.com/sabouaram/peerlink/wire"
)

// connectRetryIntervalMs is how often an unanswered Connect is retransmitted
// while the handshake is outstanding; not part of the wire format, just this
// client's own retry cadence.
const connectRetryIntervalMs = 500

// FailureReason classifies why a connect attempt did not succeed.
type FailureReason uint8

const (
	FailureAlreadyConnected FailureReason = iota
	FailureServerFull
	FailureRejected
	FailureCustom
	FailureTimedOut
)

func (f FailureReason) String() string {
	switch f {
	case FailureAlreadyConnected:
		return "already-connected"
	case FailureServerFull:
		return "server-full"
	case FailureRejected:
		return "rejected"
	case FailureCustom:
		return "custom"
	case FailureTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

func fromRejectReason(r wire.RejectReason) FailureReason {
	switch r {
	case wire.RejectAlreadyConnected:
		return FailureAlreadyConnected
	case wire.RejectServerFull:
		return FailureServerFull
	case wire.RejectCustom:
		return FailureCustom
	default:
		return FailureRejected
	}
}

// Client owns exactly one Connection, to a single server endpoint.
type Client struct {
	*peer.Peer

	serverEndpoint transport.Endpoint
	connection     *conn.Connection
	id             uint16

	userData         []byte
	connectTimeoutMs int64
	connectStartedAt int64

	OnConnected        func()
	OnConnectionFailed func(reason FailureReason, payload []byte)
	OnDisconnected     func(reason wire.DisconnectReason, payload []byte)
	OnDataReceived     func(payload []byte, reliable bool)
	OnPeerConnected    func(peerID uint16)
	OnPeerDisconnected func(peerID uint16)
}

// New builds a Client over its own Transport and Message pool.
func New(t transport.Transport, pool *message.Pool, log logger.Logger, timeoutMs, heartbeatIntervalMs int64) *Client {
	cl := &Client{}
	cl.Peer = peer.New(t, pool, log, timeoutMs, heartbeatIntervalMs, cl)
	return cl
}

// ID returns the client ID assigned by the server's Welcome, valid only
// once OnConnected has fired.
func (cl *Client) ID() uint16 { return cl.id }

// State returns the underlying Connection's FSM state, NotConnected before
// the first Connect call.
func (cl *Client) State() conn.State {
	if cl.connection == nil {
		return conn.NotConnected
	}
	return cl.connection.State()
}

// Connect binds an ephemeral local port and begins the handshake against
// endpoint, retransmitting Connect until Welcome arrives or connectTimeoutMs
// elapses.
func (cl *Client) Connect(endpoint transport.Endpoint, userData []byte, connectTimeoutMs int64) error {
	if err := cl.Peer.Start(0); err != nil {
		return err
	}

	cl.serverEndpoint = endpoint
	cl.userData = userData
	cl.connectTimeoutMs = connectTimeoutMs

	cl.connection = conn.New(endpoint, cl.Pool, cl.Transport, cl.Log, cl.TimeoutMs, cl.HeartbeatIntervalMs)
	cl.connection.SetState(conn.Connecting)
	cl.connection.OnMessage = cl.handleMessage
	cl.connection.OnDisconnected = cl.handleDisconnected
	cl.AddConnection(cl.connection)

	cl.connectStartedAt = cl.NowMs()
	if err := cl.sendConnect(); err != nil {
		return err
	}
	cl.scheduleConnectRetry()
	return nil
}

func (cl *Client) sendConnect() error {
	m := wire.EncodeConnect(cl.Pool, cl.userData)
	defer m.Release()
	return cl.Transport.Send(cl.serverEndpoint, m.Bytes())
}

func (cl *Client) scheduleConnectRetry() {
	cl.ScheduleEvent(cl.NowMs()+connectRetryIntervalMs, func() {
		if cl.connection == nil || cl.connection.State() != conn.Connecting {
			return
		}
		if cl.NowMs()-cl.connectStartedAt >= cl.connectTimeoutMs {
			cl.connection.SetState(conn.Disconnected)
			cl.RemoveConnection(cl.serverEndpoint)
			if cl.OnConnectionFailed != nil {
				cl.OnConnectionFailed(FailureTimedOut, nil)
			}
			return
		}
		if err := cl.sendConnect(); err != nil && cl.Log != nil {
			cl.Log.Warn("connect retry send failed: " + err.Error())
		}
		cl.scheduleConnectRetry()
	})
}

// HandleHandshake implements peer.Dispatcher for the headers a generic
// Connection doesn't own: Welcome, Reject, and the server's presence
// broadcasts.
func (cl *Client) HandleHandshake(nowMs int64, from transport.Endpoint, h wire.Header, m message.Message) {
	if cl.connection == nil || !from.Equal(cl.serverEndpoint) {
		return
	}

	switch h {
	case wire.Welcome:
		if cl.connection.State() != conn.Connecting {
			return
		}
		id, err := wire.DecodeWelcome(m)
		if err != nil {
			cl.warnViolation(from, err)
			return
		}
		cl.id = id
		cl.connection.Touch(nowMs)
		cl.connection.SetState(conn.Connected)
		if cl.OnConnected != nil {
			cl.OnConnected()
		}
	case wire.Reject:
		if cl.connection.State() == conn.Disconnected {
			return
		}
		reason, payload, err := wire.DecodeReject(m)
		if err != nil {
			cl.warnViolation(from, err)
			return
		}
		cl.connection.SetState(conn.Disconnected)
		cl.RemoveConnection(cl.serverEndpoint)
		if cl.OnConnectionFailed != nil {
			cl.OnConnectionFailed(fromRejectReason(reason), payload)
		}
	case wire.ClientConnected:
		peerID, err := wire.DecodeClientChanged(m)
		if err == nil && cl.OnPeerConnected != nil {
			cl.OnPeerConnected(peerID)
		}
	case wire.ClientDisconnected:
		peerID, err := wire.DecodeClientChanged(m)
		if err == nil && cl.OnPeerDisconnected != nil {
			cl.OnPeerDisconnected(peerID)
		}
	default:
		if cl.Log != nil {
			cl.Log.Warn("unexpected handshake header from " + from.String() + ": " + h.String())
		}
	}
}

func (cl *Client) warnViolation(from transport.Endpoint, err error) {
	if cl.Log != nil {
		cl.Log.Warn("protocol violation from " + from.String() + ": " + err.Error())
	}
}

func (cl *Client) handleMessage(payload []byte, reliable bool) {
	if cl.OnDataReceived != nil {
		cl.OnDataReceived(payload, reliable)
	}
}

func (cl *Client) handleDisconnected(reason wire.DisconnectReason, payload []byte) {
	cl.RemoveConnection(cl.serverEndpoint)
	if cl.OnDisconnected != nil {
		cl.OnDisconnected(reason, payload)
	}
}

// SendReliable sends payload to the server with acknowledgement and
// retransmission; valid only once Connected.
func (cl *Client) SendReliable(payload []byte) (uint16, error) {
	return cl.connection.SendReliable(cl.NowMs(), payload)
}

// SendUnreliable sends payload to the server with no delivery guarantee.
func (cl *Client) SendUnreliable(payload []byte) error {
	return cl.connection.SendUnreliable(payload)
}

// Disconnect sends a best-effort Disconnect frame and tears down locally.
func (cl *Client) Disconnect() error {
	if cl.connection == nil {
		return nil
	}
	err := cl.connection.Disconnect(wire.DisconnectDisconnected, nil)
	cl.RemoveConnection(cl.serverEndpoint)
	return err
}

// Stop releases the client's transport and pool reference.
func (cl *Client) Stop() error { return cl.Peer.Stop() }
