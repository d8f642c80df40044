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

package wire

import (
	"fmt"

	"github.com/sabouaram/peerlink/message"
)

// decodeError wraps a truncated/malformed frame with the header kind that
// failed to parse, so callers can log a protocol violation without string
// matching the message.
type decodeError struct {
	kind Header
	err  error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("wire: malformed %s frame: %s", e.kind, e.err)
}
func (e *decodeError) Unwrap() error { return e.err }

func newHeader(pool *message.Pool, h Header) message.Message {
	m := pool.Acquire()
	_ = m.WriteByte(EncodeHeaderByte(h))
	return m
}

func decodeHeader(m message.Message) (Header, error) {
	m.Rewind()
	b, err := m.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("wire: empty datagram")
	}
	return DecodeHeaderByte(b), nil
}

// EncodeUnreliable frames a fire-and-forget user payload.
func EncodeUnreliable(pool *message.Pool, payload []byte) message.Message {
	m := newHeader(pool, Unreliable)
	_ = m.WriteBytes(payload)
	return m
}

// DecodeUnreliable strips the header and returns the raw payload.
func DecodeUnreliable(m message.Message) ([]byte, error) {
	m.Rewind()
	if _, err := m.ReadByte(); err != nil {
		return nil, &decodeError{Unreliable, err}
	}
	return m.ReadBytes(m.Remaining())
}

// EncodeReliable frames a user payload requiring acknowledgement, with its
// assigned sequence number immediately after the header.
func EncodeReliable(pool *message.Pool, seq uint16, payload []byte) message.Message {
	m := newHeader(pool, Reliable)
	_ = m.WriteUint16(seq)
	_ = m.WriteBytes(payload)
	return m
}

// DecodeReliable returns the sequence number and payload of a Reliable frame.
func DecodeReliable(m message.Message) (seq uint16, payload []byte, err error) {
	m.Rewind()
	if _, err = m.ReadByte(); err != nil {
		return 0, nil, &decodeError{Reliable, err}
	}
	if seq, err = m.ReadUint16(); err != nil {
		return 0, nil, &decodeError{Reliable, err}
	}
	payload, err = m.ReadBytes(m.Remaining())
	if err != nil {
		return 0, nil, &decodeError{Reliable, err}
	}
	return seq, payload, nil
}

// EncodeAck frames the receiver's acknowledgement of lastReceivedSeq plus
// the 16-bit bitfield of the preceding sequences also received.
func EncodeAck(pool *message.Pool, lastReceivedSeq, bitfield uint16) message.Message {
	m := newHeader(pool, Ack)
	_ = m.WriteUint16(lastReceivedSeq)
	_ = m.WriteUint16(bitfield)
	return m
}

// DecodeAck returns the acked sequence and bitfield of an Ack (or AckExtra)
// frame; both share the same body layout.
func DecodeAck(m message.Message) (ackedSeq, bitfield uint16, err error) {
	m.Rewind()
	if _, err = m.ReadByte(); err != nil {
		return 0, 0, &decodeError{Ack, err}
	}
	if ackedSeq, err = m.ReadUint16(); err != nil {
		return 0, 0, &decodeError{Ack, err}
	}
	if bitfield, err = m.ReadUint16(); err != nil {
		return 0, 0, &decodeError{Ack, err}
	}
	return ackedSeq, bitfield, nil
}

// EncodeConnect frames a client's handshake initiation, with optional
// application-supplied bytes the server's handleConnection callback inspects.
func EncodeConnect(pool *message.Pool, userData []byte) message.Message {
	m := newHeader(pool, Connect)
	_ = m.WriteBytes(userData)
	return m
}

// DecodeConnect returns the optional user bytes of a Connect frame.
func DecodeConnect(m message.Message) ([]byte, error) {
	m.Rewind()
	if _, err := m.ReadByte(); err != nil {
		return nil, &decodeError{Connect, err}
	}
	return m.ReadBytes(m.Remaining())
}

// EncodeReject frames a server's admission rejection. payload is only
// meaningful (and should otherwise be empty) when reason is RejectCustom.
func EncodeReject(pool *message.Pool, reason RejectReason, payload []byte) message.Message {
	m := newHeader(pool, Reject)
	_ = m.WriteByte(byte(reason))
	if reason == RejectCustom {
		_ = m.WriteBytes(payload)
	}
	return m
}

// DecodeReject returns the reason and, for RejectCustom, the payload.
func DecodeReject(m message.Message) (reason RejectReason, payload []byte, err error) {
	m.Rewind()
	if _, err = m.ReadByte(); err != nil {
		return 0, nil, &decodeError{Reject, err}
	}
	b, err := m.ReadByte()
	if err != nil {
		return 0, nil, &decodeError{Reject, err}
	}
	reason = RejectReason(b)
	if reason == RejectCustom {
		payload, err = m.ReadBytes(m.Remaining())
		if err != nil {
			return 0, nil, &decodeError{Reject, err}
		}
	}
	return reason, payload, nil
}

// EncodeHeartbeat frames a liveness probe carrying the sender's monotonic
// timestamp (milliseconds since Peer start), echoed back by the receiver so
// the original sender can derive RTT.
func EncodeHeartbeat(pool *message.Pool, timestampMs uint64) message.Message {
	m := newHeader(pool, Heartbeat)
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[i] = byte(timestampMs >> (8 * i))
	}
	_ = m.WriteBytes(tmp[:])
	return m
}

// DecodeHeartbeat returns the carried timestamp.
func DecodeHeartbeat(m message.Message) (timestampMs uint64, err error) {
	m.Rewind()
	if _, err = m.ReadByte(); err != nil {
		return 0, &decodeError{Heartbeat, err}
	}
	b, err := m.ReadBytes(8)
	if err != nil {
		return 0, &decodeError{Heartbeat, err}
	}
	for i := 0; i < 8; i++ {
		timestampMs |= uint64(b[i]) << (8 * i)
	}
	return timestampMs, nil
}

// EncodeDisconnect frames a graceful teardown notice. payload is only
// meaningful (and should otherwise be empty) when reason is DisconnectKicked.
func EncodeDisconnect(pool *message.Pool, reason DisconnectReason, payload []byte) message.Message {
	m := newHeader(pool, Disconnect)
	_ = m.WriteByte(byte(reason))
	if reason == DisconnectKicked {
		_ = m.WriteBytes(payload)
	}
	return m
}

// DecodeDisconnect returns the reason and, for DisconnectKicked, the payload.
func DecodeDisconnect(m message.Message) (reason DisconnectReason, payload []byte, err error) {
	m.Rewind()
	if _, err = m.ReadByte(); err != nil {
		return 0, nil, &decodeError{Disconnect, err}
	}
	b, err := m.ReadByte()
	if err != nil {
		return 0, nil, &decodeError{Disconnect, err}
	}
	reason = DisconnectReason(b)
	if reason == DisconnectKicked {
		payload, err = m.ReadBytes(m.Remaining())
		if err != nil {
			return 0, nil, &decodeError{Disconnect, err}
		}
	}
	return reason, payload, nil
}

// EncodeWelcome frames the server's acceptance, carrying the assigned
// 16-bit client ID.
func EncodeWelcome(pool *message.Pool, clientID uint16) message.Message {
	m := newHeader(pool, Welcome)
	_ = m.WriteUint16(clientID)
	return m
}

// DecodeWelcome returns the assigned client ID.
func DecodeWelcome(m message.Message) (clientID uint16, err error) {
	m.Rewind()
	if _, err = m.ReadByte(); err != nil {
		return 0, &decodeError{Welcome, err}
	}
	return m.ReadUint16()
}

// EncodeClientChanged frames a ClientConnected or ClientDisconnected
// broadcast, carrying the peer's client ID.
func EncodeClientChanged(pool *message.Pool, h Header, peerID uint16) message.Message {
	m := newHeader(pool, h)
	_ = m.WriteUint16(peerID)
	return m
}

// DecodeClientChanged returns the peer client ID of a ClientConnected or
// ClientDisconnected frame.
func DecodeClientChanged(m message.Message) (peerID uint16, err error) {
	m.Rewind()
	b, err := m.ReadByte()
	if err != nil {
		return 0, &decodeError{ClientConnected, err}
	}
	h := DecodeHeaderByte(b)
	peerID, err = m.ReadUint16()
	if err != nil {
		return 0, &decodeError{h, err}
	}
	return peerID, nil
}

// PeekHeader returns the Header kind without consuming the cursor, so the
// connection's dispatch switch can decide how to decode the rest.
func PeekHeader(m message.Message) (Header, error) {
	h, err := decodeHeader(m)
	m.Rewind()
	return h, err
}
