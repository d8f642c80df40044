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

// Package wire is the bit-exact, little-endian framing layer: the one-byte
// header (low nibble = kind, high nibble reserved) and the kind-specific
// body that follows it. Nothing in this package touches connection state;
// it only encodes and decodes bytes, so it is trivially table-tested.
package wire

import (
	"fmt"
)

// Header is the low 4 bits of every datagram's first byte.
type Header uint8

const (
	Unreliable         Header = 0
	Ack                Header = 1
	AckExtra           Header = 2
	Connect            Header = 3
	Reject             Header = 4
	Heartbeat          Header = 5
	Disconnect         Header = 6
	Welcome            Header = 7
	ClientConnected    Header = 8
	ClientDisconnected Header = 9
	Reliable           Header = 10

	headerMask = 0x0F
)

func (h Header) String() string {
	switch h {
	case Unreliable:
		return "unreliable"
	case Ack:
		return "ack"
	case AckExtra:
		return "ack-extra"
	case Connect:
		return "connect"
	case Reject:
		return "reject"
	case Heartbeat:
		return "heartbeat"
	case Disconnect:
		return "disconnect"
	case Welcome:
		return "welcome"
	case ClientConnected:
		return "client-connected"
	case ClientDisconnected:
		return "client-disconnected"
	case Reliable:
		return "reliable"
	default:
		return fmt.Sprintf("header(%d)", uint8(h))
	}
}

// IsUserPayload reports whether frames of this kind carry application bytes
// (as opposed to being protocol-internal).
func (h Header) IsUserPayload() bool {
	return h == Unreliable || h == Reliable
}

// EncodeHeaderByte packs a Header into the wire byte (high nibble zeroed;
// reserved for future protocol extension).
func EncodeHeaderByte(h Header) byte {
	return byte(h) & headerMask
}

// DecodeHeaderByte extracts the Header kind from a wire byte, ignoring the
// reserved high nibble so a future sender setting those bits doesn't break
// this receiver.
func DecodeHeaderByte(b byte) Header {
	return Header(b & headerMask)
}

// RejectReason is the one-byte reason code carried by a Reject frame.
type RejectReason uint8

const (
	RejectAlreadyConnected RejectReason = iota
	RejectServerFull
	RejectRejected
	RejectCustom
)

func (r RejectReason) String() string {
	switch r {
	case RejectAlreadyConnected:
		return "already-connected"
	case RejectServerFull:
		return "server-full"
	case RejectRejected:
		return "rejected"
	case RejectCustom:
		return "custom"
	default:
		return fmt.Sprintf("reject(%d)", uint8(r))
	}
}

// DisconnectReason is the one-byte reason code carried by a Disconnect
// frame, and also used locally to describe why a Connection tore down even
// when no frame was ever sent (e.g. TimedOut).
type DisconnectReason uint8

const (
	DisconnectNeverConnected DisconnectReason = iota
	DisconnectTransportError
	DisconnectTimedOut
	DisconnectKicked
	DisconnectServerStopped
	DisconnectDisconnected
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectNeverConnected:
		return "never-connected"
	case DisconnectTransportError:
		return "transport-error"
	case DisconnectTimedOut:
		return "timed-out"
	case DisconnectKicked:
		return "kicked"
	case DisconnectServerStopped:
		return "server-stopped"
	case DisconnectDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("disconnect(%d)", uint8(r))
	}
}
