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

// Package transport is the raw datagram I/O capability the engine consumes
// (§6 of the spec). The engine never imports net directly; it only depends
// on this interface, so a test can swap in a lossy, in-memory transport
// without touching conn/peer/client/server.
package transport

import "fmt"

// Endpoint is an opaque, comparable transport address. The default UDP
// transport backs it with host/port/zone; a test transport can back it with
// anything comparable.
type Endpoint struct {
	host string
	port int
	zone string
}

// NewEndpoint builds an Endpoint from its parts.
func NewEndpoint(host string, port int, zone string) Endpoint {
	return Endpoint{host: host, port: port, zone: zone}
}

func (e Endpoint) String() string {
	if e.zone != "" {
		return fmt.Sprintf("%s%%%s:%d", e.host, e.zone, e.port)
	}
	return fmt.Sprintf("%s:%d", e.host, e.port)
}

// Equal reports whether two endpoints name the same peer. Endpoint is a
// plain comparable struct, so == works too; Equal exists for readability at
// call sites and symmetry with other typed-equality APIs in this module.
func (e Endpoint) Equal(o Endpoint) bool { return e == o }

// IsZero reports whether e is the unset Endpoint value.
func (e Endpoint) IsZero() bool { return e == Endpoint{} }

// Transport is the capability the core consumes: send bytes to an endpoint,
// and deliver inbound (bytes, endpoint) plus transport-level connect/
// disconnect notifications. Implementations MUST make OnData/OnConnected/
// OnDisconnected safe to invoke from a background goroutine and MUST return
// promptly from those invocations — per the core's concurrency model, all
// that's expected of a callback is "hand the event to a thread-safe queue",
// not processing it.
type Transport interface {
	// Start binds the transport and begins delivering inbound datagrams.
	// port 0 requests an ephemeral port.
	Start(port int) error

	// Shutdown releases the transport's resources. Safe to call once;
	// further Send calls after Shutdown return an error.
	Shutdown() error

	// Poll is a no-op hook for transports that need an explicit pump
	// (the default UDP transport instead uses a background read goroutine,
	// so Poll returns nil immediately); kept for parity with §6.
	Poll() error

	// Close tears down any transport-level resources associated with a
	// single remote endpoint, without affecting other peers.
	Close(ep Endpoint) error

	// Send transmits b to ep as a single datagram.
	Send(ep Endpoint, b []byte) error

	// LocalEndpoint returns the bound local address, valid after Start.
	LocalEndpoint() Endpoint

	// SetOnData/SetOnConnected/SetOnDisconnected register the engine's
	// callbacks. Must be called before Start.
	SetOnData(fn func(b []byte, from Endpoint))
	SetOnConnected(fn func(ep Endpoint))
	SetOnDisconnected(fn func(ep Endpoint, err error))
}
