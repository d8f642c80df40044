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

package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"

	liberr "github.com/sabouaram/peerlink/errors"
	"github.com/sabouaram/peerlink/protocol"
)

// MaxDatagramSize is large enough for any frame this engine emits; a
// datagram this size on the wire would already be fragmented by IP, but the
// engine itself never builds one this big (see Non-goals: no fragmentation).
const MaxDatagramSize = 65507

// UDPTransport is the default Transport, one goroutine reading a single
// *net.UDPConn and tagging each inbound datagram with its source address —
// the same shape as a classic UDP listener loop. It keeps no queue of its
// own: every datagram is copied and handed to onData straight away, and any
// drop-oldest backpressure is up to the onData receiver.
type UDPTransport struct {
	conn       *net.UDPConn
	socketSize int

	mu     sync.RWMutex
	local  Endpoint
	closed bool

	onData         func(b []byte, from Endpoint)
	onConnected    func(ep Endpoint)
	onDisconnected func(ep Endpoint, err error)

	seen sync.Map // Endpoint -> struct{}, tracks which endpoints we've already announced onConnected for
}

// NewUDP builds a UDPTransport. socketBufferSize configures the OS receive/
// send buffer hint (§6 Configuration: socketBufferSize, default 1MB).
func NewUDP(socketBufferSize int) *UDPTransport {
	if socketBufferSize <= 0 {
		socketBufferSize = 1024 * 1024
	}
	return &UDPTransport{socketSize: socketBufferSize}
}

func (t *UDPTransport) SetOnData(fn func(b []byte, from Endpoint))         { t.onData = fn }
func (t *UDPTransport) SetOnConnected(fn func(ep Endpoint))                { t.onConnected = fn }
func (t *UDPTransport) SetOnDisconnected(fn func(ep Endpoint, err error))  { t.onDisconnected = fn }

func (t *UDPTransport) Start(port int) error {
	laddr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return liberr.New(liberr.CodeTransportError, fmt.Errorf("listen on port %d: %w", port, err))
	}
	_ = conn.SetReadBuffer(t.socketSize)
	_ = conn.SetWriteBuffer(t.socketSize)

	t.mu.Lock()
	t.conn = conn
	a := conn.LocalAddr().(*net.UDPAddr)
	t.local = NewEndpoint(a.IP.String(), a.Port, a.Zone)
	t.mu.Unlock()

	go t.readLoop()
	return nil
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			t.mu.RLock()
			closed := t.closed
			t.mu.RUnlock()
			if closed {
				return
			}
			t.reportReadError(err)
			continue
		}
		ep := NewEndpoint(addr.IP.String(), addr.Port, addr.Zone)

		if _, existed := t.seen.LoadOrStore(ep, struct{}{}); !existed && t.onConnected != nil {
			t.onConnected(ep)
		}

		if t.onData != nil {
			// Copy out of the shared read buffer before handing off: the
			// engine's inbound queue may outlive this loop iteration.
			cp := make([]byte, n)
			copy(cp, buf[:n])
			t.onData(cp, ep)
		}
	}
}

// reportReadError surfaces a persistent read fault from the socket as a
// transport-level disconnect for the endpoint the kernel attributed it to —
// on Linux, a connected-less UDP socket still gets ECONNREFUSED for an ICMP
// port-unreachable reply, and net.OpError.Addr carries the offending remote
// address in that case. Errors the kernel doesn't attribute to one peer are
// dropped without being reported, and the read loop keeps running regardless,
// since one bad peer must never stop delivery for every other one.
func (t *UDPTransport) reportReadError(err error) {
	if t.onDisconnected == nil {
		return
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) || opErr.Addr == nil {
		return
	}
	addr, ok := opErr.Addr.(*net.UDPAddr)
	if !ok {
		return
	}
	ep := NewEndpoint(addr.IP.String(), addr.Port, addr.Zone)
	t.onDisconnected(ep, liberr.New(liberr.CodeTransportError, err))
}

func (t *UDPTransport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *UDPTransport) Poll() error { return nil }

func (t *UDPTransport) Close(ep Endpoint) error {
	t.seen.Delete(ep)
	if t.onDisconnected != nil {
		t.onDisconnected(ep, nil)
	}
	return nil
}

func (t *UDPTransport) Send(ep Endpoint, b []byte) error {
	t.mu.RLock()
	conn := t.conn
	closed := t.closed
	t.mu.RUnlock()
	if closed || conn == nil {
		return liberr.New(liberr.CodeTransportError, fmt.Errorf("send on closed transport"))
	}
	addr := &net.UDPAddr{IP: net.ParseIP(ep.host), Port: ep.port, Zone: ep.zone}
	_, err := conn.WriteToUDP(b, addr)
	if err != nil {
		return liberr.New(liberr.CodeTransportError, err)
	}
	return nil
}

func (t *UDPTransport) LocalEndpoint() Endpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.local
}

// Network reports the socket family this Transport binds to, for
// configuration and logging to name rather than assume.
func (t *UDPTransport) Network() protocol.Network { return protocol.NetworkUDP }
