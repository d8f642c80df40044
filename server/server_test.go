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

package server_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/peerlink/logger"
	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/server"
	"github.com/sabouaram/peerlink/transport"
	"github.com/sabouaram/peerlink/wire"
)

func sendConnect(tr *fakeTransport, from transport.Endpoint, pool *message.Pool) {
	m := wire.EncodeConnect(pool, nil)
	defer m.Release()
	tr.deliver(from, m.Bytes())
}

var _ = Describe("Server admission control", func() {
	var (
		tr   *fakeTransport
		pool *message.Pool
		clA  transport.Endpoint
		clB  transport.Endpoint
	)

	BeforeEach(func() {
		tr = newFakeTransport()
		pool = message.NewPool(message.DefaultBufferSize)
		clA = transport.NewEndpoint("10.0.0.1", 4000, "")
		clB = transport.NewEndpoint("10.0.0.2", 4001, "")
	})

	It("auto-accepts a connect when no HandleConnection callback is set", func() {
		s := server.New(tr, pool, logger.Noop(), 4, 5000, 1000, 2000)
		Expect(s.Start(7777)).To(Succeed())

		var connectedID uint16
		s.OnClientConnected = func(id uint16) { connectedID = id }

		sendConnect(tr, clA, pool)
		s.Tick()

		Expect(connectedID).To(Equal(uint16(1)))
		Expect(s.ClientCount()).To(Equal(1))
		c, ok := s.ClientByID(1)
		Expect(ok).To(BeTrue())
		Expect(c.State().String()).To(Equal("connected"))
		Expect(tr.countTo(clA)).To(BeNumerically(">=", 2)) // echoed Connect + Welcome
	})

	It("rejects a second client with ServerFull when maxClientCount is 1", func() {
		s := server.New(tr, pool, logger.Noop(), 1, 5000, 1000, 2000)
		Expect(s.Start(7778)).To(Succeed())

		sendConnect(tr, clA, pool)
		s.Tick()
		Expect(s.ClientCount()).To(Equal(1))

		before := tr.countTo(clB)
		sendConnect(tr, clB, pool)
		s.Tick()

		Expect(s.ClientCount()).To(Equal(1))
		// echoed Connect (1) + three Reject copies.
		Expect(tr.countTo(clB) - before).To(Equal(4))
	})

	It("ignores a repeated connect from an already-connected endpoint", func() {
		s := server.New(tr, pool, logger.Noop(), 4, 5000, 1000, 2000)
		Expect(s.Start(7779)).To(Succeed())

		sendConnect(tr, clA, pool)
		s.Tick()
		before := tr.countTo(clA)

		sendConnect(tr, clA, pool)
		s.Tick()

		Expect(tr.countTo(clA)).To(Equal(before))
		Expect(s.ClientCount()).To(Equal(1))
	})

	It("frees and reuses a client ID after disconnect", func() {
		s := server.New(tr, pool, logger.Noop(), 1, 5000, 1000, 2000)
		Expect(s.Start(7780)).To(Succeed())

		sendConnect(tr, clA, pool)
		s.Tick()
		Expect(s.ClientCount()).To(Equal(1))

		var disconnectedID uint16
		s.OnClientDisconnected = func(id uint16, reason wire.DisconnectReason) { disconnectedID = id }
		s.DisconnectClient(1, []byte{0x01})

		Expect(disconnectedID).To(Equal(uint16(1)))
		Expect(s.ClientCount()).To(Equal(0))

		sendConnect(tr, clB, pool)
		s.Tick()

		c, ok := s.ClientByID(1)
		Expect(ok).To(BeTrue())
		Expect(c.Remote()).To(Equal(clB))
	})

	It("relays a message matching the filter to other clients without invoking the server's own handler", func() {
		s := server.New(tr, pool, logger.Noop(), 4, 5000, 1000, 2000)
		Expect(s.Start(7782)).To(Succeed())

		sendConnect(tr, clA, pool)
		s.Tick()
		sendConnect(tr, clB, pool)
		s.Tick()
		Expect(s.ClientCount()).To(Equal(2))

		s.MessageIDExtractor = func(payload []byte) (uint32, bool) {
			if len(payload) == 0 {
				return 0, false
			}
			return uint32(payload[0]), true
		}
		s.RelayFilter = func(id uint32) bool { return id == 42 }

		s.UseMessageHandlers = true
		handlerCalled := false
		s.RegisterMessageHandler(42, func(fromID uint16, payload []byte) { handlerCalled = true })

		received := false
		s.OnMessageReceived = func(fromID uint16, payload []byte, reliable bool) { received = true }

		before := tr.countTo(clB)
		relayed := wire.EncodeUnreliable(pool, []byte{42, 0xAA})
		raw := append([]byte(nil), relayed.Bytes()...)
		relayed.Release()
		tr.deliver(clA, raw)
		s.Tick()

		Expect(tr.countTo(clB)).To(BeNumerically(">", before))
		Expect(handlerCalled).To(BeFalse())
		Expect(received).To(BeFalse())
	})
})
