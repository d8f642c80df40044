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

package client_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/peerlink/client"
	"github.com/sabouaram/peerlink/conn"
	"github.com/sabouaram/peerlink/logger"
	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/transport"
	"github.com/sabouaram/peerlink/wire"
)

var _ = Describe("Client handshake", func() {
	var (
		tr     *fakeTransport
		pool   *message.Pool
		server transport.Endpoint
	)

	BeforeEach(func() {
		tr = newFakeTransport()
		pool = message.NewPool(message.DefaultBufferSize)
		server = transport.NewEndpoint("10.0.0.9", 9000, "")
	})

	It("transitions to Connected on Welcome and exposes the assigned ID", func() {
		cl := client.New(tr, pool, logger.Noop(), 5000, 1000)

		var connected bool
		cl.OnConnected = func() { connected = true }

		Expect(cl.Connect(server, nil, 3000)).To(Succeed())
		Expect(cl.State()).To(Equal(conn.Connecting))
		Expect(tr.last(server)).NotTo(BeNil())

		welcome := wire.EncodeWelcome(pool, 7)
		tr.deliver(server, welcome.Bytes())
		welcome.Release()
		cl.Tick()

		Expect(connected).To(BeTrue())
		Expect(cl.State()).To(Equal(conn.Connected))
		Expect(cl.ID()).To(Equal(uint16(7)))
	})

	It("reports ServerFull via OnConnectionFailed on Reject", func() {
		cl := client.New(tr, pool, logger.Noop(), 5000, 1000)

		var failedReason client.FailureReason
		var failed bool
		cl.OnConnectionFailed = func(reason client.FailureReason, payload []byte) {
			failed = true
			failedReason = reason
		}

		Expect(cl.Connect(server, nil, 3000)).To(Succeed())

		reject := wire.EncodeReject(pool, wire.RejectServerFull, nil)
		tr.deliver(server, reject.Bytes())
		reject.Release()
		cl.Tick()

		Expect(failed).To(BeTrue())
		Expect(failedReason).To(Equal(client.FailureServerFull))
		Expect(cl.State()).To(Equal(conn.Disconnected))
	})

	It("ignores handshake frames from an endpoint other than the server", func() {
		cl := client.New(tr, pool, logger.Noop(), 5000, 1000)
		Expect(cl.Connect(server, nil, 3000)).To(Succeed())

		other := transport.NewEndpoint("10.0.0.99", 1, "")
		welcome := wire.EncodeWelcome(pool, 3)
		tr.deliver(other, welcome.Bytes())
		welcome.Release()
		cl.Tick()

		Expect(cl.State()).To(Equal(conn.Connecting))
	})

	It("fires OnDisconnected exactly once on a local Disconnect after connecting", func() {
		cl := client.New(tr, pool, logger.Noop(), 5000, 1000)

		Expect(cl.Connect(server, nil, 3000)).To(Succeed())
		welcome := wire.EncodeWelcome(pool, 1)
		tr.deliver(server, welcome.Bytes())
		welcome.Release()
		cl.Tick()

		count := 0
		cl.OnDisconnected = func(reason wire.DisconnectReason, payload []byte) { count++ }

		Expect(cl.Disconnect()).To(Succeed())
		Expect(count).To(Equal(1))
		Expect(cl.State()).To(Equal(conn.Disconnected))
	})
})
