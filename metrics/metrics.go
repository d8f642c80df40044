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

// Package metrics exposes the engine's Prometheus instrumentation behind a
// small interface, so conn/server call into it unconditionally while a
// caller that doesn't want a /metrics endpoint can wire the no-op Collector
// instead of client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector is the instrumentation surface the core engine calls into.
// Implementations must be safe for concurrent use.
type Collector interface {
	ConnectionAccepted()
	ConnectionRejected(reason string)
	ReliableSent()
	ReliableAcked()
	ReliableRetransmitted()
	SetOpenConnections(n int)
}

type noop struct{}

// Noop returns a Collector that discards every observation, the default
// when a consumer doesn't register a Prometheus registry.
func Noop() Collector { return noop{} }

func (noop) ConnectionAccepted()          {}
func (noop) ConnectionRejected(string)    {}
func (noop) ReliableSent()                {}
func (noop) ReliableAcked()               {}
func (noop) ReliableRetransmitted()       {}
func (noop) SetOpenConnections(int)       {}

// Prometheus is the client_golang-backed Collector, registering vectors on reg.
type Prometheus struct {
	accepted      prometheus.Counter
	rejected      *prometheus.CounterVec
	sent          prometheus.Counter
	acked         prometheus.Counter
	retransmitted prometheus.Counter
	open          prometheus.Gauge
}

// NewPrometheus builds and registers the engine's metric vectors on reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	p := &Prometheus{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_accepted_total",
			Help: "Total connections admitted by the server.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_rejected_total",
			Help: "Total connections rejected by the server, by reason.",
		}, []string{"reason"}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reliable_messages_sent_total",
			Help: "Total reliable messages sent.",
		}),
		acked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reliable_messages_acked_total",
			Help: "Total reliable messages acknowledged.",
		}),
		retransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reliable_messages_retransmitted_total",
			Help: "Total reliable message retransmissions.",
		}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_connections",
			Help: "Current number of connected peers.",
		}),
	}
	reg.MustRegister(p.accepted, p.rejected, p.sent, p.acked, p.retransmitted, p.open)
	return p
}

func (p *Prometheus) ConnectionAccepted()            { p.accepted.Inc() }
func (p *Prometheus) ConnectionRejected(reason string) { p.rejected.WithLabelValues(reason).Inc() }
func (p *Prometheus) ReliableSent()                  { p.sent.Inc() }
func (p *Prometheus) ReliableAcked()                 { p.acked.Inc() }
func (p *Prometheus) ReliableRetransmitted()         { p.retransmitted.Inc() }
func (p *Prometheus) SetOpenConnections(n int)       { p.open.Set(float64(n)) }
