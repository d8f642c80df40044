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

package message

import (
	"sync"
	"sync/atomic"
)

// Pool is a free-list of Message buffers with a high-water mark, matching
// the active-peer counter policy in the core spec's resource model: the
// pool is only meaningfully alive while at least one Peer references it.
type Pool struct {
	sp        sync.Pool
	nextGen   uint64
	live      int64 // acquired but not yet released
	highWater int64
	refs      int32 // active-peer reference count
}

// NewPool builds a Pool whose buffers start at size bytes of capacity.
func NewPool(size int) *Pool {
	p := &Pool{}
	p.sp.New = func() any {
		return &message{buf: make([]byte, 0, size)}
	}
	return p
}

// Acquire returns a Message ready for writing, empty and owned by the caller.
func (p *Pool) Acquire() Message {
	m := p.sp.Get().(*message)
	m.buf = m.buf[:0]
	m.cursor = 0
	m.released = false
	m.gen = atomic.AddUint64(&p.nextGen, 1)
	m.pool = p

	live := atomic.AddInt64(&p.live, 1)
	for {
		hw := atomic.LoadInt64(&p.highWater)
		if live <= hw || atomic.CompareAndSwapInt64(&p.highWater, hw, live) {
			break
		}
	}
	return &handle{m: m, gen: m.gen}
}

// Wrap returns a Message pre-loaded with b, ready for reading from the
// front. Used by the transport to hand inbound datagram bytes to the
// engine without an extra copy into a fresh buffer.
func (p *Pool) Wrap(b []byte) Message {
	h := p.Acquire().(*handle)
	h.m.buf = append(h.m.buf[:0], b...)
	h.m.cursor = 0
	return h
}

func (p *Pool) put(m *message) {
	atomic.AddInt64(&p.live, -1)
	m.pool = nil
	p.sp.Put(m)
}

// HighWater reports the largest number of concurrently live (acquired, not
// yet released) Messages this pool has observed.
func (p *Pool) HighWater() int64 {
	return atomic.LoadInt64(&p.highWater)
}

// Live reports the current number of acquired-but-unreleased Messages.
func (p *Pool) Live() int64 {
	return atomic.LoadInt64(&p.live)
}

// Ref increments the active-peer reference count; call once per Peer that
// starts using this pool.
func (p *Pool) Ref() {
	atomic.AddInt32(&p.refs, 1)
}

// Unref decrements the active-peer reference count and reports whether this
// was the last reference, i.e. whether the pool should now be torn down.
func (p *Pool) Unref() bool {
	return atomic.AddInt32(&p.refs, -1) <= 0
}
