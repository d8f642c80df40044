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

package peer

import "container/heap"

// delayedEvent is a callback scheduled to fire at or after dueMs (milliseconds
// on the owning Peer's clock, per Peer.NowMs).
type delayedEvent struct {
	dueMs int64
	seq   int64 // tiebreaker: events due at the same millisecond fire in schedule order
	fn    func()
	index int
}

// eventHeap is a min-heap ordered by dueMs, then seq. There is no internal
// lock: every Peer touches its own heap only from inside tick(), the same
// single-threaded discipline Connection relies on.
type eventHeap []*delayedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].dueMs != h[j].dueMs {
		return h[i].dueMs < h[j].dueMs
	}
	return h[i].seq < h[j].seq
}

func (h *eventHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].index = i
	(*h)[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*delayedEvent)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// eventScheduler is the delayed-event min-heap a Peer drains each tick:
// heartbeat fan-out, grace-period connection closes, and any other
// fire-once-in-the-future work the engine schedules on itself.
type eventScheduler struct {
	h       eventHeap
	nextSeq int64
}

func newEventScheduler() *eventScheduler {
	s := &eventScheduler{}
	heap.Init(&s.h)
	return s
}

// Schedule queues fn to run the first time Drain is called with now >= dueMs.
func (s *eventScheduler) Schedule(dueMs int64, fn func()) {
	e := &delayedEvent{dueMs: dueMs, seq: s.nextSeq, fn: fn}
	s.nextSeq++
	heap.Push(&s.h, e)
}

// Drain fires, in due-time order, every scheduled event whose dueMs has
// elapsed by now.
func (s *eventScheduler) Drain(now int64) {
	for s.h.Len() > 0 && s.h[0].dueMs <= now {
		e := heap.Pop(&s.h).(*delayedEvent)
		e.fn()
	}
}

// Len reports how many events remain scheduled, exposed for tests.
func (s *eventScheduler) Len() int { return s.h.Len() }
