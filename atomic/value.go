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

// Package atomic provides generic, lock-protected value and map wrappers
// used for the few pieces of engine state that are touched from both the
// tick() goroutine and a transport's background I/O goroutine: Peer's
// endpoint-to-Connection index, read by the transport's OnDisconnected
// callback, which may run outside tick() as well as from inside it.
//
// The core protocol state (Connection fields, pendingAcks, the allocator)
// is NOT wrapped here: per §5, all of that mutates only inside tick() on a
// single goroutine and needs no synchronization. This package exists for
// the narrow cross-goroutine surface at the edges.
package atomic

import "sync"

// Value is a generic, mutex-protected box for a single value of type T.
type Value[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewValue builds a Value initialized to init.
func NewValue[T any](init T) *Value[T] {
	return &Value[T]{v: init}
}

// Load returns the current value.
func (o *Value[T]) Load() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.v
}

// Store replaces the current value.
func (o *Value[T]) Store(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v = v
}

// Swap replaces the current value and returns the previous one.
func (o *Value[T]) Swap(v T) T {
	o.mu.Lock()
	defer o.mu.Unlock()
	old := o.v
	o.v = v
	return old
}

// Update atomically replaces the value with the result of fn applied to the
// current value.
func (o *Value[T]) Update(fn func(T) T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v = fn(o.v)
}
