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

package atomic

import "sync"

// Map is a generic, mutex-protected map, used where a table must be
// readable from a goroutine other than the one running tick() (Peer's
// endpoint-to-Connection index, read by the transport's OnDisconnected
// callback).
type Map[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewMap builds an empty Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

func (o *Map[K, V]) Get(k K) (V, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.m[k]
	return v, ok
}

func (o *Map[K, V]) Set(k K, v V) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.m[k] = v
}

func (o *Map[K, V]) Delete(k K) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.m, k)
}

func (o *Map[K, V]) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.m)
}

// Range calls fn for every entry, stopping early if fn returns false. fn
// must not call back into the Map.
func (o *Map[K, V]) Range(fn func(K, V) bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for k, v := range o.m {
		if !fn(k, v) {
			return
		}
	}
}

// Snapshot returns a shallow copy of the map's contents.
func (o *Map[K, V]) Snapshot() map[K]V {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[K]V, len(o.m))
	for k, v := range o.m {
		out[k] = v
	}
	return out
}
