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

package server

// idAllocator hands out client IDs in [1, max] lowest-first, with newly
// freed IDs going to the back of the queue so a just-vacated ID isn't
// immediately reused.
type idAllocator struct {
	available []uint16
}

func newIDAllocator(max int) *idAllocator {
	a := &idAllocator{available: make([]uint16, 0, max)}
	for i := 1; i <= max; i++ {
		a.available = append(a.available, uint16(i))
	}
	return a
}

// Pop returns the next available ID, or 0 if none remain.
func (a *idAllocator) Pop() uint16 {
	if len(a.available) == 0 {
		return 0
	}
	id := a.available[0]
	a.available = a.available[1:]
	return id
}

// Push returns id to the back of the queue.
func (a *idAllocator) Push(id uint16) {
	a.available = append(a.available, id)
}

// Len reports how many IDs remain available.
func (a *idAllocator) Len() int { return len(a.available) }
