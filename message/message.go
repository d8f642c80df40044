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

// Package message is the application-facing payload buffer: a cursor-based,
// typed reader/writer over a single datagram's worth of bytes, pool-backed
// so the engine doesn't allocate on every send/receive.
//
// Ownership rule (see the core spec's resource model): whoever calls Release
// on a Message they did not themselves allocate from the pool is a bug; the
// generation tag below turns a double-release into a caught error rather
// than silent corruption of a buffer some other goroutine is now using.
package message

import (
	"encoding/binary"
	"errors"
)

// DefaultBufferSize matches the teacher's socket package default and keeps
// one Message comfortably under a typical UDP MTU.
const DefaultBufferSize = 1200

// ErrOutOfRange is returned by a Read call when fewer bytes remain than requested.
var ErrOutOfRange = errors.New("message: read past end of buffer")

// ErrReleased is returned by any operation on a Message that has already
// been returned to its pool.
var ErrReleased = errors.New("message: use after release")

// Message is a single datagram's payload with a read/write cursor.
//
// A Message produced by Acquire starts empty and ready for writing (an
// outbound message); a Message produced by the transport via Wrap starts
// full and ready for reading (an inbound message). The cursor is shared
// between read and write: call Rewind to read back what was written.
type Message interface {
	// WriteByte/WriteUint16/WriteBytes append to the buffer at the current
	// cursor, growing it as needed, and advance the cursor.
	WriteByte(b byte) error
	WriteUint16(v uint16) error
	WriteBytes(b []byte) error

	// ReadByte/ReadUint16/ReadBytes consume from the current cursor,
	// returning ErrOutOfRange if insufficient bytes remain.
	ReadByte() (byte, error)
	ReadUint16() (uint16, error)
	ReadBytes(n int) ([]byte, error)

	// Rewind resets the cursor to 0 without discarding the buffer content,
	// so a just-written Message can be read back (e.g. for a relay echo).
	Rewind()

	// Remaining is how many unread bytes are left after the cursor.
	Remaining() int

	// Bytes returns the buffer's full written content, ignoring the cursor.
	Bytes() []byte

	// Len is len(Bytes()).
	Len() int

	// Release returns the Message to its pool. Idempotent: a second Release
	// is a silent no-op rather than a panic, but it is still a caller bug.
	Release()
}

// message is the pool-owned buffer; gen is bumped by Pool.Acquire every time
// the buffer is handed out, including to a different caller after a prior
// release. It is never compared against itself — see handle below.
type message struct {
	buf      []byte
	cursor   int
	pool     *Pool
	gen      uint64
	released bool
}

// handle is what Acquire/Wrap actually vest in the caller: a thin value that
// pins the generation its buffer had at hand-out time. A handle whose gen no
// longer matches its buffer's current gen is stale — the buffer has since
// been released and reacquired by someone else — and every operation on it,
// Release included, fails with ErrReleased instead of touching the buffer.
// This is what makes a double-release safe even when the second Release
// arrives after the buffer has already been recycled, not just before.
type handle struct {
	m   *message
	gen uint64
}

func (h *handle) checkAlive() error {
	if h.m.released || h.gen != h.m.gen {
		return ErrReleased
	}
	return nil
}

func (h *handle) WriteByte(b byte) error {
	if err := h.checkAlive(); err != nil {
		return err
	}
	m := h.m
	m.buf = append(m.buf[:m.cursor], b)
	m.cursor++
	return nil
}

func (h *handle) WriteUint16(v uint16) error {
	if err := h.checkAlive(); err != nil {
		return err
	}
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return h.WriteBytes(tmp[:])
}

func (h *handle) WriteBytes(b []byte) error {
	if err := h.checkAlive(); err != nil {
		return err
	}
	m := h.m
	m.buf = append(m.buf[:m.cursor], b...)
	m.cursor += len(b)
	return nil
}

func (h *handle) ReadByte() (byte, error) {
	if err := h.checkAlive(); err != nil {
		return 0, err
	}
	m := h.m
	if m.cursor >= len(m.buf) {
		return 0, ErrOutOfRange
	}
	b := m.buf[m.cursor]
	m.cursor++
	return b, nil
}

func (h *handle) ReadUint16() (uint16, error) {
	b, err := h.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (h *handle) ReadBytes(n int) ([]byte, error) {
	if err := h.checkAlive(); err != nil {
		return nil, err
	}
	m := h.m
	if m.cursor+n > len(m.buf) {
		return nil, ErrOutOfRange
	}
	b := m.buf[m.cursor : m.cursor+n]
	m.cursor += n
	return b, nil
}

func (h *handle) Rewind() {
	h.m.cursor = 0
}

func (h *handle) Remaining() int {
	m := h.m
	if m.cursor >= len(m.buf) {
		return 0
	}
	return len(m.buf) - m.cursor
}

func (h *handle) Bytes() []byte {
	return h.m.buf
}

func (h *handle) Len() int {
	return len(h.m.buf)
}

func (h *handle) Release() {
	if h.checkAlive() != nil {
		return
	}
	h.m.released = true
	if h.m.pool != nil {
		h.m.pool.put(h.m)
	}
}
