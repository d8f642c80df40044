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

// Package errors provides a small error-code hierarchy for the peer protocol
// engine: every fault the engine can raise carries a numeric, HTTP-status-shaped
// code, an optional parent error, and the call site that raised it.
//
// Unlike a generic error-code package, the codes here are closed over the
// protocol's own fault taxonomy (admission rejection, protocol violation,
// transport failure, resource exhaustion) so callers can switch on Code()
// without string matching.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Code classifies a fault the engine can produce, HTTP-status-shaped so the
// numeric value is self-describing to anyone who has seen a status code.
type Code uint16

const (
	// CodeNone is the zero value; Error values with this code are never
	// constructed by this package.
	CodeNone Code = 0

	// CodeProtocolViolation marks a malformed or unexpected frame: unknown
	// header kind, truncated body, or an ack referencing an unknown sequence.
	CodeProtocolViolation Code = 400

	// CodeAlreadyConnected is the admission-rejection reason for a remote
	// endpoint that already has a Connection in the server's client map.
	CodeAlreadyConnected Code = 409

	// CodeServerFull is the admission-rejection reason when maxClientCount
	// has been reached.
	CodeServerFull Code = 503

	// CodeRejected is a generic application-level admission rejection.
	CodeRejected Code = 403

	// CodeCustom carries a reason supplied by the application's handleConnection
	// callback, with a caller-defined payload.
	CodeCustom Code = 499

	// CodeTimedOut marks a connection or handshake that exceeded its deadline.
	CodeTimedOut Code = 408

	// CodeTransportError wraps a failure returned by the underlying Transport.
	CodeTransportError Code = 502

	// CodeStateMisuse marks an operation attempted against a Connection in
	// the wrong state (accept on non-pending, disconnect of an unknown client).
	CodeStateMisuse Code = 412

	// CodeResourceExhausted marks admission denied because no client ID
	// remains in availableIds; should be unreachable given the admission guard.
	CodeResourceExhausted Code = 507

	// CodeInvalidConfig marks a configuration value that failed validation
	// before the engine started (e.g. MaxClientCount <= 0).
	CodeInvalidConfig Code = 422
)

// String renders the code the way an HTTP status would be logged.
func (c Code) String() string {
	switch c {
	case CodeProtocolViolation:
		return "protocol violation"
	case CodeAlreadyConnected:
		return "already connected"
	case CodeServerFull:
		return "server full"
	case CodeRejected:
		return "rejected"
	case CodeCustom:
		return "custom"
	case CodeTimedOut:
		return "timed out"
	case CodeTransportError:
		return "transport error"
	case CodeStateMisuse:
		return "state misuse"
	case CodeResourceExhausted:
		return "resource exhausted"
	case CodeInvalidConfig:
		return "invalid config"
	default:
		return fmt.Sprintf("code(%d)", uint16(c))
	}
}

// Error is the engine's error type: a code, an optional parent, and the
// call site that raised it. It implements the standard error interface and
// supports errors.Is/errors.As via Unwrap.
type Error struct {
	code   Code
	parent error
	file   string
	line   int
	fn     string
}

// New captures the call site and wraps parent (which may be nil) under code.
func New(code Code, parent error) *Error {
	e := &Error{code: code, parent: parent}
	if pc, file, line, ok := runtime.Caller(1); ok {
		e.file = file
		e.line = line
		if f := runtime.FuncForPC(pc); f != nil {
			e.fn = f.Name()
		}
	}
	return e
}

// Newf is New with a formatted parent message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.parent != nil {
		return fmt.Sprintf("%s: %s", e.code, e.parent.Error())
	}
	return e.code.String()
}

// Unwrap exposes the parent error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.parent
}

// Code returns the classification code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeNone
	}
	return e.code
}

// IsCode reports whether this error (or any error in its Unwrap chain) was
// raised with the given code.
func (e *Error) IsCode(code Code) bool {
	var cur error = e
	for cur != nil {
		if c, ok := cur.(*Error); ok {
			if c.code == code {
				return true
			}
			cur = c.parent
			continue
		}
		break
	}
	return false
}

// Site returns "file:line func" for diagnostics; empty if capture failed.
func (e *Error) Site() string {
	if e == nil || e.file == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d %s", e.file, e.line, e.fn)
}

// As/Is compatibility helpers so callers can use the standard library instead
// of reaching for the methods above.
func Is(err, target error) bool    { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
