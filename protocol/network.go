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

// Package protocol names the transport network kinds a Transport
// implementation can bind to. The engine itself is transport-agnostic; this
// enum exists so configuration and logging have a stable, typed name for
// "what's underneath" instead of a bare string.
package protocol

import "strings"

// Network identifies the underlying socket family a Transport uses.
type Network uint8

const (
	NetworkUnknown Network = iota
	NetworkUDP
	NetworkTCP
)

func (n Network) String() string {
	switch n {
	case NetworkUDP:
		return "udp"
	case NetworkTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// ParseNetwork parses the case-insensitive wire/config form back into a
// Network, defaulting to NetworkUnknown on no match.
func ParseNetwork(s string) Network {
	switch strings.ToLower(s) {
	case "udp":
		return NetworkUDP
	case "tcp":
		return NetworkTCP
	default:
		return NetworkUnknown
	}
}
