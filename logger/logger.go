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

// Package logger is a thin structured-logging facade over logrus. The
// protocol engine never reaches into a package-level global: every
// component that logs accepts a Logger at construction time, so it stays
// usable in tests and embeddable in a host application with its own logging
// setup.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus' levels with the engine's own names so call sites
// never import logrus directly.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (l Level) toLogrus() logrus.Level {
	switch l {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// Logger is the facade the rest of the module depends on.
type Logger interface {
	// WithFields returns a derived Logger carrying additional structured
	// fields on every subsequent entry.
	WithFields(fields map[string]any) Logger
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	SetLevel(lvl Level)
	SetOutput(w io.Writer)
	SetJSON(json bool)
}

type logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing text-formatted entries to stderr at Info
// level, matching the teacher's local/CLI default.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return &logger{entry: logrus.NewEntry(l)}
}

func (g *logger) WithFields(fields map[string]any) Logger {
	return &logger{entry: g.entry.WithFields(logrus.Fields(fields))}
}

func (g *logger) Debug(msg string) { g.entry.Debug(msg) }
func (g *logger) Info(msg string)  { g.entry.Info(msg) }
func (g *logger) Warn(msg string)  { g.entry.Warn(msg) }
func (g *logger) Error(msg string) { g.entry.Error(msg) }

func (g *logger) SetLevel(lvl Level) {
	g.entry.Logger.SetLevel(lvl.toLogrus())
}

func (g *logger) SetOutput(w io.Writer) {
	g.entry.Logger.SetOutput(w)
}

func (g *logger) SetJSON(json bool) {
	if json {
		g.entry.Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		g.entry.Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Noop returns a Logger that discards everything, for tests that don't care
// about log output.
func Noop() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logger{entry: logrus.NewEntry(l)}
}
