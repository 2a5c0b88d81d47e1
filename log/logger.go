// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package log holds the logging contract shared by every silo component.
//
// Components never talk to zap directly: they receive a Logger through an
// option and default to DefaultLogger. Tests pass DiscardLogger.
package log

import (
	"io"
)

// Logger writes leveled entries.
// The f-suffixed methods format their arguments with fmt.Sprintf.
type Logger interface {
	Debug(...any)
	Debugf(string, ...any)
	Info(...any)
	Infof(string, ...any)
	Warn(...any)
	Warnf(string, ...any)
	Error(...any)
	Errorf(string, ...any)
	// Fatal logs then exits the process with status 1
	Fatal(...any)
	Fatalf(string, ...any)
	// Panic logs then panics with the message
	Panic(...any)
	Panicf(string, ...any)

	// LogLevel returns the minimum level written
	LogLevel() Level
	// Enabled reports whether entries at level are written
	Enabled(level Level) bool
	// LogOutput returns the writers entries go to
	LogOutput() []io.Writer
	// With returns a Logger adding keyValues to every entry, e.g. With("silo", id)
	With(keyValues ...any) Logger
	// Flush writes any buffered entry
	Flush() error
}
