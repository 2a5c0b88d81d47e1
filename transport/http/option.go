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

package http

import (
	"crypto/tls"

	"github.com/quarkgo/quark/log"
)

// Option configures a Transport
type Option func(t *Transport)

// WithTLS serves and dials over TLS instead of h2c.
// Both configs are required for mutual TLS between silos.
func WithTLS(server, client *tls.Config) Option {
	return func(t *Transport) {
		t.serverTLS = server
		t.clientTLS = client
	}
}

// WithCompression sets the message compression: compression.Zstd,
// compression.Brotli or compression.None.
func WithCompression(name string) Option {
	return func(t *Transport) {
		t.compression = name
	}
}

// WithMaxReadFrameSize bounds the HTTP/2 frames and the size of an envelope
func WithMaxReadFrameSize(size uint32) Option {
	return func(t *Transport) {
		if size > 0 {
			t.maxFrameSize = size
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithResolver sets how silo ids are resolved into addresses
func WithResolver(resolver Resolver) Option {
	return func(t *Transport) {
		t.resolver = resolver
	}
}
