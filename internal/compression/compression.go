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

// Package compression registers the message compressions of the HTTP transport.
package compression

import (
	"fmt"
	"io"

	"connectrpc.com/connect"
)

const (
	// None disables compression
	None = ""
	// Zstd is the Zstandard content coding
	Zstd = "zstd"
	// Brotli is the brotli content coding
	Brotli = "br"
)

// Option registers name on a connect client and handler.
// Clients also send their requests compressed with it.
func Option(name string) ([]connect.ClientOption, []connect.HandlerOption, error) {
	var option connect.Option
	switch name {
	case None:
		return nil, nil, nil
	case Zstd:
		option = WithZstd()
	case Brotli:
		option = WithBrotli(DefaultBrotliLevel)
	default:
		return nil, nil, fmt.Errorf("unsupported compression %q", name)
	}

	return []connect.ClientOption{option, connect.WithSendCompression(name)},
		[]connect.HandlerOption{option},
		nil
}

type compressionOption struct {
	connect.ClientOption
	connect.HandlerOption
}

func register(name string, newDecompressor func() connect.Decompressor, newCompressor func() connect.Compressor) connect.Option {
	return compressionOption{
		ClientOption:  connect.WithAcceptCompression(name, newDecompressor, newCompressor),
		HandlerOption: connect.WithCompression(name, newDecompressor, newCompressor),
	}
}

// brokenCompressor fails on first use.
// Factories return it when the underlying encoder cannot be built.
type brokenCompressor struct{ err error }

func (c brokenCompressor) Write([]byte) (int, error) { return 0, c.err }
func (brokenCompressor) Reset(io.Writer)            {}
func (c brokenCompressor) Close() error              { return c.err }
