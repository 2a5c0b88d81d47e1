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

package directory

import (
	"time"

	"github.com/quarkgo/quark/log"
)

const (
	// DefaultCacheTTL is the lifetime of a cached routing decision
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheSize is the number of cached routing decisions
	DefaultCacheSize = 10_000
)

// Option configures a Directory
type Option func(d *Directory)

// WithCacheTTL sets the lifetime of cached decisions
func WithCacheTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.cacheTTL = ttl
		}
	}
}

// WithCacheSize sets the number of cached decisions
func WithCacheSize(size int) Option {
	return func(d *Directory) {
		if size > 0 {
			d.cacheSize = size
		}
	}
}

// WithLocalBypass enables SameProcess decisions for actors activated on this silo
func WithLocalBypass(enabled bool) Option {
	return func(d *Directory) {
		d.localBypass = enabled
	}
}

// WithVirtualNodes sets the number of ring points per silo
func WithVirtualNodes(count int) Option {
	return func(d *Directory) {
		if count > 0 {
			d.virtualNodes = count
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}
