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

package hash

import (
	"github.com/cespare/xxhash/v2"
)

// Hasher produces the 64-bit positions used to place silos and actor keys on the ring.
// Implementations must be deterministic across processes: every silo of a
// cluster has to compute the same position for the same key.
type Hasher interface {
	// HashCode returns the unsigned 64-bit hash of key
	HashCode(key []byte) uint64
}

// HasherFunc adapts a plain function to the Hasher interface.
type HasherFunc func(key []byte) uint64

// HashCode calls f(key)
func (f HasherFunc) HashCode(key []byte) uint64 {
	return f(key)
}

type xxhasher struct{}

var _ Hasher = xxhasher{}

func (xxhasher) HashCode(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// DefaultHasher returns the xxhash based hasher
func DefaultHasher() Hasher {
	return xxhasher{}
}

// String hashes s with h without an intermediate allocation when h is the default hasher.
func String(h Hasher, s string) uint64 {
	if _, ok := h.(xxhasher); ok {
		return xxhash.Sum64String(s)
	}
	return h.HashCode([]byte(s))
}
