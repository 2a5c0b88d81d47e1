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

package xsync

import (
	"github.com/zeebo/xxh3"
)

const defaultShardCount = 32

// ShardedMap spreads string keys over independent Map shards selected with xxh3.
// It backs the activation and mailbox registries where many actors are
// created and looked up concurrently.
type ShardedMap[V any] struct {
	shards []*Map[string, V]
}

// NewShardedMap creates a ShardedMap with the given number of shards.
// A non-positive count selects the default.
func NewShardedMap[V any](shardCount int) *ShardedMap[V] {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	shards := make([]*Map[string, V], shardCount)
	for i := range shards {
		shards[i] = NewMap[string, V]()
	}
	return &ShardedMap[V]{shards: shards}
}

func (s *ShardedMap[V]) shard(key string) *Map[string, V] {
	return s.shards[xxh3.HashString(key)%uint64(len(s.shards))]
}

// Get returns the value stored for key
func (s *ShardedMap[V]) Get(key string) (V, bool) {
	return s.shard(key).Get(key)
}

// Set stores value under key
func (s *ShardedMap[V]) Set(key string, value V) {
	s.shard(key).Set(key, value)
}

// Delete removes key
func (s *ShardedMap[V]) Delete(key string) {
	s.shard(key).Delete(key)
}

// DeleteIf removes key when match holds for its current value
func (s *ShardedMap[V]) DeleteIf(key string, match func(V) bool) bool {
	return s.shard(key).DeleteIf(key, match)
}

// GetOrCreate returns the value stored for key, creating it with create when absent.
// create runs under the shard lock so concurrent callers observe a single value.
// The boolean reports whether this call created the value.
func (s *ShardedMap[V]) GetOrCreate(key string, create func() (V, error)) (V, bool, error) {
	shard := s.shard(key)
	if v, ok := shard.Get(key); ok {
		return v, false, nil
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if v, ok := shard.data[key]; ok {
		return v, false, nil
	}

	v, err := create()
	if err != nil {
		var zero V
		return zero, false, err
	}
	shard.data[key] = v
	return v, true, nil
}

// Len returns the total number of entries
func (s *ShardedMap[V]) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}

// Values returns every stored value
func (s *ShardedMap[V]) Values() []V {
	var out []V
	for _, shard := range s.shards {
		out = append(out, shard.Values()...)
	}
	return out
}

// Range calls f for every entry until it returns false.
func (s *ShardedMap[V]) Range(f func(string, V) bool) {
	for _, shard := range s.shards {
		stop := false
		shard.Range(func(k string, v V) bool {
			if !f(k, v) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return
		}
	}
}

// Reset removes every entry
func (s *ShardedMap[V]) Reset() {
	for _, shard := range s.shards {
		shard.Reset()
	}
}
