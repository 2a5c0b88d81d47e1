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

package ring

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/hash"
)

func TestRing(t *testing.T) {
	t.Run("With empty ring", func(t *testing.T) {
		r := New()
		_, err := r.GetNode("counter:1")
		require.ErrorIs(t, err, gerrors.ErrEmptyRing)
		_, err = r.GetNodes("counter:1", 2)
		require.ErrorIs(t, err, gerrors.ErrEmptyRing)
		assert.Zero(t, r.Len())
	})
	t.Run("With single node owning every key", func(t *testing.T) {
		r := New()
		r.AddNode("s1")
		for i := 0; i < 100; i++ {
			owner, err := r.GetNode(fmt.Sprintf("counter:%d", i))
			require.NoError(t, err)
			assert.Equal(t, "s1", owner)
		}
	})
	t.Run("With deterministic placement regardless of insertion order", func(t *testing.T) {
		first := New()
		for _, node := range []string{"s1", "s2", "s3"} {
			first.AddNode(node)
		}
		second := New()
		for _, node := range []string{"s3", "s1", "s2"} {
			second.AddNode(node)
		}
		third := New()
		third.SetNodes([]string{"s2", "s3", "s1"})

		for i := 0; i < 1000; i++ {
			key := fmt.Sprintf("user:%d", i)
			a, err := first.GetNode(key)
			require.NoError(t, err)
			b, err := second.GetNode(key)
			require.NoError(t, err)
			c, err := third.GetNode(key)
			require.NoError(t, err)
			assert.Equal(t, a, b)
			assert.Equal(t, a, c)
		}
	})
	t.Run("With minimal disruption on removal", func(t *testing.T) {
		r := New(WithVirtualNodes(150))
		r.SetNodes([]string{"s1", "s2", "s3"})

		const keys = 1000
		before := make(map[string]string, keys)
		for i := 0; i < keys; i++ {
			key := fmt.Sprintf("counter:%d", i)
			owner, err := r.GetNode(key)
			require.NoError(t, err)
			before[key] = owner
		}

		r.RemoveNode("s2")
		moved := 0
		for key, owner := range before {
			now, err := r.GetNode(key)
			require.NoError(t, err)
			require.NotEqual(t, "s2", now)
			if owner != "s2" {
				assert.Equal(t, owner, now, "key %s moved although its owner stayed", key)
				continue
			}
			moved++
		}
		// roughly a third of the keys lived on s2
		assert.InDelta(t, keys/3, moved, keys/6)
	})
	t.Run("With minimal disruption on addition", func(t *testing.T) {
		r := New()
		r.SetNodes([]string{"s1", "s2"})
		before := make(map[string]string)
		for i := 0; i < 500; i++ {
			key := fmt.Sprintf("k-%d", i)
			before[key], _ = r.GetNode(key)
		}
		r.AddNode("s3")
		for key, owner := range before {
			now, err := r.GetNode(key)
			require.NoError(t, err)
			if now != "s3" {
				assert.Equal(t, owner, now)
			}
		}
	})
	t.Run("With wrap-around past the last point", func(t *testing.T) {
		hasher := hash.HasherFunc(func(key []byte) uint64 {
			switch string(key) {
			case "a-0":
				return 10
			case "b-0":
				return 20
			case "tail":
				return 30
			default:
				return 15
			}
		})
		r := New(WithHasher(hasher), WithVirtualNodes(1))
		r.SetNodes([]string{"a", "b"})

		owner, err := r.GetNode("tail")
		require.NoError(t, err)
		assert.Equal(t, "a", owner)

		owner, err = r.GetNode("middle")
		require.NoError(t, err)
		assert.Equal(t, "b", owner)
	})
	t.Run("With hash ties broken by node id", func(t *testing.T) {
		constant := hash.HasherFunc(func([]byte) uint64 { return 42 })
		first := New(WithHasher(constant), WithVirtualNodes(2))
		first.AddNode("zeta")
		first.AddNode("alpha")
		second := New(WithHasher(constant), WithVirtualNodes(2))
		second.AddNode("alpha")
		second.AddNode("zeta")

		a, err := first.GetNode("any")
		require.NoError(t, err)
		b, err := second.GetNode("any")
		require.NoError(t, err)
		assert.Equal(t, "alpha", a)
		assert.Equal(t, a, b)
	})
	t.Run("With replica walk", func(t *testing.T) {
		r := New()
		r.SetNodes([]string{"s1", "s2", "s3"})
		nodes, err := r.GetNodes("counter:7", 5)
		require.NoError(t, err)
		assert.Len(t, nodes, 3)
		assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, nodes)

		owner, err := r.GetNode("counter:7")
		require.NoError(t, err)
		assert.Equal(t, owner, nodes[0])
	})
	t.Run("With idempotent add and remove", func(t *testing.T) {
		r := New(WithVirtualNodes(10))
		r.AddNode("s1")
		r.AddNode("s1")
		assert.Len(t, r.points, 10)
		r.RemoveNode("unknown")
		assert.Equal(t, []string{"s1"}, r.Nodes())
		r.RemoveNode("s1")
		assert.Zero(t, r.Len())
		assert.Empty(t, r.points)
	})
	t.Run("With concurrent readers", func(t *testing.T) {
		r := New()
		r.SetNodes([]string{"s1", "s2", "s3"})
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					_, err := r.GetNode(fmt.Sprintf("k-%d-%d", i, j))
					assert.NoError(t, err)
				}
			}(i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.AddNode("s4")
			r.RemoveNode("s4")
		}()
		wg.Wait()
	})
}
