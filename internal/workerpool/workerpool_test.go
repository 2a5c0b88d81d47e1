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

package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerPool(t *testing.T) {
	t.Run("With tasks executed", func(t *testing.T) {
		pool := New(WithNumShards(2))
		pool.Start()

		var executed atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			require.NoError(t, pool.SubmitWork(func() {
				defer wg.Done()
				executed.Inc()
			}))
		}
		wg.Wait()
		assert.EqualValues(t, 100, executed.Load())
		pool.Stop()
		assert.Zero(t, pool.SpawnedWorkers())
	})
	t.Run("With pool not started", func(t *testing.T) {
		pool := New()
		require.ErrorIs(t, pool.SubmitWork(func() {}), ErrPoolNotRunning)
	})
	t.Run("With pool stopped", func(t *testing.T) {
		pool := New()
		pool.Start()
		pool.Stop()
		pool.Stop()
		require.ErrorIs(t, pool.SubmitWork(func() {}), ErrPoolNotRunning)
	})
	t.Run("With idle workers reclaimed", func(t *testing.T) {
		pool := New(WithNumShards(1), WithIdleWorkerLifetime(50*time.Millisecond))
		pool.Start()
		defer pool.Stop()

		done := make(chan struct{})
		require.NoError(t, pool.SubmitWork(func() { close(done) }))
		<-done
		require.Eventually(t, func() bool {
			return pool.SpawnedWorkers() == 0
		}, time.Second, 10*time.Millisecond)
	})
	t.Run("With workers reused", func(t *testing.T) {
		pool := New(WithNumShards(1), WithIdleWorkerLifetime(time.Minute))
		pool.Start()
		defer pool.Stop()

		for i := 0; i < 10; i++ {
			done := make(chan struct{})
			require.NoError(t, pool.SubmitWork(func() { close(done) }))
			<-done
			// let the worker park itself
			require.Eventually(t, func() bool {
				pool.shards[0].mu.Lock()
				defer pool.shards[0].mu.Unlock()
				return len(pool.shards[0].idle) == 1
			}, time.Second, time.Millisecond)
		}
		assert.Equal(t, 1, pool.SpawnedWorkers())
	})
}
