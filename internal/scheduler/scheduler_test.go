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

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/quarkgo/quark/log"
)

func TestScheduler(t *testing.T) {
	t.Run("With periodic job", func(t *testing.T) {
		ctx := context.Background()
		scheduler := New(log.DiscardLogger, time.Second)
		scheduler.Start(ctx)
		defer scheduler.Stop(ctx)

		count := atomic.NewInt32(0)
		require.NoError(t, scheduler.Every("tick", 20*time.Millisecond, func(context.Context) error {
			count.Inc()
			return nil
		}))
		require.Eventually(t, func() bool { return count.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)

		scheduler.Stop(ctx)
		seen := count.Load()
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, seen, count.Load())
	})
	t.Run("With one-shot job", func(t *testing.T) {
		ctx := context.Background()
		scheduler := New(log.DiscardLogger, time.Second)
		scheduler.Start(ctx)
		defer scheduler.Stop(ctx)

		done := make(chan struct{})
		require.NoError(t, scheduler.Once("once", 10*time.Millisecond, func(context.Context) error {
			close(done)
			return errors.New("logged and ignored")
		}))
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			require.FailNow(t, "job did not run")
		}

		// a pending key is not scheduled twice
		release := make(chan struct{})
		require.NoError(t, scheduler.Once("pending", time.Hour, func(context.Context) error {
			close(release)
			return nil
		}))
		require.Error(t, scheduler.Once("pending", time.Hour, func(context.Context) error { return nil }))
	})
	t.Run("With scheduler not started", func(t *testing.T) {
		scheduler := New(nil, time.Second)
		err := scheduler.Every("tick", time.Second, func(context.Context) error { return nil })
		require.ErrorIs(t, err, ErrSchedulerNotStarted)
		require.ErrorIs(t, scheduler.Once("once", 0, func(context.Context) error { return nil }), ErrSchedulerNotStarted)
		scheduler.Stop(context.Background())
	})
}
