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

// Package storetest holds the behaviour every membership.Store implementation must honour.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/membership"
)

// Run exercises store. The store must be empty.
func Run(t *testing.T, store membership.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	silo := func(id string, status membership.Status) *membership.SiloInfo {
		return &membership.SiloInfo{
			SiloID:        id,
			Address:       "127.0.0.1",
			Port:          9000,
			Status:        status,
			LastHeartbeat: now,
			StartedAt:     now,
			RegionID:      "eu",
		}
	}

	t.Run("With put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, silo("s1", membership.StatusJoining)))
		info, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", info.SiloID)
		assert.Equal(t, membership.StatusJoining, info.Status)
		assert.Equal(t, "eu", info.RegionID)
		assert.True(t, now.Equal(info.LastHeartbeat))

		_, err = store.Get(ctx, "unknown")
		require.ErrorIs(t, err, gerrors.ErrSiloNotFound)
	})
	t.Run("With status transitions", func(t *testing.T) {
		require.NoError(t, store.UpdateStatus(ctx, "s1", membership.StatusActive))
		require.NoError(t, store.UpdateStatus(ctx, "s1", membership.StatusActive))
		err := store.UpdateStatus(ctx, "s1", membership.StatusJoining)
		require.ErrorIs(t, err, gerrors.ErrInvalidStatusTransition)

		info, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, membership.StatusActive, info.Status)

		require.ErrorIs(t, store.UpdateStatus(ctx, "unknown", membership.StatusActive), gerrors.ErrSiloNotFound)
	})
	t.Run("With heartbeat", func(t *testing.T) {
		later := now.Add(time.Second)
		require.NoError(t, store.UpdateHeartbeat(ctx, "s1", later, 87.5))
		info, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, later.Equal(info.LastHeartbeat))
		assert.InDelta(t, 87.5, info.HealthScore, 0.001)

		assert.True(t, info.HealthReported)

		// a heartbeat without score keeps the last reported one
		require.NoError(t, store.UpdateHeartbeat(ctx, "s1", later.Add(time.Second), membership.NoHealthScore))
		info, err = store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.InDelta(t, 87.5, info.HealthScore, 0.001)

		// zero is a real score
		require.NoError(t, store.UpdateHeartbeat(ctx, "s1", later.Add(2*time.Second), 0))
		info, err = store.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Zero(t, info.HealthScore)
		assert.True(t, info.HealthReported)

		require.ErrorIs(t, store.UpdateHeartbeat(ctx, "unknown", later, 0), gerrors.ErrSiloNotFound)
	})
	t.Run("With list", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, silo("s2", membership.StatusActive)))
		require.NoError(t, store.Put(ctx, silo("s3", membership.StatusDead)))

		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, ids(all))

		active, err := store.ListByStatus(ctx, membership.StatusActive)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2"}, ids(active))

		dead, err := store.ListByStatus(ctx, membership.StatusDead)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s3"}, ids(dead))
	})
	t.Run("With concurrent heartbeats and transitions", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.UpdateHeartbeat(ctx, "s2", now.Add(time.Duration(i)*time.Millisecond), 50))
			}(i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.UpdateStatus(ctx, "s2", membership.StatusShuttingDown))
		}()
		wg.Wait()

		info, err := store.Get(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, membership.StatusShuttingDown, info.Status)
	})
	t.Run("With delete", func(t *testing.T) {
		for _, id := range []string{"s1", "s2", "s3"} {
			require.NoError(t, store.Delete(ctx, id))
		}
		require.NoError(t, store.Delete(ctx, "unknown"))
		all, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func ids(infos []*membership.SiloInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.SiloID)
	}
	return out
}

// Namespace returns a namespace unique to the running test
func Namespace(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("quark-test-%d", time.Now().UnixNano())
}
