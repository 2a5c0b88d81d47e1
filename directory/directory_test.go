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

func joined(id string, members ...string) membership.Event {
	return membership.Event{Type: membership.SiloJoined, Silo: membership.SiloInfo{SiloID: id}, Members: members}
}

func left(id string, evicted bool, members ...string) membership.Event {
	return membership.Event{Type: membership.SiloLeft, Silo: membership.SiloInfo{SiloID: id}, Evicted: evicted, Members: members}
}

func TestRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("With empty ring", func(t *testing.T) {
		dir := New("S1")
		decision, err := dir.Route(ctx, "42", "Order")
		require.ErrorIs(t, err, gerrors.ErrNoSiloAvailable)
		assert.Equal(t, NotFound, decision.Kind)
		assert.Zero(t, dir.CacheLen())
	})
	t.Run("With local and remote owners", func(t *testing.T) {
		dir := New("S1")
		dir.OnMembershipEvent(joined("S1", "S1", "S2", "S3"))

		kinds := map[DecisionKind]int{}
		for i := range 300 {
			id := fmt.Sprint(i)
			decision, err := dir.Route(ctx, id, "Order")
			require.NoError(t, err)
			owner, err := dir.Owner("Order:" + id)
			require.NoError(t, err)
			assert.Equal(t, owner, decision.TargetSiloID)
			if owner == "S1" {
				assert.Equal(t, LocalSilo, decision.Kind)
			} else {
				assert.Equal(t, Remote, decision.Kind)
			}
			kinds[decision.Kind]++
		}
		assert.Positive(t, kinds[LocalSilo])
		assert.Positive(t, kinds[Remote])
		assert.Equal(t, 300, dir.CacheLen())
	})
	t.Run("With same-process bypass", func(t *testing.T) {
		dir := New("S1", WithLocalBypass(true))
		dir.OnMembershipEvent(joined("S1", "S1"))

		decision, err := dir.Route(ctx, "42", "Order")
		require.NoError(t, err)
		assert.Equal(t, LocalSilo, decision.Kind)

		require.NoError(t, dir.RegisterActor(ctx, "42", "Order", "S1"))
		decision, err = dir.Route(ctx, "42", "Order")
		require.NoError(t, err)
		assert.Equal(t, SameProcess, decision.Kind)
		assert.Equal(t, "S1", decision.TargetSiloID)

		dir.UnregisterActor(ctx, "42", "Order")
		decision, err = dir.Route(ctx, "42", "Order")
		require.NoError(t, err)
		assert.Equal(t, LocalSilo, decision.Kind)
	})
	t.Run("With bypass disabled", func(t *testing.T) {
		dir := New("S1")
		dir.OnMembershipEvent(joined("S1", "S1"))
		require.NoError(t, dir.RegisterActor(ctx, "42", "Order", "S1"))
		decision, err := dir.Route(ctx, "42", "Order")
		require.NoError(t, err)
		assert.Equal(t, LocalSilo, decision.Kind)
	})
	t.Run("With cache invalidation", func(t *testing.T) {
		dir := New("S1", WithCacheTTL(time.Minute), WithCacheSize(10))
		dir.OnMembershipEvent(joined("S1", "S1", "S2"))

		_, err := dir.Route(ctx, "42", "Order")
		require.NoError(t, err)
		assert.Equal(t, 1, dir.CacheLen())

		dir.InvalidateCache("42", "Order")
		assert.Zero(t, dir.CacheLen())

		for i := range 20 {
			_, err := dir.Route(ctx, fmt.Sprint(i), "Order")
			require.NoError(t, err)
		}
		assert.Equal(t, 10, dir.CacheLen())

		dir.PurgeCache()
		assert.Zero(t, dir.CacheLen())
	})
	t.Run("With cache expiry", func(t *testing.T) {
		dir := New("S1", WithCacheTTL(20*time.Millisecond))
		dir.OnMembershipEvent(joined("S1", "S1"))
		_, err := dir.Route(ctx, "42", "Order")
		require.NoError(t, err)
		require.Eventually(t, func() bool { return dir.CacheLen() == 0 }, time.Second, 10*time.Millisecond)
	})
}

func TestTopologyChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("With silo removal from three silos", func(t *testing.T) {
		dir := New("S1", WithVirtualNodes(150))
		dir.OnMembershipEvent(joined("S3", "S1", "S2", "S3"))

		decision, err := dir.Route(ctx, "42", "Order")
		require.NoError(t, err)
		assert.Contains(t, []string{"S1", "S2", "S3"}, decision.TargetSiloID)

		before := make(map[string]string, 1000)
		for i := range 1000 {
			id := fmt.Sprint(i)
			decision, err := dir.Route(ctx, id, "Order")
			require.NoError(t, err)
			before[id] = decision.TargetSiloID
		}

		dir.OnMembershipEvent(left("S2", true, "S1", "S3"))
		assert.Zero(t, dir.CacheLen())
		assert.Equal(t, []string{"S1", "S3"}, dir.Members())

		for id, owner := range before {
			decision, err := dir.Route(ctx, id, "Order")
			require.NoError(t, err)
			if owner != "S2" {
				assert.Equal(t, owner, decision.TargetSiloID, "actor %s moved", id)
			} else {
				assert.NotEqual(t, "S2", decision.TargetSiloID)
			}
		}
	})
	t.Run("With owner excluding a leaving silo", func(t *testing.T) {
		dir := New("S1")
		dir.OnMembershipEvent(joined("S3", "S1", "S2", "S3"))

		after := New("S1")
		after.OnMembershipEvent(joined("S3", "S2", "S3"))

		for i := range 500 {
			key := fmt.Sprintf("Order:%d", i)
			expected, err := after.Owner(key)
			require.NoError(t, err)
			next, err := dir.OwnerExcluding(key, "S1")
			require.NoError(t, err)
			assert.Equal(t, expected, next)
		}

		solo := New("S1")
		solo.OnMembershipEvent(joined("S1", "S1"))
		_, err := solo.OwnerExcluding("Order:1", "S1")
		require.ErrorIs(t, err, gerrors.ErrNoSiloAvailable)
	})
	t.Run("With locations of a departed silo", func(t *testing.T) {
		dir := New("S1")
		dir.OnMembershipEvent(joined("S2", "S1", "S2"))
		require.NoError(t, dir.RegisterActor(ctx, "1", "Order", "S1"))
		require.NoError(t, dir.RegisterActor(ctx, "2", "Order", "S2"))

		dir.OnMembershipEvent(left("S2", false, "S1"))
		_, ok := dir.LookupActor(ctx, "2", "Order")
		assert.False(t, ok)
		location, ok := dir.LookupActor(ctx, "1", "Order")
		require.True(t, ok)
		assert.Equal(t, "S1", location.SiloID)

		// the local silo leaving keeps its own locations
		dir.OnMembershipEvent(left("S1", false))
		_, ok = dir.LookupActor(ctx, "1", "Order")
		assert.True(t, ok)
		_, err := dir.Route(ctx, "1", "Order")
		require.ErrorIs(t, err, gerrors.ErrNoSiloAvailable)
	})
}

func TestLocations(t *testing.T) {
	ctx := context.Background()
	dir := New("S1")

	require.NoError(t, dir.RegisterActor(ctx, "1", "Order", "S1"))
	require.NoError(t, dir.RegisterActor(ctx, "1", "Order", "S1"))
	err := dir.RegisterActor(ctx, "1", "Order", "S2")
	require.ErrorIs(t, err, gerrors.ErrActorAlreadyRegistered)

	require.NoError(t, dir.RegisterActor(ctx, "1", "Cart", "S2"))
	locations := dir.Locations()
	require.Len(t, locations, 2)
	assert.Equal(t, "Cart", locations[0].ActorType)
	assert.Equal(t, "Order", locations[1].ActorType)

	_, ok := dir.LookupActor(ctx, "9", "Order")
	assert.False(t, ok)

	t.Run("With concurrent registrations", func(t *testing.T) {
		dir := New("S1")
		var wg sync.WaitGroup
		winners := make(chan string, 8)
		for i := range 8 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				silo := fmt.Sprintf("S%d", i)
				if dir.RegisterActor(ctx, "x", "Order", silo) == nil {
					winners <- silo
				}
			}(i)
		}
		wg.Wait()
		close(winners)
		assert.Len(t, winners, 1)
	})
}
