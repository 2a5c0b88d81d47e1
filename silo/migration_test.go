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

package silo_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/config"
	"github.com/quarkgo/quark/membership"
	"github.com/quarkgo/quark/silo"
	"github.com/quarkgo/quark/testkit"
)

func TestGracefulShutdown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
		cfg.Migration.Enabled = false
	}))

	var (
		mu           sync.Mutex
		statusAtStop membership.Status
		rerouted     *testkit.ValueResponse
		rerouteErr   error
	)
	s1 := f.cluster.StartSilo(ctx, "S1")
	s2 := f.cluster.StartSilo(ctx, "S2")
	var s3 *silo.Silo
	s3 = f.cluster.StartSilo(ctx, "S3", silo.WithSubsystems(silo.NewSubsystem("watcher", nil, func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		statusAtStop = s3.Status()
		// actors are gone at this point: a call from the silo itself lands elsewhere
		rerouted, rerouteErr = add(ctx, s3, "late", 1)
		return nil
	})))
	f.cluster.Refresh(ctx)

	owned := f.actorOwnedBy(t, "S3")
	_, err := add(ctx, s1, owned, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"S3"}, f.tracker.Activations(testkit.CounterType, owned))

	require.NoError(t, s3.Stop(ctx))

	assert.Equal(t, []membership.Status{
		membership.StatusJoining,
		membership.StatusActive,
		membership.StatusShuttingDown,
		membership.StatusDead,
	}, s3.StatusHistory())

	// OnDeactivate ran once and flushed the state
	assert.Equal(t, []string{"S3"}, f.tracker.Deactivations(testkit.CounterType, owned))

	mu.Lock()
	assert.Equal(t, membership.StatusShuttingDown, statusAtStop)
	require.NoError(t, rerouteErr)
	assert.NotEqual(t, "S3", rerouted.SiloID)
	mu.Unlock()

	// no activation ever happened on S3 once it started shutting down
	var activatedOnS3 []string
	for _, event := range f.tracker.Events() {
		if event.SiloID == "S3" && event.Kind == testkit.LifecycleActivated {
			activatedOnS3 = append(activatedOnS3, event.Key)
		}
	}
	assert.Equal(t, []string{actor.NewIdentity(testkit.CounterType, owned).String()}, activatedOnS3)

	// the survivors take over with the flushed state
	out, err := add(ctx, s2, owned, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 8, out.Value)
	assert.Contains(t, []string{"S1", "S2"}, out.SiloID)
}

func TestShutdownDrainsQueuedCalls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
		cfg.Migration.Enabled = false
	}))
	s1 := f.cluster.StartSilo(ctx, "S1")
	handle := s1.Handle(testkit.CounterType, "c1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := silo.Call[testkit.SleepRequest, testkit.ValueResponse](ctx, handle,
			testkit.CounterSleep, &testkit.SleepRequest{Duration: 200 * time.Millisecond})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return len(s1.ActiveActors()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// the in-flight call completes before the actor is deactivated
	require.NoError(t, s1.Stop(ctx))
	wg.Wait()
	assert.Equal(t, []string{"S1"}, f.tracker.Deactivations(testkit.CounterType, "c1"))
}

func TestMigration(t *testing.T) {
	t.Run("With cold actors", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
			cfg.Migration.ColdActorThreshold = 10 * time.Millisecond
		}))
		silos := f.startSilos(ctx, "S1", "S2", "S3")

		owned := f.actorsOwnedBy(t, "S3", 3)
		for _, actorID := range owned {
			_, err := add(ctx, silos[0], actorID, 2)
			require.NoError(t, err)
		}
		time.Sleep(50 * time.Millisecond)

		require.NoError(t, f.cluster.StopSilo(ctx, "S3"))
		f.cluster.Refresh(ctx)

		for _, actorID := range owned {
			// pre-activated on the next owner with the flushed state
			activations := f.tracker.Activations(testkit.CounterType, actorID)
			require.Len(t, activations, 2)
			assert.Equal(t, "S3", activations[0])
			assert.Equal(t, f.cluster.Owner(testkit.CounterType, actorID), activations[1])

			out, err := get(ctx, silos[0], actorID)
			require.NoError(t, err)
			assert.EqualValues(t, 2, out.Value)
			assert.Len(t, f.tracker.Activations(testkit.CounterType, actorID), 2)
		}
	})
	t.Run("With hot actors", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
			cfg.Migration.ColdActorThreshold = time.Hour
		}))
		silos := f.startSilos(ctx, "S1", "S2")
		actorID := f.actorOwnedBy(t, "S2")
		_, err := add(ctx, silos[0], actorID, 2)
		require.NoError(t, err)

		require.NoError(t, f.cluster.StopSilo(ctx, "S2"))

		// deactivated in place, activated lazily on next use
		assert.Equal(t, []string{"S2"}, f.tracker.Activations(testkit.CounterType, actorID))
		out, err := get(ctx, silos[0], actorID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, out.Value)
		assert.Equal(t, "S1", out.SiloID)
	})
}

func TestRebalance(t *testing.T) {
	t.Run("With a silo joining", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2")

		const actors = 20
		owners := make(map[string]string, actors)
		for i := range actors {
			actorID := fmt.Sprintf("counter-%d", i)
			out, err := add(ctx, silos[i%2], actorID, 10)
			require.NoError(t, err)
			owners[actorID] = out.SiloID
		}

		f.cluster.StartSilo(ctx, "S3")
		f.cluster.Refresh(ctx)

		var moved []string
		for actorID := range owners {
			if f.cluster.Owner(testkit.CounterType, actorID) == "S3" {
				moved = append(moved, actorID)
			}
		}
		require.NotEmpty(t, moved)

		// the previous owners give the moved actors up without being called
		require.Eventually(t, func() bool {
			for _, actorID := range moved {
				previous, _ := f.cluster.Silo(owners[actorID])
				if slices.Contains(previous.ActiveActors(), actor.NewIdentity(testkit.CounterType, actorID)) {
					return false
				}
			}
			return true
		}, 5*time.Second, 20*time.Millisecond)

		for _, actorID := range moved {
			out, err := add(ctx, silos[0], actorID, 1)
			require.NoError(t, err)
			assert.EqualValues(t, 11, out.Value)
			assert.Equal(t, "S3", out.SiloID)
			assert.Equal(t, []string{owners[actorID], "S3"}, f.tracker.Activations(testkit.CounterType, actorID))
		}

		// every actor is live on a single silo
		live := make(map[actor.Identity]string)
		for _, instance := range f.cluster.Active() {
			for _, identity := range instance.ActiveActors() {
				other, duplicate := live[identity]
				assert.False(t, duplicate, "%s is live on %s and %s", identity, other, instance.ID())
				live[identity] = instance.ID()
			}
		}
		assert.Len(t, live, actors)
	})
	t.Run("With migration disabled", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
			cfg.Migration.Enabled = false
		}))
		silos := f.startSilos(ctx, "S1")
		actorIDs := make([]string, 0, 10)
		for i := range 10 {
			actorID := fmt.Sprintf("counter-%d", i)
			_, err := add(ctx, silos[0], actorID, 5)
			require.NoError(t, err)
			actorIDs = append(actorIDs, actorID)
		}

		f.cluster.StartSilo(ctx, "S2")
		f.cluster.Refresh(ctx)
		moved := make([]string, 0, len(actorIDs))
		for _, actorID := range actorIDs {
			if f.cluster.Owner(testkit.CounterType, actorID) == "S2" {
				moved = append(moved, actorID)
			}
		}
		require.NotEmpty(t, moved)

		// moved actors are deactivated and only reactivated on demand
		require.Eventually(t, func() bool {
			return len(silos[0].ActiveActors()) == len(actorIDs)-len(moved)
		}, 5*time.Second, 20*time.Millisecond)
		for _, actorID := range moved {
			assert.Equal(t, []string{"S1"}, f.tracker.Activations(testkit.CounterType, actorID))
			out, err := get(ctx, silos[0], actorID)
			require.NoError(t, err)
			assert.EqualValues(t, 5, out.Value)
			assert.Equal(t, "S2", out.SiloID)
		}
	})
}
