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
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/config"
	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/codec"
	"github.com/quarkgo/quark/silo"
	"github.com/quarkgo/quark/testkit"
)

func TestInvoke(t *testing.T) {
	t.Run("With routing to the owner", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2", "S3")

		for i, instance := range silos {
			actorID := f.actorOwnedBy(t, silos[(i+1)%len(silos)].ID())
			out, err := add(ctx, instance, actorID, 3)
			require.NoError(t, err)
			assert.EqualValues(t, 3, out.Value)
			assert.Equal(t, silos[(i+1)%len(silos)].ID(), out.SiloID)
			assert.NotContains(t, instance.ActiveActors(), actor.NewIdentity(testkit.CounterType, actorID))
		}
	})
	t.Run("With a single activation under concurrency", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2", "S3")

		const calls = 60
		var wg sync.WaitGroup
		failures := atomic.NewInt64(0)
		for i := 0; i < calls; i++ {
			wg.Add(1)
			go func(instance *silo.Silo) {
				defer wg.Done()
				if _, err := add(ctx, instance, "shared", 1); err != nil {
					failures.Inc()
				}
			}(silos[rand.Intn(len(silos))]) //nolint:gosec
		}
		wg.Wait()
		require.Zero(t, failures.Load())

		out, err := get(ctx, silos[0], "shared")
		require.NoError(t, err)
		assert.EqualValues(t, calls, out.Value)
		assert.Equal(t, []string{f.cluster.Owner(testkit.CounterType, "shared")}, f.tracker.Activations(testkit.CounterType, "shared"))
	})
	t.Run("With an explicit activation", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2")
		owner := f.cluster.Owner(testkit.CounterType, "c1")

		require.NoError(t, silos[0].Handle(testkit.CounterType, "c1").Activate(ctx))
		assert.Equal(t, []string{owner}, f.tracker.Activations(testkit.CounterType, "c1"))

		instance, ok := f.cluster.Silo(owner)
		require.True(t, ok)
		require.Len(t, instance.ActiveActors(), 1)
		assert.Equal(t, "c1", instance.ActiveActors()[0].ID)
	})
	t.Run("With an unknown actor type", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2")
		for _, instance := range silos {
			_, err := instance.Invoke(ctx, "Unknown", "u1", "Get", nil)
			require.ErrorIs(t, err, gerrors.ErrUnknownActorType)
		}
	})
	t.Run("With an unknown method", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2")
		for _, instance := range silos {
			_, err := instance.Invoke(ctx, testkit.CounterType, "c1", "Unknown", nil)
			require.ErrorIs(t, err, gerrors.ErrMethodNotFound)
		}
	})
	t.Run("With invalid arguments", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		s1 := f.cluster.StartSilo(ctx, "S1")
		_, err := s1.Invoke(ctx, testkit.CounterType, "", testkit.CounterGet, nil)
		require.ErrorIs(t, err, gerrors.ErrInvalidEnvelope)
		_, err = s1.Invoke(ctx, testkit.CounterType, "c1", "", nil)
		require.ErrorIs(t, err, gerrors.ErrInvalidEnvelope)
	})
	t.Run("With handler failures", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2")
		for _, instance := range silos {
			_, err := instance.Invoke(ctx, testkit.CounterType, "c1", testkit.CounterPanic, nil)
			require.ErrorIs(t, err, gerrors.ErrHandlerPanic)

			_, err = instance.Invoke(ctx, testkit.CounterType, "c1", testkit.CounterFail, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), testkit.ErrCounterFailure.Error())
		}
		assert.Len(t, f.tracker.Activations(testkit.CounterType, "c1"), 1)
	})
	t.Run("With a request timeout", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
			cfg.RequestTimeout = 100 * time.Millisecond
		}))
		silos := f.startSilos(ctx, "S1", "S2")
		actorID := f.actorOwnedBy(t, "S2")

		start := time.Now()
		_, err := silo.Call[testkit.SleepRequest, testkit.ValueResponse](ctx, silos[0].Handle(testkit.CounterType, actorID),
			testkit.CounterSleep, &testkit.SleepRequest{Duration: time.Second})
		require.ErrorIs(t, err, gerrors.ErrRequestTimeout)
		assert.Less(t, time.Since(start), time.Second)
	})
	t.Run("With a caller deadline", func(t *testing.T) {
		f := newFixture(t)
		s1 := f.cluster.StartSilo(context.Background(), "S1")

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := silo.Call[testkit.SleepRequest, testkit.ValueResponse](ctx, s1.Handle(testkit.CounterType, "c1"),
			testkit.CounterSleep, &testkit.SleepRequest{Duration: time.Second})
		require.ErrorIs(t, err, gerrors.ErrRequestTimeout)
	})
}

func TestCircularCalls(t *testing.T) {
	t.Run("With an actor calling itself", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		s1 := f.cluster.StartSilo(ctx, "S1")

		_, err := s1.Invoke(ctx, testkit.CounterType, "a", testkit.CounterCall,
			callRequest(t, "a", testkit.CounterGet, nil))
		require.ErrorIs(t, err, gerrors.ErrCircularCall)
	})
	t.Run("With a cycle across silos", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2")
		a := f.actorOwnedBy(t, "S1")
		b := f.actorOwnedBy(t, "S2")

		// a -> b -> a
		inner := callRequest(t, a, testkit.CounterGet, nil)
		_, err := silos[0].Invoke(ctx, testkit.CounterType, a, testkit.CounterCall,
			callRequest(t, b, testkit.CounterCall, inner))
		require.ErrorIs(t, err, gerrors.ErrCircularCall)

		// both actors keep serving
		_, err = add(ctx, silos[1], a, 1)
		require.NoError(t, err)
		_, err = add(ctx, silos[0], b, 1)
		require.NoError(t, err)
	})
	t.Run("With a chain that is not a cycle", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		silos := f.startSilos(ctx, "S1", "S2")
		_, err := add(ctx, silos[0], "c", 4)
		require.NoError(t, err)

		// a -> b -> c
		inner := callRequest(t, "c", testkit.CounterGet, nil)
		_, err = silos[0].Invoke(ctx, testkit.CounterType, "a", testkit.CounterCall,
			callRequest(t, "b", testkit.CounterCall, inner))
		require.NoError(t, err)
	})
}

func TestMailboxBackpressure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
		cfg.Mailbox.Capacity = 2
		cfg.Mailbox.FullMode = config.FullModeReject
	}))
	s1 := f.cluster.StartSilo(ctx, "S1")
	handle := s1.Handle(testkit.CounterType, "c1")
	require.NoError(t, handle.Activate(ctx))

	// keep the actor busy
	go func() {
		_, _ = silo.Call[testkit.SleepRequest, testkit.ValueResponse](ctx, handle,
			testkit.CounterSleep, &testkit.SleepRequest{Duration: 300 * time.Millisecond})
	}()
	time.Sleep(50 * time.Millisecond)

	var (
		wg       sync.WaitGroup
		rejected = atomic.NewInt64(0)
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := add(ctx, s1, "c1", 1); errors.Is(err, gerrors.ErrMailboxFull) {
				rejected.Inc()
			}
		}()
	}
	wg.Wait()
	assert.Positive(t, rejected.Load())
}

func TestRerouting(t *testing.T) {
	t.Run("With an owner leaving the cluster", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
			cfg.Migration.Enabled = false
		}))
		silos := f.startSilos(ctx, "S1", "S2", "S3")
		actorID := f.actorOwnedBy(t, "S3")

		_, err := add(ctx, silos[0], actorID, 5)
		require.NoError(t, err)

		// S1 keeps a cached route to S3 while it goes away
		require.NoError(t, f.cluster.StopSilo(ctx, "S3"))
		out, err := add(ctx, silos[0], actorID, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 6, out.Value)
		assert.NotEqual(t, "S3", out.SiloID)
		assert.Equal(t, []string{"S3", out.SiloID}, f.tracker.Activations(testkit.CounterType, actorID))
	})
	t.Run("With an unreachable owner", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, testkit.WithConfig(func(cfg *config.Config) {
			cfg.RequestTimeout = 500 * time.Millisecond
			cfg.InvokeRetries = 1
		}))
		silos := f.startSilos(ctx, "S1", "S2")
		actorID := f.actorOwnedBy(t, "S2")

		f.cluster.Network().Disconnect("S2")
		_, err := add(ctx, silos[0], actorID, 1)
		require.ErrorIs(t, err, gerrors.ErrRemoteSendFailure)

		f.cluster.Network().Reconnect("S2")
		out, err := add(ctx, silos[0], actorID, 1)
		require.NoError(t, err)
		assert.Equal(t, "S2", out.SiloID)
	})
}

func TestReceive(t *testing.T) {
	t.Run("With responses never dispatched", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.startSilos(ctx, "S1")

		received := make(chan *envelope.Envelope, 10)
		client := f.cluster.Network().Endpoint("client")
		client.OnEnvelopeReceived(func(_ context.Context, env *envelope.Envelope) { received <- env })
		require.NoError(t, client.Start(ctx))
		t.Cleanup(func() { _ = client.Stop(ctx) })

		send := func(actorID string, shape func(env *envelope.Envelope)) *envelope.Envelope {
			payload, err := codec.Marshal(&testkit.AddRequest{Delta: 1})
			require.NoError(t, err)
			env := envelope.NewRequest(testkit.CounterType, actorID, testkit.CounterAdd, payload)
			env.SenderSiloID = "client"
			env.TargetSiloID = "S1"
			if shape != nil {
				shape(env)
			}
			require.NoError(t, client.Send(ctx, env))
			return env
		}

		send("failed", func(env *envelope.Envelope) {
			env.IsError = true
			env.ErrorMessage = "boom"
		})
		send("answered", func(env *envelope.Envelope) {
			env.ResponsePayload = []byte{}
		})
		request := send("witness", nil)

		select {
		case response := <-received:
			assert.Equal(t, request.MessageID, response.CorrelationID)
			assert.False(t, response.IsError)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "no response received")
		}

		assert.Never(t, func() bool {
			return len(f.tracker.Activations(testkit.CounterType, "failed")) > 0 ||
				len(f.tracker.Activations(testkit.CounterType, "answered")) > 0
		}, 200*time.Millisecond, 20*time.Millisecond)
		s1, ok := f.cluster.Silo("S1")
		require.True(t, ok)
		assert.Equal(t, []actor.Identity{actor.NewIdentity(testkit.CounterType, "witness")}, s1.ActiveActors())
		assert.Empty(t, received)
	})
}
