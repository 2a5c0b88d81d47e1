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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/internal/codec"
	"github.com/quarkgo/quark/persistence"
	"github.com/quarkgo/quark/silo"
	"github.com/quarkgo/quark/testkit"
)

type fixture struct {
	cluster  *testkit.Cluster
	tracker  *testkit.Tracker
	store    *persistence.MemoryStore
	registry *actor.Registry
}

func newFixture(t *testing.T, opts ...testkit.Option) *fixture {
	t.Helper()
	registry := actor.NewRegistry()
	tracker := testkit.NewTracker()
	store := persistence.NewMemoryStore()
	require.NoError(t, testkit.RegisterCounter(registry, tracker, store))
	return &fixture{
		cluster:  testkit.NewCluster(t, registry, opts...),
		tracker:  tracker,
		store:    store,
		registry: registry,
	}
}

// startSilos starts the given silos and waits until they share the same ring
func (f *fixture) startSilos(ctx context.Context, ids ...string) []*silo.Silo {
	out := make([]*silo.Silo, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.cluster.StartSilo(ctx, id))
	}
	f.cluster.Refresh(ctx)
	return out
}

func add(ctx context.Context, s *silo.Silo, actorID string, delta int64) (*testkit.ValueResponse, error) {
	return silo.Call[testkit.AddRequest, testkit.ValueResponse](ctx, s.Handle(testkit.CounterType, actorID),
		testkit.CounterAdd, &testkit.AddRequest{Delta: delta})
}

func get(ctx context.Context, s *silo.Silo, actorID string) (*testkit.ValueResponse, error) {
	return silo.Call[struct{}, testkit.ValueResponse](ctx, s.Handle(testkit.CounterType, actorID),
		testkit.CounterGet, &struct{}{})
}

func callRequest(t *testing.T, actorID, method string, payload []byte) []byte {
	t.Helper()
	out, err := codec.Marshal(&testkit.CallRequest{ActorID: actorID, Method: method, Payload: payload})
	require.NoError(t, err)
	return out
}

// actorOwnedBy returns the id of an actor the ring places on siloID
func (f *fixture) actorOwnedBy(t *testing.T, siloID string) string {
	t.Helper()
	return f.actorsOwnedBy(t, siloID, 1)[0]
}

// actorsOwnedBy returns the ids of n actors the ring places on siloID
func (f *fixture) actorsOwnedBy(t *testing.T, siloID string, n int) []string {
	t.Helper()
	var out []string
	for i := 0; i < 1000 && len(out) < n; i++ {
		actorID := fmt.Sprintf("counter-%d", i)
		if f.cluster.Owner(testkit.CounterType, actorID) == siloID {
			out = append(out, actorID)
		}
	}
	require.Len(t, out, n, "not enough actors owned by silo %s", siloID)
	return out
}
