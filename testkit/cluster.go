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

// Package testkit runs clusters of silos inside one test process.
//
// The silos of a Cluster share an in-memory membership store and talk over a
// transport.LocalNetwork, so a multi-silo scenario needs no port, container or
// broker. Unreachable silos are simulated with Disconnect.
package testkit

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/config"
	"github.com/quarkgo/quark/internal/xsync"
	"github.com/quarkgo/quark/log"
	"github.com/quarkgo/quark/membership"
	"github.com/quarkgo/quark/membership/memory"
	"github.com/quarkgo/quark/silo"
	"github.com/quarkgo/quark/transport"
)

// Cluster is a set of in-process silos sharing a membership store
type Cluster struct {
	tb        testing.TB
	logger    log.Logger
	registry  *actor.Registry
	network   *transport.LocalNetwork
	store     *memory.Store
	silos     *xsync.Map[string, *silo.Silo]
	configure []func(cfg *config.Config)
	stopped   *atomic.Bool
}

// NewCluster creates an empty cluster whose silos host the actor types of registry.
// Every silo still running when the test ends is stopped.
//
// Example:
//
//	cluster := testkit.NewCluster(t, registry)
//	s1 := cluster.StartSilo(ctx, "S1")
//	s2 := cluster.StartSilo(ctx, "S2")
//	cluster.Refresh(ctx)
//	out, err := s1.Invoke(ctx, "Order", "42", "Get", nil)
func NewCluster(tb testing.TB, registry *actor.Registry, opts ...Option) *Cluster {
	tb.Helper()
	cluster := &Cluster{
		tb:       tb,
		logger:   log.DiscardLogger,
		registry: registry,
		network:  transport.NewLocalNetwork(),
		store:    memory.NewStore(),
		silos:    xsync.NewMap[string, *silo.Silo](),
		stopped:  atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(cluster)
	}

	tb.Cleanup(cluster.Stop)
	return cluster
}

// Config returns the configuration StartSilo uses for siloID.
// Timers are shortened so that scenarios converge within a test.
func (c *Cluster) Config(siloID string) *config.Config {
	cfg := config.Default()
	cfg.SiloID = siloID
	cfg.Host = "127.0.0.1"
	cfg.LogLevel = "error"
	cfg.HeartbeatInterval = 100 * time.Millisecond
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.RequestTimeout = 5 * time.Second
	cfg.Membership.MonitorInterval = 200 * time.Millisecond
	cfg.Membership.EvictionTimeout = 2 * time.Second
	cfg.Transport.Kind = config.TransportLocal
	for _, configure := range c.configure {
		configure(cfg)
	}
	return cfg
}

// StartSilo starts a silo named siloID on the cluster. The test fails when it cannot start.
// opts are applied after the cluster's own options.
func (c *Cluster) StartSilo(ctx context.Context, siloID string, opts ...silo.Option) *silo.Silo {
	c.tb.Helper()
	if _, ok := c.silos.Get(siloID); ok {
		c.tb.Fatalf("silo %s already exists", siloID)
	}

	instance, err := silo.New(append([]silo.Option{
		silo.WithConfig(c.Config(siloID)),
		silo.WithRegistry(c.registry),
		silo.WithMembershipStore(c.store),
		silo.WithLocalNetwork(c.network),
		silo.WithLogger(c.logger),
	}, opts...)...)
	require.NoError(c.tb, err)
	require.NoError(c.tb, instance.Start(ctx))

	c.silos.Set(siloID, instance)
	return instance
}

// StopSilo stops the silo named siloID
func (c *Cluster) StopSilo(ctx context.Context, siloID string) error {
	instance, ok := c.silos.Get(siloID)
	if !ok {
		return fmt.Errorf("silo %s not found", siloID)
	}
	return instance.Stop(ctx)
}

// Silo returns the silo named siloID
func (c *Cluster) Silo(siloID string) (*silo.Silo, bool) {
	return c.silos.Get(siloID)
}

// Silos returns the silos of the cluster sorted by id, whatever their status
func (c *Cluster) Silos() []*silo.Silo {
	silos := c.silos.Values()
	sort.Slice(silos, func(i, j int) bool { return silos[i].ID() < silos[j].ID() })
	return silos
}

// Active returns the silos of the cluster that are Active
func (c *Cluster) Active() []*silo.Silo {
	var out []*silo.Silo
	for _, instance := range c.Silos() {
		if instance.Status() == membership.StatusActive {
			out = append(out, instance)
		}
	}
	return out
}

// Refresh reloads the membership of every active silo so that they all
// agree on the ring without waiting for the monitor interval.
// It does not count as a health check.
func (c *Cluster) Refresh(ctx context.Context) {
	c.tb.Helper()
	for _, instance := range c.Active() {
		require.NoError(c.tb, instance.Membership().Reload(ctx))
	}
}

// Owner returns the silo owning the actor (actorType, actorID) on the ring of
// the first active silo
func (c *Cluster) Owner(actorType, actorID string) string {
	c.tb.Helper()
	active := c.Active()
	require.NotEmpty(c.tb, active, "no active silo")
	owner, err := active[0].Directory().Owner(actor.NewIdentity(actorType, actorID).String())
	require.NoError(c.tb, err)
	return owner
}

// Network returns the network connecting the silos
func (c *Cluster) Network() *transport.LocalNetwork {
	return c.network
}

// Store returns the membership store shared by the silos
func (c *Cluster) Store() membership.Store {
	return c.store
}

// Stop stops every silo that is still running
func (c *Cluster) Stop() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}

	ctx := context.Background()
	for _, instance := range c.Silos() {
		if instance.Status() == membership.StatusDead {
			continue
		}
		if err := instance.Stop(ctx); err != nil {
			c.tb.Errorf("failed to stop silo %s: %v", instance.ID(), err)
		}
	}
	c.silos.Reset()
}
