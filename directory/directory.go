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

// Package directory decides which silo serves an actor.
//
// Placement is computed on a consistent hash ring built from the active
// membership view. Decisions are cached in an expirable LRU that is purged
// whenever the topology changes, so a cached decision never outlives the ring
// it was computed on.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/atomic"

	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/ring"
	"github.com/quarkgo/quark/internal/xsync"
	"github.com/quarkgo/quark/log"
	"github.com/quarkgo/quark/membership"
)

// DecisionKind tells the caller how to reach an actor
type DecisionKind int

const (
	// NotFound means no silo can own the actor
	NotFound DecisionKind = iota
	// Remote means another silo owns the actor
	Remote
	// LocalSilo means this silo owns the actor
	LocalSilo
	// SameProcess means this silo owns the actor and hosts a live activation of it
	SameProcess
)

// String returns the decision name
func (k DecisionKind) String() string {
	switch k {
	case Remote:
		return "Remote"
	case LocalSilo:
		return "LocalSilo"
	case SameProcess:
		return "SameProcess"
	default:
		return "NotFound"
	}
}

// RoutingDecision is the outcome of Route
type RoutingDecision struct {
	Kind         DecisionKind
	TargetSiloID string
}

// ActorLocation records the silo hosting an activation
type ActorLocation struct {
	ActorID     string
	ActorType   string
	SiloID      string
	LastUpdated time.Time
}

// Directory routes actor invocations to silos
type Directory struct {
	selfID      string
	ring        *ring.Ring
	cache       *expirable.LRU[string, RoutingDecision]
	locations   *xsync.ShardedMap[*ActorLocation]
	localBypass bool
	logger      log.Logger

	cacheSize    int
	cacheTTL     time.Duration
	virtualNodes int

	// topology is bumped on every ring rebuild so that decisions computed
	// on a previous ring are not cached
	topology *atomic.Uint64
}

// New creates the directory of silo selfID
func New(selfID string, opts ...Option) *Directory {
	d := &Directory{
		selfID:       selfID,
		locations:    xsync.NewShardedMap[*ActorLocation](0),
		logger:       log.DiscardLogger,
		cacheSize:    DefaultCacheSize,
		cacheTTL:     DefaultCacheTTL,
		virtualNodes: ring.DefaultVirtualNodes,
		topology:     atomic.NewUint64(0),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.ring = ring.New(ring.WithVirtualNodes(d.virtualNodes))
	d.cache = expirable.NewLRU[string, RoutingDecision](d.cacheSize, nil, d.cacheTTL)
	return d
}

// Route returns how to reach the actor (actorType, actorID)
func (d *Directory) Route(_ context.Context, actorID, actorType string) (RoutingDecision, error) {
	key := envelope.Key(actorType, actorID)
	if decision, ok := d.cache.Get(key); ok {
		return decision, nil
	}

	version := d.topology.Load()
	owner, err := d.ring.GetNode(key)
	if err != nil {
		if errors.Is(err, gerrors.ErrEmptyRing) {
			return RoutingDecision{Kind: NotFound}, fmt.Errorf("%w: cannot place %s", gerrors.ErrNoSiloAvailable, key)
		}
		return RoutingDecision{Kind: NotFound}, err
	}

	decision := RoutingDecision{Kind: Remote, TargetSiloID: owner}
	if owner == d.selfID {
		decision.Kind = LocalSilo
		if d.localBypass {
			if location, ok := d.locations.Get(key); ok && location.SiloID == d.selfID {
				decision.Kind = SameProcess
			}
		}
	}

	d.cache.Add(key, decision)
	if d.topology.Load() != version {
		// the ring changed while deciding; SetMembers bumps the version before purging
		d.cache.Remove(key)
	}
	return decision, nil
}

// Owner returns the silo owning key on the current ring
func (d *Directory) Owner(key string) (string, error) {
	return d.ring.GetNode(key)
}

// OwnerExcluding returns the silo that owns key once siloID has left the ring
func (d *Directory) OwnerExcluding(key, siloID string) (string, error) {
	nodes, err := d.ring.GetNodes(key, 2)
	if err != nil {
		return "", err
	}
	for _, node := range nodes {
		if node != siloID {
			return node, nil
		}
	}
	return "", fmt.Errorf("%w: no silo left to own %s", gerrors.ErrNoSiloAvailable, key)
}

// InvalidateCache drops the cached decision of one actor
func (d *Directory) InvalidateCache(actorID, actorType string) {
	d.cache.Remove(envelope.Key(actorType, actorID))
}

// PurgeCache drops every cached decision
func (d *Directory) PurgeCache() {
	d.cache.Purge()
}

// CacheLen returns the number of cached decisions
func (d *Directory) CacheLen() int {
	return d.cache.Len()
}

// LookupActor returns the recorded location of an actor
func (d *Directory) LookupActor(_ context.Context, actorID, actorType string) (*ActorLocation, bool) {
	location, ok := d.locations.Get(envelope.Key(actorType, actorID))
	if !ok {
		return nil, false
	}
	clone := *location
	return &clone, true
}

// RegisterActor records that siloID hosts the actor.
// Registering an actor already hosted by another silo fails with ErrActorAlreadyRegistered.
func (d *Directory) RegisterActor(_ context.Context, actorID, actorType, siloID string) error {
	key := envelope.Key(actorType, actorID)
	location, created, _ := d.locations.GetOrCreate(key, func() (*ActorLocation, error) {
		return &ActorLocation{
			ActorID:     actorID,
			ActorType:   actorType,
			SiloID:      siloID,
			LastUpdated: time.Now(),
		}, nil
	})

	if !created {
		if location.SiloID != siloID {
			return fmt.Errorf("%w: %s is hosted by silo %s", gerrors.ErrActorAlreadyRegistered, key, location.SiloID)
		}
		d.locations.Set(key, &ActorLocation{
			ActorID:     actorID,
			ActorType:   actorType,
			SiloID:      siloID,
			LastUpdated: time.Now(),
		})
	}

	d.cache.Remove(key)
	return nil
}

// UnregisterActor forgets the location of an actor
func (d *Directory) UnregisterActor(_ context.Context, actorID, actorType string) {
	key := envelope.Key(actorType, actorID)
	d.locations.Delete(key)
	d.cache.Remove(key)
}

// Locations returns every recorded location sorted by key
func (d *Directory) Locations() []*ActorLocation {
	values := d.locations.Values()
	out := make([]*ActorLocation, 0, len(values))
	for _, location := range values {
		clone := *location
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return envelope.Key(out[i].ActorType, out[i].ActorID) < envelope.Key(out[j].ActorType, out[j].ActorID)
	})
	return out
}

// Members returns the silos currently on the ring
func (d *Directory) Members() []string {
	return d.ring.Nodes()
}

// SetMembers rebuilds the ring from members and purges the decision cache
func (d *Directory) SetMembers(members []string) {
	d.ring.SetNodes(members)
	d.topology.Inc()
	d.cache.Purge()
}

// OnMembershipEvent rebuilds the ring from the view carried by event.
// Locations hosted by a remote silo that left are forgotten.
func (d *Directory) OnMembershipEvent(event membership.Event) {
	d.SetMembers(event.Members)

	// the local silo keeps serving its activations while it drains
	if event.Type == membership.SiloLeft && event.Silo.SiloID != d.selfID {
		left := event.Silo.SiloID
		var stale []string
		d.locations.Range(func(key string, location *ActorLocation) bool {
			if location.SiloID == left {
				stale = append(stale, key)
			}
			return true
		})
		for _, key := range stale {
			d.locations.DeleteIf(key, func(current *ActorLocation) bool { return current.SiloID == left })
		}
	}

	d.logger.Debugf("directory ring rebuilt after %s of silo %s, members=%v", event.Type, event.Silo.SiloID, event.Members)
}
