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

package testkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quarkgo/quark/actor"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/codec"
	"github.com/quarkgo/quark/persistence"
	"github.com/quarkgo/quark/silo"
)

// CounterType is the actor type registered by RegisterCounter
const CounterType = "Counter"

// Counter methods
const (
	CounterAdd   = "Add"
	CounterGet   = "Get"
	CounterFail  = "Fail"
	CounterPanic = "Panic"
	CounterSleep = "Sleep"
	CounterCall  = "Call"
)

// ErrCounterFailure is the error returned by the Fail method
var ErrCounterFailure = errors.New("counter failure")

// CounterState is the persisted state of a Counter
type CounterState struct {
	Value int64 `cbor:"1,keyasint"`
}

// AddRequest is the request of the Add method
type AddRequest struct {
	Delta int64 `cbor:"1,keyasint"`
}

// SleepRequest is the request of the Sleep method
type SleepRequest struct {
	Duration time.Duration `cbor:"1,keyasint"`
}

// CallRequest asks a Counter to invoke Method on the Counter ActorID
type CallRequest struct {
	ActorID string `cbor:"1,keyasint"`
	Method  string `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint,omitempty"`
}

// ValueResponse is returned by Add, Get and Sleep
type ValueResponse struct {
	Value  int64  `cbor:"1,keyasint"`
	SiloID string `cbor:"2,keyasint"`
}

// Counter is a virtual actor holding a persisted integer.
// It records its lifecycle on a Tracker so that tests can assert where and
// how often it was activated.
type Counter struct {
	identity actor.Identity
	siloID   string
	state    CounterState
	store    persistence.StateStore
	tracker  *Tracker
}

var _ actor.Actor = (*Counter)(nil)

// OnActivate loads the persisted state
func (c *Counter) OnActivate(ctx context.Context) error {
	if s, ok := silo.FromContext(ctx); ok {
		c.siloID = s.ID()
	}

	state, err := persistence.LoadState[CounterState](ctx, c.store, c.identity.String())
	switch {
	case err == nil:
		c.state = state
	case errors.Is(err, gerrors.ErrStateNotFound):
		c.state = CounterState{}
	default:
		return err
	}

	c.tracker.record(LifecycleActivated, c.identity, c.siloID)
	return nil
}

// OnDeactivate flushes the state
func (c *Counter) OnDeactivate(ctx context.Context) error {
	if err := persistence.SaveState(ctx, c.store, c.identity.String(), c.state); err != nil {
		return err
	}
	c.tracker.record(LifecycleDeactivated, c.identity, c.siloID)
	return nil
}

func add(_ context.Context, c *Counter, req *AddRequest) (*ValueResponse, error) {
	c.state.Value += req.Delta
	return c.value(), nil
}

func get(_ context.Context, c *Counter, _ *struct{}) (*ValueResponse, error) {
	return c.value(), nil
}

func sleep(ctx context.Context, c *Counter, req *SleepRequest) (*ValueResponse, error) {
	select {
	case <-time.After(req.Duration):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.value(), nil
}

func call(ctx context.Context, c *Counter, payload []byte) ([]byte, error) {
	req := new(CallRequest)
	if err := codec.Unmarshal(payload, req); err != nil {
		return nil, err
	}

	s, ok := silo.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("counter %s is not hosted by a silo", c.identity.ID)
	}
	return s.Invoke(ctx, CounterType, req.ActorID, req.Method, req.Payload)
}

func (c *Counter) value() *ValueResponse {
	return &ValueResponse{Value: c.state.Value, SiloID: c.siloID}
}

// CounterDispatcher returns the dispatch table of the Counter actor
func CounterDispatcher() actor.Dispatcher {
	return actor.NewDispatchTable[*Counter]().
		Handle(CounterAdd, actor.CBORMethod(add)).
		Handle(CounterGet, actor.CBORMethod(get)).
		Handle(CounterSleep, actor.CBORMethod(sleep)).
		Handle(CounterFail, func(context.Context, *Counter, []byte) ([]byte, error) {
			return nil, ErrCounterFailure
		}).
		Handle(CounterPanic, func(context.Context, *Counter, []byte) ([]byte, error) {
			panic("counter panic")
		}).
		Handle(CounterCall, call)
}

// RegisterCounter registers the Counter actor type on registry.
// Counters persist in store and report their lifecycle to tracker.
func RegisterCounter(registry *actor.Registry, tracker *Tracker, store persistence.StateStore) error {
	factory := func(_ context.Context, id actor.Identity) (actor.Actor, error) {
		return &Counter{identity: id, store: store, tracker: tracker}, nil
	}
	return registry.Register(CounterType, factory, CounterDispatcher())
}

// Lifecycle is a lifecycle hook a Tracker records
type Lifecycle int

const (
	LifecycleActivated Lifecycle = iota
	LifecycleDeactivated
)

// String returns the lifecycle name
func (l Lifecycle) String() string {
	if l == LifecycleDeactivated {
		return "deactivated"
	}
	return "activated"
}

// LifecycleEvent is one lifecycle hook run by an actor on a silo
type LifecycleEvent struct {
	Kind   Lifecycle
	Key    string
	SiloID string
	At     time.Time
}

// Tracker records the lifecycle events of test actors
type Tracker struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

// NewTracker creates an empty Tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) record(kind Lifecycle, identity actor.Identity, siloID string) {
	t.mu.Lock()
	t.events = append(t.events, LifecycleEvent{
		Kind:   kind,
		Key:    identity.String(),
		SiloID: siloID,
		At:     time.Now(),
	})
	t.mu.Unlock()
}

// Events returns the recorded events in order
func (t *Tracker) Events() []LifecycleEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]LifecycleEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Activations returns the silos the actor (actorType, actorID) was activated on, in order
func (t *Tracker) Activations(actorType, actorID string) []string {
	return t.silos(LifecycleActivated, actorType, actorID)
}

// Deactivations returns the silos the actor (actorType, actorID) was deactivated on, in order
func (t *Tracker) Deactivations(actorType, actorID string) []string {
	return t.silos(LifecycleDeactivated, actorType, actorID)
}

func (t *Tracker) silos(kind Lifecycle, actorType, actorID string) []string {
	key := actor.NewIdentity(actorType, actorID).String()
	var out []string
	for _, event := range t.Events() {
		if event.Kind == kind && event.Key == key {
			out = append(out, event.SiloID)
		}
	}
	return out
}
