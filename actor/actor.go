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

// Package actor defines the contracts between application actors and the silo.
//
// An actor type is registered once with a Factory that builds instances and a
// Dispatcher that maps method names to handlers. The silo activates an
// instance on first use, calls OnActivate before the first message and
// OnDeactivate exactly once when the instance is removed from memory.
package actor

import (
	"context"

	"github.com/quarkgo/quark/envelope"
)

// Actor is a virtual actor instance.
//
// The silo guarantees that no two calls on the same instance ever run
// concurrently, including the lifecycle hooks.
type Actor interface {
	// OnActivate is called before the first message is dispatched.
	// Use it to load state. Returning an error fails the pending messages
	// and activation is attempted again on the next turn.
	OnActivate(ctx context.Context) error
	// OnDeactivate is called once before the instance is dropped.
	// Use it to flush state and release resources.
	OnDeactivate(ctx context.Context) error
}

// Identity addresses an actor instance across the cluster
type Identity struct {
	Type string
	ID   string
}

// NewIdentity creates an Identity
func NewIdentity(actorType, actorID string) Identity {
	return Identity{Type: actorType, ID: actorID}
}

// String returns the placement key "type:id"
func (i Identity) String() string {
	return envelope.Key(i.Type, i.ID)
}

// Factory builds a new actor instance for id.
type Factory func(ctx context.Context, id Identity) (Actor, error)

// Dispatcher routes a method invocation to an actor instance.
// Dispatch must return gerrors.ErrMethodNotFound for unknown methods.
type Dispatcher interface {
	Dispatch(ctx context.Context, instance Actor, method string, payload []byte) ([]byte, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface
type DispatcherFunc func(ctx context.Context, instance Actor, method string, payload []byte) ([]byte, error)

// Dispatch calls f
func (f DispatcherFunc) Dispatch(ctx context.Context, instance Actor, method string, payload []byte) ([]byte, error) {
	return f(ctx, instance, method, payload)
}
