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

package actor

import (
	"context"
	"fmt"
	"sort"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/validation"
	"github.com/quarkgo/quark/internal/xsync"
)

type registration struct {
	factory    Factory
	dispatcher Dispatcher
}

// Registry binds actor types to their factory and dispatcher
type Registry struct {
	types *xsync.Map[string, *registration]
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{types: xsync.NewMap[string, *registration]()}
}

// Register binds actorType to factory and dispatcher
func (r *Registry) Register(actorType string, factory Factory, dispatcher Dispatcher) error {
	if err := validation.New(validation.FailFast()).
		AddValidator(validation.NewIdentifierValidator("actor type", actorType)).
		AddAssertion(factory != nil, "actor factory is required").
		AddAssertion(dispatcher != nil, "actor dispatcher is required").
		Validate(); err != nil {
		return err
	}

	if _, stored := r.types.SetIfAbsent(actorType, &registration{factory: factory, dispatcher: dispatcher}); !stored {
		return fmt.Errorf("actor type %s is already registered", actorType)
	}
	return nil
}

// Dispatcher returns the dispatcher bound to actorType
func (r *Registry) Dispatcher(actorType string) (Dispatcher, bool) {
	reg, ok := r.types.Get(actorType)
	if !ok {
		return nil, false
	}
	return reg.dispatcher, true
}

// Has reports whether actorType is registered
func (r *Registry) Has(actorType string) bool {
	_, ok := r.types.Get(actorType)
	return ok
}

// NewInstance builds a new instance of id.Type
func (r *Registry) NewInstance(ctx context.Context, id Identity) (Actor, error) {
	reg, ok := r.types.Get(id.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", gerrors.ErrUnknownActorType, id.Type)
	}

	instance, err := reg.factory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", gerrors.ErrActorCreationFailed, id, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s: factory returned nil", gerrors.ErrActorCreationFailed, id)
	}
	return instance, nil
}

// Types returns the sorted registered actor types
func (r *Registry) Types() []string {
	out := r.types.Keys()
	sort.Strings(out)
	return out
}
