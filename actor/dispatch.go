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
	"github.com/quarkgo/quark/internal/codec"
)

// Method handles one method of actor type T on raw payload bytes
type Method[T Actor] func(ctx context.Context, instance T, payload []byte) ([]byte, error)

// DispatchTable is a Dispatcher built from a static method table.
// Methods are registered at init time, no reflection is involved at dispatch.
type DispatchTable[T Actor] struct {
	methods map[string]Method[T]
}

var _ Dispatcher = (*DispatchTable[Actor])(nil)

// NewDispatchTable creates an empty DispatchTable
func NewDispatchTable[T Actor]() *DispatchTable[T] {
	return &DispatchTable[T]{methods: make(map[string]Method[T])}
}

// Handle registers the handler of method. It panics on duplicates,
// which can only happen through a programming error at init time.
func (d *DispatchTable[T]) Handle(method string, handler Method[T]) *DispatchTable[T] {
	if _, ok := d.methods[method]; ok {
		panic(fmt.Sprintf("actor: method %q registered twice", method))
	}
	d.methods[method] = handler
	return d
}

// Methods returns the sorted list of registered methods
func (d *DispatchTable[T]) Methods() []string {
	out := make([]string, 0, len(d.methods))
	for method := range d.methods {
		out = append(out, method)
	}
	sort.Strings(out)
	return out
}

// Dispatch implements Dispatcher
func (d *DispatchTable[T]) Dispatch(ctx context.Context, instance Actor, method string, payload []byte) ([]byte, error) {
	handler, ok := d.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gerrors.ErrMethodNotFound, method)
	}
	typed, ok := instance.(T)
	if !ok {
		return nil, fmt.Errorf("actor: instance %T does not match dispatch table", instance)
	}
	return handler(ctx, typed, payload)
}

// CBORMethod adapts a typed handler to a Method using the wire codec.
// A nil or empty payload decodes to the zero request.
func CBORMethod[T Actor, Req, Resp any](handler func(ctx context.Context, instance T, req *Req) (*Resp, error)) Method[T] {
	return func(ctx context.Context, instance T, payload []byte) ([]byte, error) {
		req := new(Req)
		if len(payload) > 0 {
			if err := codec.Unmarshal(payload, req); err != nil {
				return nil, err
			}
		}

		resp, err := handler(ctx, instance, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, nil
		}
		return codec.Marshal(resp)
	}
}
