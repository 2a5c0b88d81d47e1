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

// Package persistence stores the state of virtual actors.
//
// A silo never reads or writes state by itself: actors load their state in
// OnActivate and flush it in OnDeactivate through a StateStore, keyed by the
// actor key "type:id". Deactivation before migration therefore hands the
// latest state over to the next owner.
package persistence

import (
	"context"
	"errors"
	"fmt"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/codec"
)

// ErrStoreClosed is returned by the operations of a closed store
var ErrStoreClosed = errors.New("persistence: store is closed")

// StateStore persists opaque actor states. Implementations are safe for concurrent use.
type StateStore interface {
	// Load returns the state saved under key. It returns ErrStateNotFound when none is.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save inserts or replaces the state saved under key
	Save(ctx context.Context, key string, state []byte) error
	// Delete removes the state saved under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the resources of the store
	Close() error
}

// LoadState loads and decodes the CBOR state saved under key
func LoadState[T any](ctx context.Context, store StateStore, key string) (T, error) {
	var state T
	data, err := store.Load(ctx, key)
	if err != nil {
		return state, err
	}
	if err := codec.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("persistence: decoding state of %s: %w", key, err)
	}
	return state, nil
}

// SaveState encodes state with CBOR and saves it under key
func SaveState[T any](ctx context.Context, store StateStore, key string, state T) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("persistence: encoding state of %s: %w", key, err)
	}
	return store.Save(ctx, key, data)
}

func notFound(key string) error {
	return fmt.Errorf("%w: %s", gerrors.ErrStateNotFound, key)
}
