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

package persistence

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	gerrors "github.com/quarkgo/quark/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type cart struct {
	Items []string `cbor:"1,keyasint"`
	Total int      `cbor:"2,keyasint"`
}

func runStoreSuite(t *testing.T, store StateStore) {
	ctx := context.Background()

	t.Run("With missing state", func(t *testing.T) {
		_, err := store.Load(ctx, "Cart:0")
		require.ErrorIs(t, err, gerrors.ErrStateNotFound)
		require.NoError(t, store.Delete(ctx, "Cart:0"))
	})
	t.Run("With save load and delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "Cart:1", []byte("v1")))
		require.NoError(t, store.Save(ctx, "Cart:1", []byte("v2")))
		state, err := store.Load(ctx, "Cart:1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), state)

		require.NoError(t, store.Delete(ctx, "Cart:1"))
		_, err = store.Load(ctx, "Cart:1")
		require.ErrorIs(t, err, gerrors.ErrStateNotFound)
	})
	t.Run("With typed state", func(t *testing.T) {
		want := cart{Items: []string{"apple", "pear"}, Total: 12}
		require.NoError(t, SaveState(ctx, store, "Cart:2", want))
		got, err := LoadState[cart](ctx, store, "Cart:2")
		require.NoError(t, err)
		assert.Equal(t, want, got)

		_, err = LoadState[cart](ctx, store, "Cart:404")
		require.ErrorIs(t, err, gerrors.ErrStateNotFound)
	})
	t.Run("With concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, SaveState(ctx, store, "Cart:concurrent", cart{Total: i}))
			}()
		}
		wg.Wait()
		_, err := LoadState[cart](ctx, store, "Cart:concurrent")
		require.NoError(t, err)
	})
	t.Run("With cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		require.ErrorIs(t, store.Save(cancelled, "Cart:3", nil), context.Canceled)
	})
	t.Run("With closed store", func(t *testing.T) {
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())
		_, err := store.Load(ctx, "Cart:2")
		require.ErrorIs(t, err, ErrStoreClosed)
		require.ErrorIs(t, store.Save(ctx, "Cart:2", nil), ErrStoreClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states", "silo.db")
	store, err := NewBoltStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	runStoreSuite(t, store)

	t.Run("With reopened file", func(t *testing.T) {
		ctx := context.Background()
		store, err := NewBoltStore(path)
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, "Cart:9", []byte("kept")))
		require.NoError(t, store.Close())

		store, err = NewBoltStore(path)
		require.NoError(t, err)
		state, err := store.Load(ctx, "Cart:9")
		require.NoError(t, err)
		assert.Equal(t, []byte("kept"), state)
		require.NoError(t, store.Close())
	})
}
