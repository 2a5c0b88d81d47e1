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
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/atomic"
)

const (
	boltFileMode   os.FileMode = 0o600
	boltBucketName             = "actor_states"
	boltTimeout                = 5 * time.Second
)

// BoltStore is a StateStore backed by a bbolt file
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
	closed *atomic.Bool
}

var _ StateStore = (*BoltStore)(nil)

// NewBoltStore opens or creates the bbolt database at path.
// Missing parent directories are created.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("persistence: creating boltdb directory: %w", err)
	}

	db, err := bbolt.Open(path, boltFileMode, &bbolt.Options{Timeout: boltTimeout, NoGrowSync: true})
	if err != nil {
		return nil, fmt.Errorf("persistence: opening boltdb: %w", err)
	}

	bucket := []byte(boltBucketName)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: initializing boltdb bucket: %w", err)
	}

	return &BoltStore{db: db, bucket: bucket, closed: atomic.NewBool(false)}, nil
}

// Path returns the database file
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Load implements StateStore
func (s *BoltStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}

	var state []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return notFound(key)
		}
		// raw is only valid for the life of the transaction
		state = append([]byte(nil), raw...)
		return nil
	})
	return state, err
}

// Save implements StateStore
func (s *BoltStore) Save(ctx context.Context, key string, state []byte) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	if state == nil {
		state = []byte{}
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), state)
	})
}

// Delete implements StateStore
func (s *BoltStore) Delete(ctx context.Context, key string) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Close implements StateStore. The database file is kept.
func (s *BoltStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) ensureOpen(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return ctx.Err()
}
