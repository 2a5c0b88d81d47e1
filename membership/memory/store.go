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

// Package memory provides an in-process membership store.
// Silos of a single process, such as tests or the testkit cluster, share one instance.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/membership"
)

// Store is a mutex guarded membership.Store
type Store struct {
	mu      sync.RWMutex
	records map[string]*membership.SiloInfo
	closed  bool
}

var _ membership.Store = (*Store)(nil)

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{records: make(map[string]*membership.SiloInfo)}
}

// Put implements membership.Store
func (s *Store) Put(_ context.Context, info *membership.SiloInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.records[info.SiloID] = info.Clone()
	return nil
}

// Get implements membership.Store
func (s *Store) Get(_ context.Context, siloID string) (*membership.SiloInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	info, ok := s.records[siloID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gerrors.ErrSiloNotFound, siloID)
	}
	return info.Clone(), nil
}

// Delete implements membership.Store
func (s *Store) Delete(_ context.Context, siloID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	delete(s.records, siloID)
	return nil
}

// List implements membership.Store
func (s *Store) List(_ context.Context) ([]*membership.SiloInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]*membership.SiloInfo, 0, len(s.records))
	for _, info := range s.records {
		out = append(out, info.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiloID < out[j].SiloID })
	return out, nil
}

// ListByStatus implements membership.Store
func (s *Store) ListByStatus(ctx context.Context, status membership.Status) ([]*membership.SiloInfo, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return membership.FilterByStatus(all, status), nil
}

// UpdateHeartbeat implements membership.Store
func (s *Store) UpdateHeartbeat(_ context.Context, siloID string, at time.Time, score float64) error {
	return s.update(siloID, func(info *membership.SiloInfo) error {
		info.Beat(at, score)
		return nil
	})
}

// UpdateStatus implements membership.Store
func (s *Store) UpdateStatus(_ context.Context, siloID string, status membership.Status) error {
	return s.update(siloID, func(info *membership.SiloInfo) error {
		return info.Transition(status)
	})
}

// Close implements membership.Store
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) update(siloID string, mutate func(info *membership.SiloInfo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	info, ok := s.records[siloID]
	if !ok {
		return fmt.Errorf("%w: %s", gerrors.ErrSiloNotFound, siloID)
	}
	updated := info.Clone()
	if err := mutate(updated); err != nil {
		return err
	}
	s.records[siloID] = updated
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return errStoreClosed
	}
	return nil
}

var errStoreClosed = errors.New("membership store is closed")
