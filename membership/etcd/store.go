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

// Package etcd stores the membership table in etcd.
//
// Each record lives under "<namespace>/silos/<siloID>". Updates are
// transactions conditioned on the ModRevision read before the change.
package etcd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/validation"
	"github.com/quarkgo/quark/membership"
)

const (
	maxTxRetries = 64
	silosPrefix  = "silos/"
)

// Config holds the etcd connection settings
type Config struct {
	// Endpoints is a list of etcd cluster endpoints
	Endpoints []string
	// Namespace prefixes the keys of the cluster. Defaults to "quark".
	Namespace string
	// TLS configuration (optional)
	TLS *tls.Config
	// DialTimeout for etcd client connections
	DialTimeout time.Duration
	// Username for etcd authentication (optional)
	Username string
	// Password for etcd authentication (optional)
	Password string
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(len(c.Endpoints) > 0, "Endpoints must not be empty").
		AddValidator(validation.NewPositiveDurationValidator("DialTimeout", c.DialTimeout)).
		Validate()
}

// Store is the etcd membership.Store
type Store struct {
	client *clientv3.Client
	kv     clientv3.KV
}

var _ membership.Store = (*Store)(nil)

// NewStore connects to etcd and returns a Store
func NewStore(ctx context.Context, config *Config) (*Store, error) {
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
		Context:     ctx,
	})
	if err != nil {
		return nil, err
	}

	statusCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()
	if _, err := client.Status(statusCtx, config.Endpoints[0]); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	ns := config.Namespace
	if ns == "" {
		ns = "quark"
	}
	return &Store{
		client: client,
		kv:     namespace.NewKV(client.KV, ns+"/"),
	}, nil
}

// Put implements membership.Store
func (s *Store) Put(ctx context.Context, info *membership.SiloInfo) error {
	data, err := membership.Encode(info)
	if err != nil {
		return err
	}
	_, err = s.kv.Put(ctx, key(info.SiloID), string(data))
	return err
}

// Get implements membership.Store
func (s *Store) Get(ctx context.Context, siloID string) (*membership.SiloInfo, error) {
	info, _, err := s.get(ctx, siloID)
	return info, err
}

// Delete implements membership.Store
func (s *Store) Delete(ctx context.Context, siloID string) error {
	_, err := s.kv.Delete(ctx, key(siloID))
	return err
}

// List implements membership.Store
func (s *Store) List(ctx context.Context) ([]*membership.SiloInfo, error) {
	resp, err := s.kv.Get(ctx, silosPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	out := make([]*membership.SiloInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		info, err := membership.Decode(kv.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
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
func (s *Store) UpdateHeartbeat(ctx context.Context, siloID string, at time.Time, score float64) error {
	return s.update(ctx, siloID, func(info *membership.SiloInfo) error {
		info.Beat(at, score)
		return nil
	})
}

// UpdateStatus implements membership.Store
func (s *Store) UpdateStatus(ctx context.Context, siloID string, status membership.Status) error {
	return s.update(ctx, siloID, func(info *membership.SiloInfo) error {
		return info.Transition(status)
	})
}

// Close implements membership.Store
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, siloID string) (*membership.SiloInfo, int64, error) {
	resp, err := s.kv.Get(ctx, key(siloID))
	if err != nil {
		return nil, 0, err
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", gerrors.ErrSiloNotFound, siloID)
	}
	info, err := membership.Decode(resp.Kvs[0].Value)
	if err != nil {
		return nil, 0, err
	}
	return info, resp.Kvs[0].ModRevision, nil
}

func (s *Store) update(ctx context.Context, siloID string, mutate func(info *membership.SiloInfo) error) error {
	k := key(siloID)
	for range maxTxRetries {
		info, revision, err := s.get(ctx, siloID)
		if err != nil {
			return err
		}
		if err := mutate(info); err != nil {
			return err
		}
		data, err := membership.Encode(info)
		if err != nil {
			return err
		}

		resp, err := s.kv.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(k), "=", revision)).
			Then(clientv3.OpPut(k, string(data))).
			Commit()
		if err != nil {
			return err
		}
		if resp.Succeeded {
			return nil
		}
	}
	return fmt.Errorf("failed to update silo %s: too many concurrent writers", siloID)
}

func key(siloID string) string {
	return silosPrefix + siloID
}
