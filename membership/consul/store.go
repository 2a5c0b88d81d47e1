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

// Package consul stores the membership table in the consul KV store.
//
// Each record lives under "<namespace>/silos/<siloID>". Updates use the
// check-and-set operation on the ModifyIndex read before the change.
package consul

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/validation"
	"github.com/quarkgo/quark/membership"
)

const maxCASRetries = 64

// Config holds the consul connection settings
type Config struct {
	// Address is the address of the Consul agent to connect to.
	// Default: "127.0.0.1:8500"
	Address string
	// Datacenter specifies the Consul datacenter to use.
	// If empty, the agent's default datacenter is used.
	Datacenter string
	// Token is the Consul ACL token used for authenticated requests.
	Token string
	// Namespace prefixes the keys of the cluster. Defaults to "quark".
	Namespace string
	// Timeout specifies the maximum duration of the connectivity check.
	// Default: 10s
	Timeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the defaults
func (c *Config) Sanitize() {
	if c.Address == "" {
		c.Address = "127.0.0.1:8500"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	c.Namespace = strings.Trim(c.Namespace, "/")
	if c.Namespace == "" {
		c.Namespace = "quark"
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(c.Address != "", "Address is required").
		AddValidator(validation.NewPositiveDurationValidator("Timeout", c.Timeout)).
		Validate()
}

// Store is the consul membership.Store
type Store struct {
	kv     *api.KV
	prefix string
}

var _ membership.Store = (*Store)(nil)

// NewStore connects to consul and returns a Store
func NewStore(ctx context.Context, config *Config) (*Store, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("consul store config is invalid: %w", err)
	}

	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Datacenter = config.Datacenter
	consulConfig.Token = config.Token

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	if _, _, err := client.KV().Keys(config.Namespace+"/", "/", (&api.QueryOptions{}).WithContext(checkCtx)); err != nil {
		return nil, fmt.Errorf("failed to connect to consul: %w", err)
	}

	return &Store{kv: client.KV(), prefix: config.Namespace + "/silos/"}, nil
}

// Put implements membership.Store
func (s *Store) Put(ctx context.Context, info *membership.SiloInfo) error {
	data, err := membership.Encode(info)
	if err != nil {
		return err
	}
	_, err = s.kv.Put(&api.KVPair{Key: s.prefix + info.SiloID, Value: data}, writeOptions(ctx))
	return err
}

// Get implements membership.Store
func (s *Store) Get(ctx context.Context, siloID string) (*membership.SiloInfo, error) {
	info, _, err := s.get(ctx, siloID)
	return info, err
}

// Delete implements membership.Store
func (s *Store) Delete(ctx context.Context, siloID string) error {
	_, err := s.kv.Delete(s.prefix+siloID, writeOptions(ctx))
	return err
}

// List implements membership.Store
func (s *Store) List(ctx context.Context) ([]*membership.SiloInfo, error) {
	pairs, _, err := s.kv.List(s.prefix, queryOptions(ctx))
	if err != nil {
		return nil, err
	}

	out := make([]*membership.SiloInfo, 0, len(pairs))
	for _, pair := range pairs {
		info, err := membership.Decode(pair.Value)
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

// Close implements membership.Store. The consul client holds no connection to release.
func (s *Store) Close() error {
	return nil
}

func (s *Store) get(ctx context.Context, siloID string) (*membership.SiloInfo, uint64, error) {
	pair, _, err := s.kv.Get(s.prefix+siloID, queryOptions(ctx))
	if err != nil {
		return nil, 0, err
	}
	if pair == nil {
		return nil, 0, fmt.Errorf("%w: %s", gerrors.ErrSiloNotFound, siloID)
	}
	info, err := membership.Decode(pair.Value)
	if err != nil {
		return nil, 0, err
	}
	return info, pair.ModifyIndex, nil
}

func (s *Store) update(ctx context.Context, siloID string, mutate func(info *membership.SiloInfo) error) error {
	for range maxCASRetries {
		info, index, err := s.get(ctx, siloID)
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

		ok, _, err := s.kv.CAS(&api.KVPair{Key: s.prefix + siloID, Value: data, ModifyIndex: index}, writeOptions(ctx))
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("failed to update silo %s: too many concurrent writers", siloID)
}

func queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{RequireConsistent: true}).WithContext(ctx)
}

func writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}
