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

// Package redis stores the membership table in a redis hash.
//
// Every record is a CBOR encoded field of the hash "<namespace>:silos".
// Read-modify-write updates run inside WATCH/MULTI transactions and are
// retried when another silo modified the hash in between.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/validation"
	"github.com/quarkgo/quark/membership"
)

const maxTxRetries = 64

// Config holds the redis connection settings
type Config struct {
	// Addr is the "host:port" address of the redis server
	Addr string
	// Username for redis authentication (optional)
	Username string
	// Password for redis authentication (optional)
	Password string
	// DB selects the redis database
	DB int
	// Namespace prefixes the keys of the cluster. Defaults to "quark".
	Namespace string
	// Timeout bounds the connectivity check performed by NewStore
	Timeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(c.Addr != "", "Addr is required").
		AddAssertion(c.DB >= 0, "DB is invalid").
		AddValidator(validation.NewPositiveDurationValidator("Timeout", c.Timeout)).
		Validate()
}

// Store is the redis membership.Store
type Store struct {
	client redis.UniversalClient
	key    string
}

var _ membership.Store = (*Store)(nil)

// NewStore connects to redis and returns a Store
func NewStore(ctx context.Context, config *Config) (*Store, error) {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close redis client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewStoreWithClient(client, config.Namespace), nil
}

// NewStoreWithClient returns a Store using an existing client. Close closes the client.
func NewStoreWithClient(client redis.UniversalClient, namespace string) *Store {
	if namespace == "" {
		namespace = "quark"
	}
	return &Store{client: client, key: namespace + ":silos"}
}

// Put implements membership.Store
func (s *Store) Put(ctx context.Context, info *membership.SiloInfo) error {
	data, err := membership.Encode(info)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key, info.SiloID, data).Err()
}

// Get implements membership.Store
func (s *Store) Get(ctx context.Context, siloID string) (*membership.SiloInfo, error) {
	data, err := s.client.HGet(ctx, s.key, siloID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", gerrors.ErrSiloNotFound, siloID)
		}
		return nil, err
	}
	return membership.Decode(data)
}

// Delete implements membership.Store
func (s *Store) Delete(ctx context.Context, siloID string) error {
	return s.client.HDel(ctx, s.key, siloID).Err()
}

// List implements membership.Store
func (s *Store) List(ctx context.Context) ([]*membership.SiloInfo, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*membership.SiloInfo, 0, len(fields))
	for _, data := range fields {
		info, err := membership.Decode([]byte(data))
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
	return s.client.Close()
}

func (s *Store) update(ctx context.Context, siloID string, mutate func(info *membership.SiloInfo) error) error {
	txf := func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, s.key, siloID).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", gerrors.ErrSiloNotFound, siloID)
			}
			return err
		}

		info, err := membership.Decode(data)
		if err != nil {
			return err
		}
		if err := mutate(info); err != nil {
			return err
		}

		encoded, err := membership.Encode(info)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, siloID, encoded)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to update silo %s: too many concurrent writers", siloID)
}
