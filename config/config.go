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

// Package config describes the settings of a silo.
//
// A Config is usually read from a YAML file by Load, then overridden by
// QUARK_ prefixed environment variables. Every field has a default, so an
// empty file yields a runnable single-silo configuration.
package config

import (
	"fmt"
	"time"

	"github.com/quarkgo/quark/directory"
	"github.com/quarkgo/quark/internal/compression"
	"github.com/quarkgo/quark/internal/ring"
	"github.com/quarkgo/quark/internal/validation"
	"github.com/quarkgo/quark/mailbox"
	"github.com/quarkgo/quark/membership"
)

// Transport kinds
const (
	TransportLocal = "local"
	TransportHTTP  = "http"
	TransportNATS  = "nats"
)

// Mailbox full modes
const (
	FullModeWait   = "wait"
	FullModeReject = "reject"
)

const (
	DefaultHeartbeatInterval       = 5 * time.Second
	DefaultShutdownTimeout         = 30 * time.Second
	DefaultRequestTimeout          = 30 * time.Second
	DefaultInvokeRetries           = 3
	DefaultColdActorThreshold      = 10 * time.Second
	DefaultMaxConcurrentMigrations = 8
	DefaultMigrationTimeout        = 10 * time.Second
	DefaultPoolSize                = 0
)

var evictionPolicies = map[string]membership.EvictionPolicy{
	"none":         membership.EvictionNone,
	"timeout":      membership.EvictionTimeoutBased,
	"health-score": membership.EvictionHealthScoreBased,
	"hybrid":       membership.EvictionHybrid,
}

// Config holds the settings of a silo
type Config struct {
	// SiloID uniquely identifies the silo in the cluster
	SiloID        string `yaml:"silo_id"`
	// Host is the address the transport binds to. "0.0.0.0" binds every interface.
	Host          string `yaml:"host"`
	// Port is the transport port. Zero picks an ephemeral port.
	Port          int    `yaml:"port"`
	// AdvertiseHost is the address other silos dial. It is discovered when empty.
	AdvertiseHost string `yaml:"advertise_host"`
	RegionID      string `yaml:"region_id"`
	ZoneID        string `yaml:"zone_id"`
	ShardGroupID  string `yaml:"shard_group_id"`
	// LogLevel is one of debug, info, warn, error
	LogLevel      string `yaml:"log_level"`
	// PoolSize is the number of worker pool shards running the actor turns. Zero means GOMAXPROCS.
	PoolSize      int    `yaml:"pool_size"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	InvokeRetries     int           `yaml:"invoke_retries"`

	Mailbox    Mailbox    `yaml:"mailbox"`
	Membership Membership `yaml:"membership"`
	Routing    Routing    `yaml:"routing"`
	Migration  Migration  `yaml:"migration"`
	Transport  Transport  `yaml:"transport"`
}

// Mailbox holds the per-actor queue settings
type Mailbox struct {
	Capacity           int           `yaml:"capacity"`
	FullMode           string        `yaml:"full_mode"`
	MaxMessagesPerTurn int           `yaml:"max_messages_per_turn"`
	ActivationRetries  int           `yaml:"activation_retries"`
	ActivationTimeout  time.Duration `yaml:"activation_timeout"`
}

// Membership holds the failure detection settings
type Membership struct {
	EvictionPolicy              string        `yaml:"eviction_policy"`
	EvictionTimeout             time.Duration `yaml:"eviction_timeout"`
	HealthScoreThreshold        float64       `yaml:"health_score_threshold"`
	ConsecutiveUnhealthyChecks  int           `yaml:"consecutive_unhealthy_checks"`
	MinimumClusterSizeForQuorum int           `yaml:"minimum_cluster_size_for_quorum"`
	MonitorInterval             time.Duration `yaml:"monitor_interval"`
	DeadSiloRetention           time.Duration `yaml:"dead_silo_retention"`
}

// Routing holds the placement settings
type Routing struct {
	VirtualNodes int           `yaml:"virtual_nodes"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheSize    int           `yaml:"cache_size"`
	LocalBypass  bool          `yaml:"local_bypass"`
}

// Migration holds the shutdown hand-off settings
type Migration struct {
	Enabled                 bool          `yaml:"enabled"`
	ColdActorThreshold      time.Duration `yaml:"cold_actor_threshold"`
	MaxConcurrentMigrations int           `yaml:"max_concurrent_migrations"`
	MigrationTimeout        time.Duration `yaml:"migration_timeout"`
}

// Transport selects and tunes the silo transport
type Transport struct {
	Kind         string `yaml:"kind"`
	Compression  string `yaml:"compression"`
	MaxFrameSize uint32 `yaml:"max_frame_size"`
	NatsURL      string `yaml:"nats_url"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Host:              "127.0.0.1",
		LogLevel:          "info",
		PoolSize:          DefaultPoolSize,
		HeartbeatInterval: DefaultHeartbeatInterval,
		ShutdownTimeout:   DefaultShutdownTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		InvokeRetries:     DefaultInvokeRetries,
		Mailbox: Mailbox{
			Capacity:           mailbox.DefaultCapacity,
			FullMode:           FullModeWait,
			MaxMessagesPerTurn: mailbox.DefaultMaxMessagesPerTurn,
			ActivationRetries:  mailbox.DefaultActivationRetries,
			ActivationTimeout:  mailbox.DefaultActivationTimeout,
		},
		Membership: Membership{
			EvictionPolicy:              membership.EvictionHybrid.String(),
			EvictionTimeout:             membership.DefaultEvictionTimeout,
			HealthScoreThreshold:        membership.DefaultHealthScoreThreshold,
			ConsecutiveUnhealthyChecks:  membership.DefaultConsecutiveUnhealthyChecks,
			MinimumClusterSizeForQuorum: membership.DefaultMinimumClusterSizeForQuorum,
			MonitorInterval:             membership.DefaultMonitorInterval,
			DeadSiloRetention:           membership.DefaultDeadSiloRetention,
		},
		Routing: Routing{
			VirtualNodes: ring.DefaultVirtualNodes,
			CacheTTL:     directory.DefaultCacheTTL,
			CacheSize:    directory.DefaultCacheSize,
		},
		Migration: Migration{
			Enabled:                 true,
			ColdActorThreshold:      DefaultColdActorThreshold,
			MaxConcurrentMigrations: DefaultMaxConcurrentMigrations,
			MigrationTimeout:        DefaultMigrationTimeout,
		},
		Transport: Transport{
			Kind:        TransportHTTP,
			Compression: compression.None,
		},
	}
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
// Every violation is reported, not only the first one.
func (c *Config) Validate() error {
	_, knownPolicy := evictionPolicies[c.Membership.EvictionPolicy]
	return validation.New(validation.AllErrors()).
		AddValidator(validation.NewIdentifierValidator("silo_id", c.SiloID)).
		AddValidator(validation.NewHostPortValidator(c.Host, c.Port)).
		AddAssertion(c.PoolSize >= 0, "pool_size must not be negative").
		AddValidator(validation.NewPositiveDurationValidator("heartbeat_interval", c.HeartbeatInterval)).
		AddValidator(validation.NewPositiveDurationValidator("shutdown_timeout", c.ShutdownTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("request_timeout", c.RequestTimeout)).
		AddAssertion(c.InvokeRetries >= 1, "invoke_retries must be at least 1").
		AddAssertion(c.Mailbox.Capacity >= mailbox.MinCapacity, "mailbox.capacity must be at least 2").
		AddAssertion(c.Mailbox.FullMode == FullModeWait || c.Mailbox.FullMode == FullModeReject,
			fmt.Sprintf("mailbox.full_mode=(%s) must be %s or %s", c.Mailbox.FullMode, FullModeWait, FullModeReject)).
		AddAssertion(c.Mailbox.MaxMessagesPerTurn > 0, "mailbox.max_messages_per_turn must be greater than zero").
		AddAssertion(c.Mailbox.ActivationRetries > 0, "mailbox.activation_retries must be greater than zero").
		AddValidator(validation.NewPositiveDurationValidator("mailbox.activation_timeout", c.Mailbox.ActivationTimeout)).
		AddAssertion(knownPolicy, fmt.Sprintf("membership.eviction_policy=(%s) is unknown", c.Membership.EvictionPolicy)).
		AddValidator(validation.NewPositiveDurationValidator("membership.eviction_timeout", c.Membership.EvictionTimeout)).
		AddValidator(validation.NewRangeValidator("membership.health_score_threshold", c.Membership.HealthScoreThreshold, 0, 100)).
		AddAssertion(c.Membership.ConsecutiveUnhealthyChecks > 0, "membership.consecutive_unhealthy_checks must be greater than zero").
		AddAssertion(c.Membership.MinimumClusterSizeForQuorum > 0, "membership.minimum_cluster_size_for_quorum must be greater than zero").
		AddValidator(validation.NewPositiveDurationValidator("membership.monitor_interval", c.Membership.MonitorInterval)).
		AddValidator(validation.NewPositiveDurationValidator("membership.dead_silo_retention", c.Membership.DeadSiloRetention)).
		AddAssertion(c.Routing.VirtualNodes > 0, "routing.virtual_nodes must be greater than zero").
		AddValidator(validation.NewPositiveDurationValidator("routing.cache_ttl", c.Routing.CacheTTL)).
		AddAssertion(c.Routing.CacheSize > 0, "routing.cache_size must be greater than zero").
		AddValidator(validation.NewPositiveDurationValidator("migration.cold_actor_threshold", c.Migration.ColdActorThreshold)).
		AddAssertion(c.Migration.MaxConcurrentMigrations > 0, "migration.max_concurrent_migrations must be greater than zero").
		AddValidator(validation.NewPositiveDurationValidator("migration.migration_timeout", c.Migration.MigrationTimeout)).
		AddValidator(c.Transport).
		Validate()
}

// Validate implements validation.Validator
func (t Transport) Validate() error {
	switch t.Kind {
	case TransportLocal, TransportHTTP:
	case TransportNATS:
		if t.NatsURL == "" {
			return fmt.Errorf("transport.nats_url is required by the %s transport", TransportNATS)
		}
	default:
		return fmt.Errorf("transport.kind=(%s) is unknown", t.Kind)
	}

	switch t.Compression {
	case compression.None, compression.Zstd, compression.Brotli:
		return nil
	default:
		return fmt.Errorf("transport.compression=(%s) is unknown", t.Compression)
	}
}

// EvictionPolicy returns the configured membership.EvictionPolicy
func (c *Config) EvictionPolicy() membership.EvictionPolicy {
	if policy, ok := evictionPolicies[c.Membership.EvictionPolicy]; ok {
		return policy
	}
	return membership.EvictionHybrid
}

// FullMode returns the configured mailbox.FullMode
func (c *Config) FullMode() mailbox.FullMode {
	if c.Mailbox.FullMode == FullModeReject {
		return mailbox.FullModeReject
	}
	return mailbox.FullModeWait
}
