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

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-sockaddr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables overriding a Config
const EnvPrefix = "QUARK"

// Load reads the YAML file at path on top of the defaults, applies the
// environment overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Parse decodes YAML on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides the fields of c from the variables found by lookup.
// Variables are named QUARK_<SECTION>_<FIELD>, e.g. QUARK_MAILBOX_CAPACITY.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for name, target := range c.envBindings() {
		value, ok := lookup(EnvPrefix + "_" + name)
		if !ok {
			continue
		}
		if err := assign(target, strings.TrimSpace(value)); err != nil {
			errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) envBindings() map[string]any {
	return map[string]any{
		"SILO_ID":                                    &c.SiloID,
		"HOST":                                       &c.Host,
		"PORT":                                       &c.Port,
		"ADVERTISE_HOST":                             &c.AdvertiseHost,
		"REGION_ID":                                  &c.RegionID,
		"ZONE_ID":                                    &c.ZoneID,
		"SHARD_GROUP_ID":                             &c.ShardGroupID,
		"LOG_LEVEL":                                  &c.LogLevel,
		"POOL_SIZE":                                  &c.PoolSize,
		"HEARTBEAT_INTERVAL":                         &c.HeartbeatInterval,
		"SHUTDOWN_TIMEOUT":                           &c.ShutdownTimeout,
		"REQUEST_TIMEOUT":                            &c.RequestTimeout,
		"INVOKE_RETRIES":                             &c.InvokeRetries,
		"MAILBOX_CAPACITY":                           &c.Mailbox.Capacity,
		"MAILBOX_FULL_MODE":                          &c.Mailbox.FullMode,
		"MAILBOX_MAX_MESSAGES_PER_TURN":              &c.Mailbox.MaxMessagesPerTurn,
		"MAILBOX_ACTIVATION_RETRIES":                 &c.Mailbox.ActivationRetries,
		"MAILBOX_ACTIVATION_TIMEOUT":                 &c.Mailbox.ActivationTimeout,
		"MEMBERSHIP_EVICTION_POLICY":                 &c.Membership.EvictionPolicy,
		"MEMBERSHIP_EVICTION_TIMEOUT":                &c.Membership.EvictionTimeout,
		"MEMBERSHIP_HEALTH_SCORE_THRESHOLD":          &c.Membership.HealthScoreThreshold,
		"MEMBERSHIP_CONSECUTIVE_UNHEALTHY_CHECKS":    &c.Membership.ConsecutiveUnhealthyChecks,
		"MEMBERSHIP_MINIMUM_CLUSTER_SIZE_FOR_QUORUM": &c.Membership.MinimumClusterSizeForQuorum,
		"MEMBERSHIP_MONITOR_INTERVAL":                &c.Membership.MonitorInterval,
		"MEMBERSHIP_DEAD_SILO_RETENTION":             &c.Membership.DeadSiloRetention,
		"ROUTING_VIRTUAL_NODES":                      &c.Routing.VirtualNodes,
		"ROUTING_CACHE_TTL":                          &c.Routing.CacheTTL,
		"ROUTING_CACHE_SIZE":                         &c.Routing.CacheSize,
		"ROUTING_LOCAL_BYPASS":                       &c.Routing.LocalBypass,
		"MIGRATION_ENABLED":                          &c.Migration.Enabled,
		"MIGRATION_COLD_ACTOR_THRESHOLD":             &c.Migration.ColdActorThreshold,
		"MIGRATION_MAX_CONCURRENT_MIGRATIONS":        &c.Migration.MaxConcurrentMigrations,
		"MIGRATION_MIGRATION_TIMEOUT":                &c.Migration.MigrationTimeout,
		"TRANSPORT_KIND":                             &c.Transport.Kind,
		"TRANSPORT_COMPRESSION":                      &c.Transport.Compression,
		"TRANSPORT_MAX_FRAME_SIZE":                   &c.Transport.MaxFrameSize,
		"TRANSPORT_NATS_URL":                         &c.Transport.NatsURL,
	}
}

func assign(target any, value string) error {
	switch ptr := target.(type) {
	case *string:
		*ptr = value
	case *int:
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*ptr = v
	case *uint32:
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		*ptr = uint32(v)
	case *float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*ptr = v
	case *bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*ptr = v
	case *time.Duration:
		v, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*ptr = v
	default:
		return fmt.Errorf("unsupported field type %T", target)
	}
	return nil
}

// ResolveAdvertiseHost returns the address other silos should dial.
// When neither AdvertiseHost nor a specific Host is set, a private IP is
// looked up, then a public one.
func (c *Config) ResolveAdvertiseHost() (string, error) {
	if c.AdvertiseHost != "" {
		return c.AdvertiseHost, nil
	}

	ip := net.ParseIP(c.Host)
	if c.Host != "" && (ip == nil || !ip.IsUnspecified()) {
		return c.Host, nil
	}

	address, err := sockaddr.GetPrivateIP()
	if err != nil {
		return "", fmt.Errorf("failed to get private interface addresses: %w", err)
	}
	if address == "" {
		address, err = sockaddr.GetPublicIP()
		if err != nil {
			return "", fmt.Errorf("failed to get public interface addresses: %w", err)
		}
	}
	if address == "" {
		return "", errors.New("no private IP address found, and explicit IP not provided")
	}
	return address, nil
}
