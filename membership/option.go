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

package membership

import (
	"time"

	"github.com/quarkgo/quark/log"
)

// EvictionPolicy selects which checks declare an active silo unhealthy
type EvictionPolicy int

const (
	// EvictionNone never evicts
	EvictionNone EvictionPolicy = iota
	// EvictionTimeoutBased evicts silos whose heartbeat is older than the eviction timeout
	EvictionTimeoutBased
	// EvictionHealthScoreBased evicts silos reporting a score below the threshold
	EvictionHealthScoreBased
	// EvictionHybrid evicts on either condition
	EvictionHybrid
)

// String returns the policy name
func (p EvictionPolicy) String() string {
	switch p {
	case EvictionNone:
		return "none"
	case EvictionTimeoutBased:
		return "timeout"
	case EvictionHealthScoreBased:
		return "health-score"
	case EvictionHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

const (
	DefaultEvictionTimeout             = 30 * time.Second
	DefaultHealthScoreThreshold        = 30.0
	DefaultConsecutiveUnhealthyChecks  = 3
	DefaultMinimumClusterSizeForQuorum = 3
	DefaultMonitorInterval             = 5 * time.Second
	DefaultDeadSiloRetention           = time.Minute
)

// Option configures a Membership
type Option func(m *Membership)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(m *Membership) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEvictionPolicy sets the eviction policy
func WithEvictionPolicy(policy EvictionPolicy) Option {
	return func(m *Membership) {
		m.policy = policy
	}
}

// WithEvictionTimeout sets the heartbeat age after which a silo is unhealthy
func WithEvictionTimeout(timeout time.Duration) Option {
	return func(m *Membership) {
		if timeout > 0 {
			m.evictionTimeout = timeout
		}
	}
}

// WithHealthScoreThreshold sets the score under which a silo is unhealthy
func WithHealthScoreThreshold(threshold float64) Option {
	return func(m *Membership) {
		m.scoreThreshold = threshold
	}
}

// WithConsecutiveUnhealthyChecks sets how many consecutive unhealthy checks evict a silo
func WithConsecutiveUnhealthyChecks(n int) Option {
	return func(m *Membership) {
		if n > 0 {
			m.unhealthyChecks = n
		}
	}
}

// WithMinimumClusterSizeForQuorum sets the number of healthy silos required to evict
func WithMinimumClusterSizeForQuorum(n int) Option {
	return func(m *Membership) {
		if n > 0 {
			m.quorumSize = n
		}
	}
}

// WithMonitorInterval sets the period of the monitoring pass
func WithMonitorInterval(interval time.Duration) Option {
	return func(m *Membership) {
		if interval > 0 {
			m.monitorInterval = interval
		}
	}
}

// WithDeadSiloRetention sets how long tombstones are kept before being purged
func WithDeadSiloRetention(retention time.Duration) Option {
	return func(m *Membership) {
		if retention > 0 {
			m.deadRetention = retention
		}
	}
}

// WithHealthProbe sets the probe computing the score reported with heartbeats
func WithHealthProbe(probe *HealthProbe) Option {
	return func(m *Membership) {
		m.probe = probe
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Membership) {
		if now != nil {
			m.now = now
		}
	}
}
