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

package silo

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/config"
	"github.com/quarkgo/quark/log"
	"github.com/quarkgo/quark/membership"
	"github.com/quarkgo/quark/transport"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a Silo.
	Apply(silo *Silo)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(silo *Silo)

// Apply applies the option
func (f OptionFunc) Apply(silo *Silo) {
	f(silo)
}

// WithConfig sets the silo configuration.
// Unset fields keep their defaults.
func WithConfig(cfg *config.Config) Option {
	return OptionFunc(func(silo *Silo) {
		if cfg != nil {
			silo.config = cfg
		}
	})
}

// WithRegistry sets the registry of the actor types the silo can host
func WithRegistry(registry *actor.Registry) Option {
	return OptionFunc(func(silo *Silo) {
		silo.registry = registry
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(silo *Silo) {
		silo.logger = logger
	})
}

// WithMembershipStore sets the store shared by the silos of the cluster.
// Without it the silo uses a private in-memory store and forms a cluster of one.
func WithMembershipStore(store membership.Store) Option {
	return OptionFunc(func(silo *Silo) {
		silo.store = store
	})
}

// WithMembershipOptions adds options to the membership built by the silo
func WithMembershipOptions(opts ...membership.Option) Option {
	return OptionFunc(func(silo *Silo) {
		silo.membershipOpts = append(silo.membershipOpts, opts...)
	})
}

// WithTransport sets the transport, overriding the configured transport kind
func WithTransport(t transport.Transport) Option {
	return OptionFunc(func(silo *Silo) {
		silo.transport = t
	})
}

// WithLocalNetwork attaches the silo to an in-process network.
// It only applies when the configured transport kind is local.
func WithLocalNetwork(network *transport.LocalNetwork) Option {
	return OptionFunc(func(silo *Silo) {
		silo.network = network
	})
}

// WithMeterProvider sets the OpenTelemetry meter provider of the silo metrics.
// The global provider is used by default.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(silo *Silo) {
		silo.meterProvider = provider
	})
}

// WithSubsystems adds auxiliary subsystems started once the silo is Active
func WithSubsystems(subsystems ...Subsystem) Option {
	return OptionFunc(func(silo *Silo) {
		silo.subsystems = append(silo.subsystems, subsystems...)
	})
}
