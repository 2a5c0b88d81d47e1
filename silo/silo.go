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

// Package silo hosts virtual actors.
//
// A silo owns the activations placed on it by the consistent hash ring, the
// mailboxes serializing their invocations and the transport carrying
// envelopes to and from the other silos of the cluster. Its lifecycle moves
// strictly forward through Joining, Active, ShuttingDown and Dead.
package silo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/config"
	"github.com/quarkgo/quark/directory"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/chain"
	"github.com/quarkgo/quark/internal/metric"
	"github.com/quarkgo/quark/internal/scheduler"
	"github.com/quarkgo/quark/internal/workerpool"
	"github.com/quarkgo/quark/internal/xsync"
	"github.com/quarkgo/quark/log"
	"github.com/quarkgo/quark/mailbox"
	"github.com/quarkgo/quark/membership"
	"github.com/quarkgo/quark/membership/memory"
	"github.com/quarkgo/quark/transport"
	transporthttp "github.com/quarkgo/quark/transport/http"
	transportnats "github.com/quarkgo/quark/transport/nats"
)

const (
	heartbeatJobKey = "silo-heartbeat"
	handOffJobKey   = "silo-hand-off"
)

// lifecycle step names, also used to undo a failed start
const (
	stepStartPool        = "start worker pool"
	stepRegisterMetrics  = "register metrics"
	stepStartTransport   = "start transport"
	stepRegisterSilo     = "register silo"
	stepStartMembership  = "start membership"
	stepActivateSilo     = "activate silo"
	stepStartSubsystems  = "start subsystems"
	stepStartHeartbeat   = "start heartbeat"
	stepMarkShuttingDown = "mark shutting down"
	stepStopHeartbeat    = "stop heartbeat"
	stepRejectActivation = "reject activations"
	stepMigrateActors    = "migrate cold actors"
	stepStopActors       = "stop actors"
	stepStopSubsystems   = "stop subsystems"
	stepDrainOutbound    = "drain outbound calls"
	stepStopTransport    = "stop transport"
	stepStopMembership   = "stop membership"
	stepUnregisterSilo   = "unregister silo"
	stepUnregisterMetric = "unregister metrics"
	stepStopPool         = "stop worker pool"
)

// Silo is a node of the cluster hosting actor activations
type Silo struct {
	config *config.Config
	id     string
	logger log.Logger

	registry       *actor.Registry
	store          membership.Store
	membershipOpts []membership.Option
	network        *transport.LocalNetwork
	transport      transport.Transport
	membership     *membership.Membership
	directory      *directory.Directory
	correlator     *transport.Correlator
	pool           *workerpool.WorkerPool
	scheduler      *scheduler.Scheduler
	activations    *xsync.ShardedMap[*mailbox.Mailbox]
	actorContext   context.Context

	meterProvider otelmetric.MeterProvider
	meter         otelmetric.Meter
	metrics       *metric.SiloMetric
	gauges        otelmetric.Registration

	status    *atomic.Int32
	started   *atomic.Bool
	stopping  *atomic.Bool
	accepting *atomic.Bool

	// handOffMu serializes the hand-offs triggered by ring changes
	handOffMu sync.Mutex

	mu                sync.Mutex
	subsystems        []Subsystem
	startedSubsystems []Subsystem
	unsubscribe       func()
	history           []membership.Status
}

// New creates a Silo. Nothing runs until Start.
func New(opts ...Option) (*Silo, error) {
	silo := &Silo{
		config:      config.Default(),
		correlator:  transport.NewCorrelator(),
		activations: xsync.NewShardedMap[*mailbox.Mailbox](0),
		status:      atomic.NewInt32(int32(membership.StatusJoining)),
		started:     atomic.NewBool(false),
		stopping:    atomic.NewBool(false),
		accepting:   atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(silo)
	}

	cfg := *silo.config
	if cfg.SiloID == "" {
		cfg.SiloID = "silo-" + uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid silo configuration: %w", err)
	}
	silo.config = &cfg
	silo.id = cfg.SiloID

	if silo.logger == nil {
		silo.logger = log.NewZap(log.ParseLevel(cfg.LogLevel), os.Stdout)
	}
	if silo.registry == nil {
		silo.registry = actor.NewRegistry()
	}
	if silo.store == nil {
		silo.store = memory.NewStore()
	}

	advertiseHost, err := cfg.ResolveAdvertiseHost()
	if err != nil {
		return nil, err
	}

	silo.membership = membership.New(membership.SiloInfo{
		SiloID:       silo.id,
		Address:      advertiseHost,
		Port:         cfg.Port,
		RegionID:     cfg.RegionID,
		ZoneID:       cfg.ZoneID,
		ShardGroupID: cfg.ShardGroupID,
	}, silo.store, append([]membership.Option{
		membership.WithLogger(silo.logger),
		membership.WithEvictionPolicy(cfg.EvictionPolicy()),
		membership.WithEvictionTimeout(cfg.Membership.EvictionTimeout),
		membership.WithHealthScoreThreshold(cfg.Membership.HealthScoreThreshold),
		membership.WithConsecutiveUnhealthyChecks(cfg.Membership.ConsecutiveUnhealthyChecks),
		membership.WithMinimumClusterSizeForQuorum(cfg.Membership.MinimumClusterSizeForQuorum),
		membership.WithMonitorInterval(cfg.Membership.MonitorInterval),
		membership.WithDeadSiloRetention(cfg.Membership.DeadSiloRetention),
		membership.WithHealthProbe(membership.NewHealthProbe(0)),
	}, silo.membershipOpts...)...)

	silo.directory = directory.New(silo.id,
		directory.WithCacheTTL(cfg.Routing.CacheTTL),
		directory.WithCacheSize(cfg.Routing.CacheSize),
		directory.WithLocalBypass(cfg.Routing.LocalBypass),
		directory.WithVirtualNodes(cfg.Routing.VirtualNodes),
		directory.WithLogger(silo.logger))

	if silo.transport == nil {
		if silo.transport, err = silo.newTransport(); err != nil {
			return nil, err
		}
	}
	if silo.transport.SiloID() != silo.id {
		return nil, fmt.Errorf("transport of silo %s cannot serve silo %s", silo.transport.SiloID(), silo.id)
	}

	var poolOpts []workerpool.Option
	if cfg.PoolSize > 0 {
		poolOpts = append(poolOpts, workerpool.WithNumShards(cfg.PoolSize))
	}
	silo.pool = workerpool.New(poolOpts...)
	silo.scheduler = scheduler.New(silo.logger, cfg.ShutdownTimeout)

	provider := metric.NewProvider()
	if silo.meterProvider != nil {
		provider = metric.NewProviderFrom(silo.meterProvider)
	}
	silo.meter = provider.Meter()
	if silo.metrics, err = metric.NewSiloMetric(silo.meter, silo.id); err != nil {
		return nil, err
	}

	silo.actorContext = withSilo(context.Background(), silo)
	return silo, nil
}

func (s *Silo) newTransport() (transport.Transport, error) {
	cfg := s.config
	switch cfg.Transport.Kind {
	case config.TransportLocal:
		network := s.network
		if network == nil {
			network = transport.NewLocalNetwork()
		}
		return network.Endpoint(s.id), nil
	case config.TransportNATS:
		return transportnats.New(s.id, &transportnats.Config{URL: cfg.Transport.NatsURL},
			transportnats.WithLogger(s.logger))
	default:
		return transporthttp.New(s.id, cfg.Host, cfg.Port,
			transporthttp.WithCompression(cfg.Transport.Compression),
			transporthttp.WithMaxReadFrameSize(cfg.Transport.MaxFrameSize),
			transporthttp.WithResolver(s.membership),
			transporthttp.WithLogger(s.logger))
	}
}

// ID returns the silo id
func (s *Silo) ID() string {
	return s.id
}

// Status returns the lifecycle status of the silo
func (s *Silo) Status() membership.Status {
	return membership.Status(s.status.Load())
}

// Membership returns the cluster view of the silo
func (s *Silo) Membership() *membership.Membership {
	return s.membership
}

// Directory returns the router of the silo
func (s *Silo) Directory() *directory.Directory {
	return s.directory
}

// Start joins the cluster and starts serving actors.
// Any failure leaves the silo Dead: the steps already run are undone and
// the error is returned.
func (s *Silo) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return gerrors.ErrSiloAlreadyStarted
	}

	s.logger.Infof("starting silo (%s)...", s.id)
	s.transport.OnEnvelopeReceived(s.receive)

	startup := chain.New(chain.WithFailFast(), chain.WithContext(ctx), chain.WithLogger(s.logger))
	if err := startup.
		AddRunner(stepStartPool, s.startWorkerPool).
		AddRunner(stepRegisterMetrics, s.registerMetrics).
		AddRunner(stepStartTransport, s.transport.Start).
		AddRunner(stepRegisterSilo, s.register).
		AddRunner(stepStartMembership, s.startMembership).
		AddRunner(stepActivateSilo, s.activate).
		AddRunner(stepStartSubsystems, s.startSubsystems).
		AddRunner(stepStartHeartbeat, s.startHeartbeat).
		Run(); err != nil {
		s.logger.Errorf("silo (%s) failed to start: %v", s.id, err)
		s.abort(ctx, startup.Executed())
		return err
	}

	s.logger.Infof("silo (%s) is active", s.id)
	return nil
}

// Stop leaves the cluster. It never aborts halfway: every step runs and the
// failures are combined into the returned error. Stop is idempotent.
func (s *Silo) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return gerrors.ErrSiloNotActive
	}
	if s.Status() == membership.StatusDead || !s.stopping.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Infof("silo (%s) is shutting down...", s.id)
	s.setStatus(membership.StatusShuttingDown)

	err := chain.New(chain.WithRunAll(), chain.WithContext(ctx), chain.WithLogger(s.logger)).
		AddRunner(stepMarkShuttingDown, s.markShuttingDown).
		AddRunner(stepStopHeartbeat, s.stopHeartbeat).
		AddRunner(stepRejectActivation, s.rejectActivations).
		AddRunnerIf(s.config.Migration.Enabled, stepMigrateActors, s.migrateColdActors).
		AddRunner(stepStopActors, s.stopActors).
		AddRunner(stepStopSubsystems, s.stopSubsystems).
		AddRunner(stepDrainOutbound, s.drainOutbound).
		AddRunner(stepStopTransport, s.transport.Stop).
		AddRunner(stepStopMembership, s.stopMembership).
		AddRunner(stepUnregisterSilo, s.membership.UnregisterSilo).
		AddRunner(stepUnregisterMetric, s.unregisterMetrics).
		AddRunner(stepStopPool, s.stopWorkerPool).
		Run()

	s.setStatus(membership.StatusDead)
	if err != nil {
		s.logger.Errorf("silo (%s) did not shut down cleanly: %v", s.id, err)
		return err
	}
	s.logger.Infof("silo (%s) shut down successfully", s.id)
	return nil
}

// StatusHistory returns the statuses the silo went through, in order
func (s *Silo) StatusHistory() []membership.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// abort undoes the steps run by a failed start
func (s *Silo) abort(ctx context.Context, executed []string) {
	ran := func(step string) bool { return slices.Contains(executed, step) }
	s.accepting.Store(false)

	ctx = context.WithoutCancel(ctx)
	err := chain.New(chain.WithRunAll(), chain.WithContext(ctx), chain.WithLogger(s.logger)).
		AddRunnerIf(ran(stepStartHeartbeat), stepStopHeartbeat, s.stopHeartbeat).
		AddRunnerIf(ran(stepStartSubsystems), stepStopSubsystems, s.stopSubsystems).
		AddRunnerIf(ran(stepStartMembership), stepStopMembership, s.stopMembership).
		AddRunnerIf(ran(stepRegisterSilo), stepUnregisterSilo, s.membership.UnregisterSilo).
		AddRunnerIf(ran(stepStartTransport), stepStopTransport, s.transport.Stop).
		AddRunnerIf(ran(stepRegisterMetrics), stepUnregisterMetric, s.unregisterMetrics).
		AddRunnerIf(ran(stepStartPool), stepStopPool, s.stopWorkerPool).
		Run()
	if err != nil {
		s.logger.Warnf("silo (%s) cleanup after failed start: %v", s.id, err)
	}
	s.setStatus(membership.StatusDead)
}

func (s *Silo) setStatus(status membership.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Store(int32(status))
	if n := len(s.history); n == 0 || s.history[n-1] != status {
		s.history = append(s.history, status)
	}
}

func (s *Silo) startWorkerPool(context.Context) error {
	s.pool.Start()
	return nil
}

func (s *Silo) stopWorkerPool(context.Context) error {
	s.pool.Stop()
	return nil
}

func (s *Silo) registerMetrics(context.Context) error {
	registration, err := s.metrics.RegisterGauges(s.meter,
		func() int64 { return int64(s.activations.Len()) },
		func() int64 { return int64(len(s.membership.Members())) })
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.gauges = registration
	s.mu.Unlock()
	return nil
}

func (s *Silo) unregisterMetrics(context.Context) error {
	s.mu.Lock()
	registration := s.gauges
	s.gauges = nil
	s.mu.Unlock()
	if registration == nil {
		return nil
	}
	return registration.Unregister()
}

// register writes the Joining record, with the port bound by the transport
func (s *Silo) register(ctx context.Context) error {
	if bound, ok := s.transport.(interface{ Port() int }); ok {
		self := s.membership.Self()
		s.membership.SetAddress(self.Address, bound.Port())
	}
	s.setStatus(membership.StatusJoining)
	return s.membership.RegisterSilo(ctx)
}

func (s *Silo) startMembership(ctx context.Context) error {
	unsubscribe := s.membership.Subscribe(s.onMembershipEvent)
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	if err := s.membership.Start(ctx); err != nil {
		return err
	}
	s.directory.SetMembers(s.membership.Members())
	return nil
}

func (s *Silo) stopMembership(ctx context.Context) error {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	return s.membership.Stop(ctx)
}

func (s *Silo) onMembershipEvent(event membership.Event) {
	s.directory.OnMembershipEvent(event)
	if event.Evicted {
		s.logger.Warnf("silo (%s) evicted silo %s, members=%v", s.id, event.Silo.SiloID, event.Members)
	} else {
		s.logger.Debugf("silo (%s) observed %s of silo %s, members=%v", s.id, event.Type, event.Silo.SiloID, event.Members)
	}
	s.scheduleHandOff()
}

// scheduleHandOff queues a hand-off of the activations the new ring places on
// other silos. It runs off the membership goroutine since it calls other silos.
// A hand-off still queued reads the latest ring when it runs.
func (s *Silo) scheduleHandOff() {
	if s.Status() != membership.StatusActive || s.activations.Len() == 0 {
		return
	}
	if err := s.scheduler.Once(handOffJobKey, 0, s.handOff); err != nil {
		s.logger.Debugf("silo (%s) did not queue a hand-off: %v", s.id, err)
	}
}

// activate makes the silo Active, which places it on the ring
func (s *Silo) activate(ctx context.Context) error {
	if err := s.membership.UpdateStatus(ctx, membership.StatusActive); err != nil {
		return err
	}
	s.setStatus(membership.StatusActive)
	s.accepting.Store(true)
	return nil
}

func (s *Silo) markShuttingDown(ctx context.Context) error {
	return s.membership.UpdateStatus(ctx, membership.StatusShuttingDown)
}

func (s *Silo) rejectActivations(context.Context) error {
	s.accepting.Store(false)
	return nil
}

func (s *Silo) startSubsystems(ctx context.Context) error {
	s.mu.Lock()
	subsystems := slices.Clone(s.subsystems)
	s.mu.Unlock()

	for _, subsystem := range subsystems {
		if err := subsystem.Start(ctx); err != nil {
			return fmt.Errorf("subsystem %s: %w", subsystem.Name(), err)
		}
		s.mu.Lock()
		s.startedSubsystems = append(s.startedSubsystems, subsystem)
		s.mu.Unlock()
		s.logger.Infof("silo (%s) started subsystem %s", s.id, subsystem.Name())
	}
	return nil
}

// stopSubsystems stops the started subsystems in reverse order
func (s *Silo) stopSubsystems(ctx context.Context) error {
	s.mu.Lock()
	started := s.startedSubsystems
	s.startedSubsystems = nil
	s.mu.Unlock()

	var err error
	for i := len(started) - 1; i >= 0; i-- {
		if stopErr := started[i].Stop(ctx); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("subsystem %s: %w", started[i].Name(), stopErr))
		}
	}
	return err
}

func (s *Silo) startHeartbeat(ctx context.Context) error {
	s.scheduler.Start(context.WithoutCancel(ctx))
	return s.scheduler.Every(heartbeatJobKey, s.config.HeartbeatInterval, s.heartbeat)
}

func (s *Silo) stopHeartbeat(ctx context.Context) error {
	s.scheduler.Stop(ctx)
	return nil
}

func (s *Silo) heartbeat(ctx context.Context) error {
	if err := s.membership.UpdateHeartbeat(ctx); err != nil {
		s.logger.Warnf("silo (%s) failed to heartbeat: %v", s.id, err)
		return err
	}
	return nil
}

// drainOutbound waits for the invocations this silo is awaiting.
// Those still pending at ShutdownTimeout are failed.
func (s *Silo) drainOutbound(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.correlator.Drain(ctx); err != nil {
		s.correlator.Fail(gerrors.ErrSiloShuttingDown)
		return err
	}
	return nil
}

// activationError returns why the silo cannot activate an actor, if it cannot
func (s *Silo) activationError(key string) error {
	status := s.Status()
	switch {
	case status == membership.StatusActive && s.accepting.Load():
		return nil
	case status >= membership.StatusShuttingDown || s.stopping.Load():
		return fmt.Errorf("%w: silo %s cannot activate %s", gerrors.ErrSiloShuttingDown, s.id, key)
	default:
		return fmt.Errorf("%w: silo %s is %s", gerrors.ErrSiloNotActive, s.id, status)
	}
}

func retryable(err error) bool {
	return gerrors.IsRetryable(err) || errors.Is(err, gerrors.ErrNoSiloAvailable)
}
