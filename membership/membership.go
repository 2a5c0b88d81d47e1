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

// Package membership tracks the silos of a cluster.
//
// Every silo writes its own record to a shared Store and periodically reads
// the whole table back. The active view derived from that table feeds the
// placement ring. Silos that stop heart-beating, or report a poor health
// score, are evicted after a number of consecutive unhealthy checks, and only
// while a quorum of healthy silos agrees on the view.
package membership

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/scheduler"
	"github.com/quarkgo/quark/log"
)

const monitorJobKey = "membership-monitor"

// Membership is the view of the cluster held by one silo
type Membership struct {
	store  Store
	logger log.Logger
	now    func() time.Time

	policy          EvictionPolicy
	evictionTimeout time.Duration
	scoreThreshold  float64
	unhealthyChecks int
	quorumSize      int
	monitorInterval time.Duration
	deadRetention   time.Duration
	probe           *HealthProbe

	mu        sync.RWMutex
	self      *SiloInfo
	view      map[string]*SiloInfo
	unhealthy map[string]int

	// refreshMu serializes monitoring passes and self transitions
	refreshMu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[uint64]Subscriber
	nextSub     uint64

	scheduler *scheduler.Scheduler
	started   *atomic.Bool
}

// New creates the membership of the silo described by self
func New(self SiloInfo, store Store, opts ...Option) *Membership {
	m := &Membership{
		store:           store,
		logger:          log.DiscardLogger,
		now:             time.Now,
		policy:          EvictionHybrid,
		evictionTimeout: DefaultEvictionTimeout,
		scoreThreshold:  DefaultHealthScoreThreshold,
		unhealthyChecks: DefaultConsecutiveUnhealthyChecks,
		quorumSize:      DefaultMinimumClusterSizeForQuorum,
		monitorInterval: DefaultMonitorInterval,
		deadRetention:   DefaultDeadSiloRetention,
		self:            self.Clone(),
		view:            make(map[string]*SiloInfo),
		unhealthy:       make(map[string]int),
		subscribers:     make(map[uint64]Subscriber),
		started:         atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.scheduler = scheduler.New(m.logger, m.monitorInterval)
	return m
}

// Self returns a copy of the local silo record
func (m *Membership) Self() SiloInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.self
}

// SetAddress changes the address advertised by the local silo.
// Transports binding an ephemeral port call it before RegisterSilo.
func (m *Membership) SetAddress(address string, port int) {
	m.mu.Lock()
	m.self.Address = address
	m.self.Port = port
	m.mu.Unlock()
}

// RegisterSilo writes the local silo record with status Joining
func (m *Membership) RegisterSilo(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	now := m.now()
	m.mu.Lock()
	m.self.Status = StatusJoining
	m.self.StartedAt = now
	m.self.LastHeartbeat = now
	record := m.self.Clone()
	m.mu.Unlock()

	if err := m.store.Put(ctx, record); err != nil {
		return fmt.Errorf("failed to register silo %s: %w", record.SiloID, err)
	}
	m.logger.Infof("silo %s registered at %s", record.SiloID, record.HostPort())
	return nil
}

// UnregisterSilo leaves a Dead tombstone for the local silo
func (m *Membership) UnregisterSilo(ctx context.Context) error {
	return m.UpdateStatus(ctx, StatusDead)
}

// UpdateStatus moves the local silo forward to status.
// The local view reflects the change before the store round trip completes.
func (m *Membership) UpdateStatus(ctx context.Context, status Status) error {
	m.refreshMu.Lock()

	m.mu.Lock()
	if err := m.self.Transition(status); err != nil {
		m.mu.Unlock()
		m.refreshMu.Unlock()
		return err
	}
	self := m.self.Clone()
	previous := m.memberIDs()
	if status == StatusActive {
		m.view[self.SiloID] = self
	} else {
		delete(m.view, self.SiloID)
	}
	current := m.memberIDs()
	m.mu.Unlock()
	m.refreshMu.Unlock()

	var events []Event
	switch {
	case !previous.Contains(self.SiloID) && current.Contains(self.SiloID):
		events = append(events, Event{Type: SiloJoined, Silo: *self, Members: sorted(current)})
	case previous.Contains(self.SiloID) && !current.Contains(self.SiloID):
		events = append(events, Event{Type: SiloLeft, Silo: *self, Members: sorted(current)})
	}
	m.emit(events)

	if err := m.store.UpdateStatus(ctx, self.SiloID, status); err != nil {
		return fmt.Errorf("failed to update silo %s status to %s: %w", self.SiloID, status, err)
	}
	m.logger.Infof("silo %s is now %s", self.SiloID, status)
	return nil
}

// UpdateHeartbeat writes a heartbeat, with a fresh health score when a probe is configured
func (m *Membership) UpdateHeartbeat(ctx context.Context) error {
	score := NoHealthScore
	if m.probe != nil {
		if s, err := m.probe.Score(ctx); err != nil {
			m.logger.Debugf("failed to compute health score: %v", err)
		} else {
			score = s
		}
	}

	at := m.now()
	m.mu.Lock()
	m.self.Beat(at, score)
	id := m.self.SiloID
	if info, ok := m.view[id]; ok {
		info.Beat(at, score)
	}
	m.mu.Unlock()

	start := time.Now()
	err := m.store.UpdateHeartbeat(ctx, id, at, score)
	if m.probe != nil {
		m.probe.ObserveLatency(time.Since(start))
	}
	return err
}

// GetActiveSilos reads the active silos from the store
func (m *Membership) GetActiveSilos(ctx context.Context) ([]*SiloInfo, error) {
	return m.store.ListByStatus(ctx, StatusActive)
}

// GetSilo reads the record of siloID from the store
func (m *Membership) GetSilo(ctx context.Context, siloID string) (*SiloInfo, error) {
	return m.store.Get(ctx, siloID)
}

// ResolveSilo returns the record of siloID, from the view when possible
func (m *Membership) ResolveSilo(ctx context.Context, siloID string) (*SiloInfo, error) {
	m.mu.RLock()
	info, ok := m.view[siloID]
	m.mu.RUnlock()
	if ok {
		return info.Clone(), nil
	}
	return m.store.Get(ctx, siloID)
}

// ActiveView returns the records of the active view sorted by silo id
func (m *Membership) ActiveView() []*SiloInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SiloInfo, 0, len(m.view))
	for _, info := range m.view {
		out = append(out, info.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiloID < out[j].SiloID })
	return out
}

// Members returns the sorted ids of the active view
func (m *Membership) Members() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sorted(m.memberIDs())
}

// Subscribe registers fn for membership events and returns its cancellation
func (m *Membership) Subscribe(fn Subscriber) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subscribers, id)
			m.subMu.Unlock()
		})
	}
}

// Start runs a first monitoring pass and schedules the next ones
func (m *Membership) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}

	if err := m.Refresh(ctx); err != nil {
		m.started.Store(false)
		return err
	}

	m.scheduler.Start(context.WithoutCancel(ctx))
	if err := m.scheduler.Every(monitorJobKey, m.monitorInterval, m.Refresh); err != nil {
		m.scheduler.Stop(ctx)
		m.started.Store(false)
		return fmt.Errorf("failed to schedule membership monitor: %w", err)
	}
	m.logger.Infof("membership monitor started, interval=%s policy=%s", m.monitorInterval, m.policy)
	return nil
}

// Stop cancels the monitoring job
func (m *Membership) Stop(ctx context.Context) error {
	if !m.started.CompareAndSwap(true, false) {
		return nil
	}
	m.scheduler.Stop(ctx)
	m.logger.Info("membership monitor stopped")
	return nil
}

// Refresh runs one monitoring pass: it reloads the table, evicts the silos
// that failed enough consecutive checks and publishes the view changes.
// Every call counts as one consecutive check.
func (m *Membership) Refresh(ctx context.Context) error {
	return m.pass(ctx, true)
}

// Reload reads the table again and publishes the view changes without
// running a health check. Callers reacting to a stale view use it.
func (m *Membership) Reload(ctx context.Context) error {
	return m.pass(ctx, false)
}

func (m *Membership) pass(ctx context.Context, check bool) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	records, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list silos: %w", err)
	}

	now := m.now()
	m.mu.RLock()
	self := m.self.Clone()
	counters := make(map[string]int, len(m.unhealthy))
	for id, n := range m.unhealthy {
		counters[id] = n
	}
	m.mu.RUnlock()

	next := make(map[string]*SiloInfo, len(records))
	failing := goset.NewThreadUnsafeSet[string]()
	for _, record := range records {
		if record.SiloID == self.SiloID {
			continue
		}

		if record.Status == StatusDead {
			if now.Sub(record.LastHeartbeat) > m.deadRetention {
				m.purge(ctx, record.SiloID)
			}
			continue
		}

		if record.Status != StatusActive {
			continue
		}

		next[record.SiloID] = record
		if !check {
			continue
		}
		if m.isUnhealthy(record, now) {
			counters[record.SiloID]++
			failing.Add(record.SiloID)
		}
	}

	// the local silo trusts its own status over the table
	if self.Status == StatusActive {
		next[self.SiloID] = self
	}

	for id := range counters {
		_, member := next[id]
		if !member || (check && !failing.Contains(id)) {
			delete(counters, id)
		}
	}

	healthy := len(next) - failing.Cardinality()
	quorum := healthy >= m.quorumSize && 2*healthy > len(next)

	evicted := goset.NewThreadUnsafeSet[string]()
	for _, id := range failing.ToSlice() {
		if counters[id] < m.unhealthyChecks {
			continue
		}

		if !quorum {
			m.logger.Warnf("silo %s failed %d consecutive checks but eviction lacks quorum (%d healthy of %d)", id, counters[id], healthy, len(next))
			continue
		}

		if err := m.store.UpdateStatus(ctx, id, StatusDead); err != nil && !errors.Is(err, gerrors.ErrInvalidStatusTransition) {
			m.logger.Errorf("failed to evict silo %s: %v", id, err)
			continue
		}

		m.logger.Warnf("silo %s evicted after %d consecutive unhealthy checks", id, counters[id])
		evicted.Add(id)
		delete(counters, id)
		delete(next, id)
	}

	m.mu.Lock()
	previous := m.view
	m.view = next
	m.unhealthy = counters
	m.mu.Unlock()

	m.emit(diff(previous, next, evicted))
	return nil
}

func (m *Membership) isUnhealthy(info *SiloInfo, now time.Time) bool {
	stale := now.Sub(info.LastHeartbeat) > m.evictionTimeout
	weak := info.HealthReported && info.HealthScore < m.scoreThreshold
	switch m.policy {
	case EvictionTimeoutBased:
		return stale
	case EvictionHealthScoreBased:
		return weak
	case EvictionHybrid:
		return stale || weak
	default:
		return false
	}
}

func (m *Membership) purge(ctx context.Context, siloID string) {
	if err := m.store.Delete(ctx, siloID); err != nil {
		m.logger.Warnf("failed to purge dead silo %s: %v", siloID, err)
		return
	}
	m.logger.Debugf("dead silo %s purged", siloID)
}

// memberIDs must be called with mu held
func (m *Membership) memberIDs() goset.Set[string] {
	ids := goset.NewThreadUnsafeSet[string]()
	for id := range m.view {
		ids.Add(id)
	}
	return ids
}

func (m *Membership) emit(events []Event) {
	if len(events) == 0 {
		return
	}

	m.subMu.RLock()
	subscribers := make([]Subscriber, 0, len(m.subscribers))
	ids := make([]uint64, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		subscribers = append(subscribers, m.subscribers[id])
	}
	m.subMu.RUnlock()

	for _, event := range events {
		m.logger.Debugf("membership event %s for silo %s (evicted=%t)", event.Type, event.Silo.SiloID, event.Evicted)
		for _, subscriber := range subscribers {
			subscriber(event)
		}
	}
}

func diff(previous, next map[string]*SiloInfo, evicted goset.Set[string]) []Event {
	before := goset.NewThreadUnsafeSet[string]()
	for id := range previous {
		before.Add(id)
	}
	after := goset.NewThreadUnsafeSet[string]()
	for id := range next {
		after.Add(id)
	}

	members := sorted(after)
	var events []Event
	for _, id := range sorted(after.Difference(before)) {
		events = append(events, Event{Type: SiloJoined, Silo: *next[id], Members: members})
	}
	for _, id := range sorted(before.Difference(after)) {
		events = append(events, Event{
			Type:    SiloLeft,
			Silo:    *previous[id],
			Evicted: evicted.Contains(id),
			Members: members,
		})
	}
	return events
}

func sorted(set goset.Set[string]) []string {
	out := set.ToSlice()
	sort.Strings(out)
	return out
}
