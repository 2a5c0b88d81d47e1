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

// Package mailbox serializes the invocations of one actor into turns.
//
// Any number of goroutines post envelopes. A single execution token, held in
// the mailbox state, guarantees that at most one turn runs at a time. A turn
// dispatches up to MaxMessagesPerTurn envelopes in FIFO order and then either
// yields the worker (budget exhausted) or releases the token. Releasing is
// followed by a re-check of the queue so that an envelope enqueued between the
// last dequeue and the release is never stranded.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	gods "github.com/Workiva/go-datastructures/queue"
	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/log"
)

// State is the scheduling state of a mailbox
type State int32

const (
	// StateIdle means no turn is scheduled
	StateIdle State = iota
	// StateScheduled means a turn was handed to the worker pool
	StateScheduled
	// StateRunning means a turn is dispatching envelopes
	StateRunning
	// StateStopped is terminal
	StateStopped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Responder delivers the response produced for a request
type Responder func(ctx context.Context, response *envelope.Envelope)

// retry interval of a poster waiting for space when no dequeue signal arrives
const spaceRetryInterval = 10 * time.Millisecond

// Mailbox is the invocation queue and turn scheduler of one actor instance
type Mailbox struct {
	identity   actor.Identity
	key        string
	instance   actor.Actor
	dispatcher actor.Dispatcher
	respond    Responder

	capacity          int
	fullMode          FullMode
	maxPerTurn        int
	activationRetries int
	activationTimeout time.Duration
	submitter         Submitter
	observer          Observer
	logger            log.Logger
	baseCtx           context.Context

	queue *gods.RingBuffer
	state atomic.Int32

	// postMu orders posts against Stop: once stopping is set under the
	// write lock no post can enqueue anymore.
	postMu   sync.RWMutex
	stopping atomic.Bool
	aborted  atomic.Bool

	activated    atomic.Bool
	lastActivity atomic.Time

	space    chan struct{}
	turnDone chan struct{}
	stopped  chan struct{}
	finished sync.Once
}

// New creates a Mailbox for instance. Turns do not run until Start or the first Post.
func New(identity actor.Identity, instance actor.Actor, dispatcher actor.Dispatcher, respond Responder, opts ...Option) *Mailbox {
	m := &Mailbox{
		identity:          identity,
		key:               identity.String(),
		instance:          instance,
		dispatcher:        dispatcher,
		respond:           respond,
		capacity:          DefaultCapacity,
		fullMode:          FullModeWait,
		maxPerTurn:        DefaultMaxMessagesPerTurn,
		activationRetries: DefaultActivationRetries,
		activationTimeout: DefaultActivationTimeout,
		submitter:         goSubmitter{},
		logger:            log.DiscardLogger,
		baseCtx:           context.Background(),
		space:             make(chan struct{}, 1),
		turnDone:          make(chan struct{}, 1),
		stopped:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.queue = gods.NewRingBuffer(uint64(m.capacity))
	m.lastActivity.Store(time.Now())
	return m
}

// Post enqueues env. It reports false when the mailbox is stopped, when it is
// full in reject mode, or when ctx ends while waiting for space.
func (m *Mailbox) Post(ctx context.Context, env *envelope.Envelope) bool {
	return m.Enqueue(ctx, env) == nil
}

// Enqueue is Post reporting why the envelope was not accepted
func (m *Mailbox) Enqueue(ctx context.Context, env *envelope.Envelope) error {
	for {
		accepted, err := m.offer(env)
		if err != nil || accepted {
			return err
		}

		if m.fullMode == FullModeReject {
			return gerrors.ErrMailboxFull
		}

		timer := time.NewTimer(spaceRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.stopped:
			timer.Stop()
			return gerrors.ErrMailboxStopped
		case <-m.space:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (m *Mailbox) offer(env *envelope.Envelope) (bool, error) {
	m.postMu.RLock()
	defer m.postMu.RUnlock()
	if m.stopping.Load() {
		return false, gerrors.ErrMailboxStopped
	}

	accepted, err := m.queue.Offer(env)
	if err != nil {
		return false, gerrors.ErrMailboxStopped
	}
	if accepted {
		m.schedule()
	}
	return accepted, nil
}

// Start schedules a first turn, which runs the activation hook.
func (m *Mailbox) Start() {
	m.schedule()
}

// Stop rejects new posts, drains the queue and calls OnDeactivate once.
// When ctx ends first the remaining envelopes are failed with ErrMailboxStopped,
// the hook is skipped and ErrMailboxDrainTimeout is returned.
func (m *Mailbox) Stop(ctx context.Context) error {
	m.postMu.Lock()
	first := m.stopping.CompareAndSwap(false, true)
	m.postMu.Unlock()

	if !first {
		select {
		case <-m.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// drain whatever is queued, even if no turn ever ran
	m.schedule()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for !(m.queue.Len() == 0 && State(m.state.Load()) == StateIdle) {
		select {
		case <-m.turnDone:
		case <-ticker.C:
		case <-ctx.Done():
			m.abort()
			m.logger.Warnf("mailbox %s could not drain before deadline", m.key)
			return gerrors.ErrMailboxDrainTimeout
		}
	}

	if !m.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		// a turn was rescheduled by the drain above; it finalizes once it sees the abort flag
		m.abort()
		return gerrors.ErrMailboxDrainTimeout
	}

	var err error
	if m.activated.Load() {
		if err = m.runHook(ctx, m.instance.OnDeactivate); err != nil {
			m.logger.Errorf("failed to deactivate actor %s: %v", m.key, err)
		}
	}
	m.finish()
	return err
}

// MessageCount returns the number of queued envelopes
func (m *Mailbox) MessageCount() int {
	return int(m.queue.Len())
}

// Capacity returns the effective capacity of the queue
func (m *Mailbox) Capacity() int {
	return int(m.queue.Cap())
}

// IsProcessing reports whether a turn is scheduled or running
func (m *Mailbox) IsProcessing() bool {
	switch State(m.state.Load()) {
	case StateScheduled, StateRunning:
		return true
	default:
		return false
	}
}

// State returns the scheduling state
func (m *Mailbox) State() State {
	return State(m.state.Load())
}

// Activated reports whether OnActivate succeeded
func (m *Mailbox) Activated() bool {
	return m.activated.Load()
}

// LastActivity returns the time of the last dispatch
func (m *Mailbox) LastActivity() time.Time {
	return m.lastActivity.Load()
}

// Identity returns the actor identity
func (m *Mailbox) Identity() actor.Identity {
	return m.identity
}

// Done is closed once the mailbox reached its terminal state
func (m *Mailbox) Done() <-chan struct{} {
	return m.stopped
}

// abort makes the next turn fail the queue and finalize the mailbox.
// Either the running turn observes the flag once idle or the schedule here
// finds the mailbox idle and submits a finalizing turn.
func (m *Mailbox) abort() {
	m.aborted.Store(true)
	m.schedule()
}

func (m *Mailbox) schedule() {
	if m.state.CompareAndSwap(int32(StateIdle), int32(StateScheduled)) {
		m.submit()
	}
}

func (m *Mailbox) submit() {
	if err := m.submitter.SubmitWork(m.runTurn); err != nil {
		go m.runTurn()
	}
}

func (m *Mailbox) runTurn() {
	m.state.Store(int32(StateRunning))
	processed := 0

	// a stop on an empty, never activated mailbox has nothing to activate for
	if !m.aborted.Load() && !m.activated.Load() && !(m.stopping.Load() && m.queue.Len() == 0) {
		if err := m.activate(); err != nil {
			m.failQueued(fmt.Errorf("%w: %s: %w", gerrors.ErrActorActivationFailed, m.key, err))
		}
	}

	for processed < m.maxPerTurn {
		env := m.dequeue()
		if env == nil {
			break
		}
		m.handle(env)
		processed++
	}

	m.notify(m.turnDone)

	if m.aborted.Load() {
		m.failQueued(gerrors.ErrMailboxStopped)
		m.state.Store(int32(StateStopped))
		m.finish()
		return
	}

	if processed == m.maxPerTurn && m.queue.Len() > 0 {
		// yield the worker to other actors, keep the token
		m.state.Store(int32(StateScheduled))
		m.submit()
		return
	}

	m.state.Store(int32(StateIdle))
	if (m.queue.Len() > 0 || m.aborted.Load()) && m.state.CompareAndSwap(int32(StateIdle), int32(StateScheduled)) {
		m.submit()
	}
}

func (m *Mailbox) dequeue() *envelope.Envelope {
	if m.queue.Len() == 0 {
		return nil
	}
	item, err := m.queue.Get()
	if err != nil {
		return nil
	}
	m.notify(m.space)
	env, _ := item.(*envelope.Envelope)
	return env
}

func (m *Mailbox) handle(env *envelope.Envelope) {
	if env == nil {
		return
	}

	if m.aborted.Load() {
		m.respond(m.baseCtx, env.Fail(gerrors.ErrMailboxStopped))
		return
	}

	if env.IsResponse() {
		m.logger.Warnf("mailbox %s dropped response %s", m.key, env.MessageID)
		return
	}

	if env.InCallChain(m.key) {
		m.respond(m.baseCtx, env.Fail(fmt.Errorf("%w: %s calls itself through %v", gerrors.ErrCircularCall, m.key, env.CallChain)))
		return
	}

	if env.MethodName == envelope.MethodActivate {
		m.respond(m.baseCtx, env.Reply(nil))
		return
	}

	start := time.Now()
	payload, err := m.invoke(env)
	m.lastActivity.Store(time.Now())
	if m.observer != nil {
		m.observer.ObserveDispatch(m.identity.Type, env.MethodName, time.Since(start), err)
	}

	if err != nil {
		m.logger.Debugf("actor %s failed to handle %s: %v", m.key, env.MethodName, err)
		m.respond(m.baseCtx, env.Fail(err))
		return
	}
	m.respond(m.baseCtx, env.Reply(payload))
}

func (m *Mailbox) invoke(env *envelope.Envelope) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toPanicError(r)
		}
	}()

	ctx := actor.WithCallChain(m.baseCtx, envelope.ExtendCallChain(env.CallChain, m.key))
	ctx = actor.WithSelf(ctx, m.identity)
	return m.dispatcher.Dispatch(ctx, m.instance, env.MethodName, env.Payload)
}

func (m *Mailbox) activate() error {
	ctx, cancel := context.WithTimeout(m.baseCtx, m.activationTimeout)
	defer cancel()

	retrier := retry.NewRetrier(m.activationRetries, time.Millisecond, m.activationTimeout)
	if err := retrier.RunContext(ctx, func(ctx context.Context) error {
		return m.runHook(ctx, m.instance.OnActivate)
	}); err != nil {
		m.logger.Warnf("failed to activate actor %s: %v", m.key, err)
		return err
	}

	m.activated.Store(true)
	m.logger.Debugf("actor %s activated", m.key)
	return nil
}

func (m *Mailbox) runHook(ctx context.Context, hook func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toPanicError(r)
		}
	}()
	return hook(actor.WithSelf(ctx, m.identity))
}

// failQueued answers every envelope currently queued with err
func (m *Mailbox) failQueued(err error) {
	for n := m.queue.Len(); n > 0; n-- {
		env := m.dequeue()
		if env == nil {
			return
		}
		if env.IsResponse() {
			continue
		}
		m.respond(m.baseCtx, env.Fail(err))
	}
}

func (m *Mailbox) finish() {
	m.finished.Do(func() {
		m.queue.Dispose()
		close(m.stopped)
	})
}

func (m *Mailbox) notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func toPanicError(r any) error {
	pc, fn, line, _ := runtime.Caller(2)
	if err, ok := r.(error); ok {
		var pe *gerrors.PanicError
		if errors.As(err, &pe) {
			return pe
		}
		return gerrors.NewPanicError(fmt.Errorf("%w at %s[%s:%d]", err, runtime.FuncForPC(pc).Name(), fn, line))
	}
	return gerrors.NewPanicError(fmt.Errorf("%#v at %s[%s:%d]", r, runtime.FuncForPC(pc).Name(), fn, line))
}
