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

package mailbox

import (
	"context"
	"time"

	"github.com/quarkgo/quark/log"
)

// FullMode selects what Post does when the mailbox is at capacity
type FullMode int

const (
	// FullModeWait blocks the poster until space frees up or its context is done
	FullModeWait FullMode = iota
	// FullModeReject fails the post immediately
	FullModeReject
)

const (
	// DefaultCapacity is the default number of queued envelopes
	DefaultCapacity = 1000
	// MinCapacity is the smallest queue the ring buffer can track.
	// A single slot ring cannot tell a full slot from a ready one.
	MinCapacity = 2
	// DefaultMaxMessagesPerTurn bounds the work done before yielding the worker
	DefaultMaxMessagesPerTurn = 100
	// DefaultActivationRetries is the number of OnActivate attempts per turn
	DefaultActivationRetries = 3
	// DefaultActivationTimeout bounds the activation attempts of one turn
	DefaultActivationTimeout = 10 * time.Second
)

// Submitter runs a turn on some goroutine.
// The silo's worker pool satisfies it.
type Submitter interface {
	SubmitWork(task func()) error
}

// Observer is notified after each dispatched envelope
type Observer interface {
	ObserveDispatch(actorType, method string, elapsed time.Duration, err error)
}

// Option configures a Mailbox
type Option func(m *Mailbox)

// WithCapacity sets the queue capacity.
// The ring buffer rounds it up to the next power of two and
// anything below MinCapacity is raised to MinCapacity.
func WithCapacity(capacity int) Option {
	return func(m *Mailbox) {
		if capacity > 0 {
			m.capacity = max(capacity, MinCapacity)
		}
	}
}

// WithFullMode sets the behaviour of Post on a full mailbox
func WithFullMode(mode FullMode) Option {
	return func(m *Mailbox) {
		m.fullMode = mode
	}
}

// WithMaxMessagesPerTurn sets the per-turn budget
func WithMaxMessagesPerTurn(max int) Option {
	return func(m *Mailbox) {
		if max > 0 {
			m.maxPerTurn = max
		}
	}
}

// WithSubmitter sets the goroutine pool running the turns
func WithSubmitter(submitter Submitter) Option {
	return func(m *Mailbox) {
		if submitter != nil {
			m.submitter = submitter
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(m *Mailbox) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivation sets the activation retry budget
func WithActivation(retries int, timeout time.Duration) Option {
	return func(m *Mailbox) {
		if retries > 0 {
			m.activationRetries = retries
		}
		if timeout > 0 {
			m.activationTimeout = timeout
		}
	}
}

// WithObserver sets the dispatch observer
func WithObserver(observer Observer) Option {
	return func(m *Mailbox) {
		m.observer = observer
	}
}

// WithContext sets the base context handed to the actor's handlers and hooks
func WithContext(ctx context.Context) Option {
	return func(m *Mailbox) {
		if ctx != nil {
			m.baseCtx = ctx
		}
	}
}

type goSubmitter struct{}

func (goSubmitter) SubmitWork(task func()) error {
	go task()
	return nil
}
