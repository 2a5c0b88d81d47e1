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

package transport

import (
	"context"
	"sync"

	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
)

// Inbox holds the inbound handler of a transport and tracks the deliveries in flight.
// Transport bindings embed it.
type Inbox struct {
	mu      sync.RWMutex
	handler Handler
	wg      sync.WaitGroup
}

// OnEnvelopeReceived sets the handler
func (x *Inbox) OnEnvelopeReceived(handler Handler) {
	x.mu.Lock()
	x.handler = handler
	x.mu.Unlock()
}

// Deliver hands env to the handler on the calling goroutine
func (x *Inbox) Deliver(ctx context.Context, env *envelope.Envelope) error {
	x.mu.RLock()
	handler := x.handler
	x.mu.RUnlock()
	if handler == nil {
		return gerrors.ErrTransportNotStarted
	}

	x.wg.Add(1)
	defer x.wg.Done()
	handler(ctx, env)
	return nil
}

// DeliverAsync hands a copy of env to the handler on a new goroutine.
// The delivery is detached from the cancellation of ctx.
func (x *Inbox) DeliverAsync(ctx context.Context, env *envelope.Envelope) error {
	x.mu.RLock()
	handler := x.handler
	x.mu.RUnlock()
	if handler == nil {
		return gerrors.ErrTransportNotStarted
	}

	clone := env.Clone()
	detached := context.WithoutCancel(ctx)
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		handler(detached, clone)
	}()
	return nil
}

// Wait blocks until every delivery returned or ctx is done
func (x *Inbox) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		x.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
