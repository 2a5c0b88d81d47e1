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
	"fmt"
	"time"

	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/future"
	"github.com/quarkgo/quark/internal/xsync"
)

// Pending is an outbound request waiting for its response
type Pending struct {
	MessageID string
	promise   *future.Promise[*envelope.Envelope]
}

// Done is closed once the request completed
func (p *Pending) Done() <-chan struct{} {
	return p.promise.Done()
}

// Correlator matches responses with the requests awaiting them
type Correlator struct {
	pending *xsync.Map[string, *Pending]
}

// NewCorrelator creates an empty Correlator
func NewCorrelator() *Correlator {
	return &Correlator{pending: xsync.NewMap[string, *Pending]()}
}

// Register starts waiting for the response to messageID
func (c *Correlator) Register(messageID string) *Pending {
	pending := &Pending{MessageID: messageID, promise: future.NewPromise[*envelope.Envelope]()}
	c.pending.Set(messageID, pending)
	return pending
}

// Complete resolves the request answered by response.
// It reports false for unknown, late or duplicate responses.
func (c *Correlator) Complete(response *envelope.Envelope) bool {
	id := response.CorrelationID
	if id == "" {
		id = response.MessageID
	}

	pending, ok := c.take(id)
	if !ok {
		return false
	}
	return pending.promise.Complete(response)
}

// Cancel stops waiting for messageID
func (c *Correlator) Cancel(messageID string) {
	if pending, ok := c.take(messageID); ok {
		pending.promise.Cancel()
	}
}

// Fail resolves every waiting request with err
func (c *Correlator) Fail(err error) {
	for _, id := range c.pending.Keys() {
		if pending, ok := c.take(id); ok {
			pending.promise.Fail(err)
		}
	}
}

// Len returns the number of waiting requests
func (c *Correlator) Len() int {
	return c.pending.Len()
}

// Await waits for the response of pending.
// An error response is returned as the error it carries. When ctx ends first
// the request is cancelled and ErrRequestTimeout is returned.
func (c *Correlator) Await(ctx context.Context, pending *Pending) (*envelope.Envelope, error) {
	select {
	case <-pending.promise.Done():
	case <-ctx.Done():
		c.Cancel(pending.MessageID)
		return nil, fmt.Errorf("%w: %s: %w", gerrors.ErrRequestTimeout, pending.MessageID, ctx.Err())
	}

	res := pending.promise.Await(ctx)
	if err := res.Failure(); err != nil {
		return nil, err
	}
	response := res.Success()
	if err := response.Err(); err != nil {
		return response, err
	}
	return response, nil
}

// take removes and returns the request registered under id
func (c *Correlator) take(id string) (*Pending, bool) {
	var pending *Pending
	removed := c.pending.DeleteIf(id, func(p *Pending) bool {
		pending = p
		return true
	})
	return pending, removed
}

// Drain waits until no request is pending or ctx is done
func (c *Correlator) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for c.Len() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d requests still in flight: %w", c.Len(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
