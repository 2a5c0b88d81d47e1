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

// Package nats carries envelopes between silos over NATS.
//
// Each silo subscribes to "<prefix>.<siloID>". Senders publish a CBOR encoded
// envelope as a request and wait for the receipt, so a send to a silo that is
// not listening fails instead of being silently dropped.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"

	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/codec"
	"github.com/quarkgo/quark/log"
	"github.com/quarkgo/quark/transport"
)

// receipt acknowledges a delivery. Error is set when the receiver rejected it.
type receipt struct {
	SiloID string `cbor:"1,keyasint"`
	Error  string `cbor:"2,keyasint,omitempty"`
}

// Option configures a Transport
type Option func(t *Transport)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// Transport is the NATS transport.Transport
type Transport struct {
	transport.Inbox

	siloID string
	config *Config
	logger log.Logger

	mu           sync.Mutex
	started      *atomic.Bool
	conn         *nats.Conn
	subscription *nats.Subscription
}

var _ transport.Transport = (*Transport)(nil)

// New creates the transport of siloID
func New(siloID string, config *Config, opts ...Option) (*Transport, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	t := &Transport{
		siloID:  siloID,
		config:  config,
		logger:  log.DefaultLogger,
		started: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// SiloID implements transport.Transport
func (t *Transport) SiloID() string {
	return t.siloID
}

// Subject returns the subject siloID listens on
func (t *Transport) Subject(siloID string) string {
	return t.config.SubjectPrefix + "." + siloID
}

// Start implements transport.Transport
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started.Load() {
		return nil
	}

	opts := nats.GetDefaultOptions()
	opts.Url = t.config.URL
	opts.Name = t.siloID
	opts.ReconnectWait = t.config.ReconnectWait
	opts.MaxReconnect = t.config.MaxReconnects

	var conn *nats.Conn
	retrier := retry.NewRetrier(5, 100*time.Millisecond, opts.ReconnectWait)
	err := retrier.RunContext(ctx, func(context.Context) error {
		var err error
		conn, err = opts.Connect()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to connect to nats at %s: %w", t.config.URL, err)
	}

	subscription, err := conn.Subscribe(t.Subject(t.siloID), t.receive)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", t.Subject(t.siloID), err)
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		conn.Close()
		return err
	}

	t.conn = conn
	t.subscription = subscription
	t.started.Store(true)
	t.logger.Infof("silo=(%s) nats transport listening on %s", t.siloID, subscription.Subject)
	return nil
}

// Stop implements transport.Transport
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started.CompareAndSwap(true, false) {
		return nil
	}

	if t.subscription.IsValid() {
		if err := t.subscription.Unsubscribe(); err != nil {
			t.logger.Warnf("silo=(%s) failed to unsubscribe: %v", t.siloID, err)
		}
	}
	t.conn.Close()
	return t.Wait(ctx)
}

// Send implements transport.Transport
func (t *Transport) Send(ctx context.Context, env *envelope.Envelope) error {
	return t.send(ctx, env.TargetSiloID, env)
}

// SendResponse implements transport.Transport
func (t *Transport) SendResponse(ctx context.Context, env *envelope.Envelope) error {
	return t.send(ctx, env.SenderSiloID, env)
}

func (t *Transport) send(ctx context.Context, to string, env *envelope.Envelope) error {
	if !t.started.Load() {
		return gerrors.ErrTransportNotStarted
	}
	if to == "" || to == t.siloID {
		return t.DeliverAsync(ctx, env)
	}

	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", gerrors.ErrInvalidEnvelope, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	msg, err := t.conn.RequestWithContext(ctx, t.Subject(to), data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return fmt.Errorf("%w: silo %s is not listening", gerrors.ErrRemoteSendFailure, to)
		}
		return fmt.Errorf("%w: silo %s: %w", gerrors.ErrRemoteSendFailure, to, err)
	}

	var ack receipt
	if err := codec.Unmarshal(msg.Data, &ack); err != nil {
		return fmt.Errorf("%w: invalid receipt from silo %s: %w", gerrors.ErrRemoteSendFailure, to, err)
	}
	if ack.Error != "" {
		return fmt.Errorf("%w: silo %s rejected the envelope: %s", gerrors.ErrRemoteSendFailure, to, ack.Error)
	}
	return nil
}

// receive handles the messages of the silo subject
func (t *Transport) receive(msg *nats.Msg) {
	ack := receipt{SiloID: t.siloID}
	if err := t.accept(msg.Data); err != nil {
		ack.Error = err.Error()
		t.logger.Warnf("silo=(%s) rejected envelope: %v", t.siloID, err)
	}

	data, err := codec.Marshal(&ack)
	if err != nil {
		t.logger.Errorf("silo=(%s) failed to encode receipt: %v", t.siloID, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		t.logger.Warnf("silo=(%s) failed to acknowledge envelope: %v", t.siloID, err)
	}
}

func (t *Transport) accept(data []byte) error {
	env, err := envelope.Unmarshal(data)
	if err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return err
	}
	if to := transport.Destination(env); to != t.siloID {
		return fmt.Errorf("%w: addressed to silo %s", gerrors.ErrInvalidEnvelope, to)
	}
	return t.DeliverAsync(context.Background(), env)
}
