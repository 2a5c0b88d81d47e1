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

// Package http carries envelopes between silos over connect-rpc on HTTP/2.
//
// Every silo serves a single unary procedure. A Deliver call hands an envelope
// to the receiving silo and returns once it is queued for the local handler:
// responses travel back through a separate call addressed to the sender.
package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"strconv"
	"sync"

	"connectrpc.com/connect"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/codec"
	"github.com/quarkgo/quark/internal/compression"
	internalhttp "github.com/quarkgo/quark/internal/http"
	"github.com/quarkgo/quark/internal/xsync"
	"github.com/quarkgo/quark/log"
	"github.com/quarkgo/quark/membership"
	"github.com/quarkgo/quark/transport"
)

// DeliverProcedure is the connect procedure served by every silo
const DeliverProcedure = "/quark.transport.v1.TransportService/Deliver"

// Receipt acknowledges a delivered envelope
type Receipt struct {
	SiloID string `cbor:"1,keyasint"`
}

// Resolver maps a silo id to its advertised address.
// membership.Membership satisfies it.
type Resolver interface {
	ResolveSilo(ctx context.Context, siloID string) (*membership.SiloInfo, error)
}

type client = connect.Client[envelope.Envelope, Receipt]

// Transport is the HTTP/2 transport.Transport
type Transport struct {
	transport.Inbox

	siloID       string
	host         string
	port         int
	resolver     Resolver
	logger       log.Logger
	serverTLS    *tls.Config
	clientTLS    *tls.Config
	compression  string
	maxFrameSize uint32

	clientOpts  []connect.ClientOption
	handlerOpts []connect.HandlerOption

	mu         sync.Mutex
	started    *atomic.Bool
	server     *internalhttp.Server
	httpClient *nethttp.Client
	clients    *xsync.Map[string, *client]
	served     chan error
}

var _ transport.Transport = (*Transport)(nil)

// New creates the transport of siloID listening on host:port.
// A zero port binds an ephemeral one, reported by Port once started.
func New(siloID, host string, port int, opts ...Option) (*Transport, error) {
	t := &Transport{
		siloID:       siloID,
		host:         host,
		port:         port,
		logger:       log.DefaultLogger,
		maxFrameSize: internalhttp.DefaultMaxReadFrameSize,
		started:      atomic.NewBool(false),
		clients:      xsync.NewMap[string, *client](),
	}
	for _, opt := range opts {
		opt(t)
	}

	clientOpts, handlerOpts, err := compression.Option(t.compression)
	if err != nil {
		return nil, err
	}

	readLimit := int(t.maxFrameSize)
	t.clientOpts = append(clientOpts,
		connect.WithCodec(codec.New()),
		connect.WithSendMaxBytes(readLimit),
		connect.WithReadMaxBytes(readLimit))
	t.handlerOpts = append(handlerOpts,
		connect.WithCodec(codec.New()),
		connect.WithSendMaxBytes(readLimit),
		connect.WithReadMaxBytes(readLimit))
	return t, nil
}

// SiloID implements transport.Transport
func (t *Transport) SiloID() string {
	return t.siloID
}

// Port returns the bound port
func (t *Transport) Port() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}

// Start implements transport.Transport
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started.Load() {
		return nil
	}

	mux := nethttp.NewServeMux()
	mux.Handle(DeliverProcedure, connect.NewUnaryHandler(DeliverProcedure, t.deliver, t.handlerOpts...))

	hostPort := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	server, err := internalhttp.NewServer(context.WithoutCancel(ctx), hostPort, mux, t.serverTLS, t.maxFrameSize)
	if err != nil {
		return fmt.Errorf("failed to start the http transport: %w", err)
	}

	t.server = server
	t.port = server.Port()
	t.served = make(chan error, 1)
	if t.clientTLS != nil {
		t.httpClient = internalhttp.NewHTTPSClient(t.clientTLS, t.maxFrameSize)
	} else {
		t.httpClient = internalhttp.NewHTTPClient(t.maxFrameSize)
	}

	go func(served chan<- error) {
		served <- server.Serve()
	}(t.served)

	t.started.Store(true)
	t.logger.Infof("silo=(%s) http transport listening on %s", t.siloID, server.Addr)
	return nil
}

// Stop implements transport.Transport
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started.CompareAndSwap(true, false) {
		return nil
	}

	err := t.server.Shutdown(ctx)
	if err == nil {
		err = <-t.served
	}
	t.httpClient.CloseIdleConnections()
	t.clients.Reset()
	return multierr.Combine(err, t.Wait(ctx))
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
	if t.resolver == nil {
		return fmt.Errorf("%w: no resolver for silo %s", gerrors.ErrRemoteSendFailure, to)
	}

	info, err := t.resolver.ResolveSilo(ctx, to)
	if err != nil {
		return fmt.Errorf("%w: %w", gerrors.ErrRemoteSendFailure, err)
	}

	if _, err := t.client(info).CallUnary(ctx, connect.NewRequest(env)); err != nil {
		return fmt.Errorf("%w: silo %s: %w", gerrors.ErrRemoteSendFailure, to, err)
	}
	return nil
}

func (t *Transport) client(info *membership.SiloInfo) *client {
	endpoint := internalhttp.URL(info.Address, info.Port)
	if t.clientTLS != nil {
		endpoint = internalhttp.URLs(info.Address, info.Port)
	}

	if c, ok := t.clients.Get(endpoint); ok {
		return c
	}
	c, _ := t.clients.SetIfAbsent(endpoint, connect.NewClient[envelope.Envelope, Receipt](
		t.httpClient,
		endpoint+DeliverProcedure,
		t.clientOpts...))
	return c
}

// deliver serves DeliverProcedure
func (t *Transport) deliver(ctx context.Context, req *connect.Request[envelope.Envelope]) (*connect.Response[Receipt], error) {
	env := req.Msg
	if err := env.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if to := transport.Destination(env); to != t.siloID {
		err := fmt.Errorf("%w: addressed to silo %s", gerrors.ErrInvalidEnvelope, to)
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}

	if err := t.DeliverAsync(ctx, env); err != nil {
		if errors.Is(err, gerrors.ErrTransportNotStarted) {
			return nil, connect.NewError(connect.CodeUnavailable, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&Receipt{SiloID: t.siloID}), nil
}
