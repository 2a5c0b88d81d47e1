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
	"sync"

	"go.uber.org/atomic"

	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
)

// LocalNetwork connects the silos of one process. Deliveries are asynchronous.
type LocalNetwork struct {
	mu           sync.RWMutex
	endpoints    map[string]*LocalTransport
	disconnected map[string]bool
}

// NewLocalNetwork creates an empty LocalNetwork
func NewLocalNetwork() *LocalNetwork {
	return &LocalNetwork{
		endpoints:    make(map[string]*LocalTransport),
		disconnected: make(map[string]bool),
	}
}

// Endpoint creates the transport of siloID on the network
func (n *LocalNetwork) Endpoint(siloID string) *LocalTransport {
	return &LocalTransport{network: n, siloID: siloID, started: atomic.NewBool(false)}
}

// Disconnect makes every delivery from or to siloID fail until Reconnect
func (n *LocalNetwork) Disconnect(siloID string) {
	n.mu.Lock()
	n.disconnected[siloID] = true
	n.mu.Unlock()
}

// Reconnect undoes Disconnect
func (n *LocalNetwork) Reconnect(siloID string) {
	n.mu.Lock()
	delete(n.disconnected, siloID)
	n.mu.Unlock()
}

func (n *LocalNetwork) bind(t *LocalTransport) {
	n.mu.Lock()
	n.endpoints[t.siloID] = t
	n.mu.Unlock()
}

func (n *LocalNetwork) unbind(t *LocalTransport) {
	n.mu.Lock()
	if n.endpoints[t.siloID] == t {
		delete(n.endpoints, t.siloID)
	}
	n.mu.Unlock()
}

func (n *LocalNetwork) route(from, to string) (*LocalTransport, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.disconnected[from] || n.disconnected[to] {
		return nil, fmt.Errorf("%w: silo %s is unreachable from %s", gerrors.ErrRemoteSendFailure, to, from)
	}
	target, ok := n.endpoints[to]
	if !ok {
		return nil, fmt.Errorf("%w: silo %s is not bound", gerrors.ErrRemoteSendFailure, to)
	}
	return target, nil
}

// LocalTransport is the endpoint of a silo on a LocalNetwork
type LocalTransport struct {
	Inbox
	network *LocalNetwork
	siloID  string
	started *atomic.Bool
}

var _ Transport = (*LocalTransport)(nil)

// SiloID implements Transport
func (t *LocalTransport) SiloID() string {
	return t.siloID
}

// Start implements Transport
func (t *LocalTransport) Start(context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return nil
	}
	t.network.bind(t)
	return nil
}

// Stop implements Transport
func (t *LocalTransport) Stop(ctx context.Context) error {
	if !t.started.CompareAndSwap(true, false) {
		return nil
	}
	t.network.unbind(t)
	return t.Wait(ctx)
}

// Send implements Transport
func (t *LocalTransport) Send(ctx context.Context, env *envelope.Envelope) error {
	return t.deliver(ctx, env.TargetSiloID, env)
}

// SendResponse implements Transport
func (t *LocalTransport) SendResponse(ctx context.Context, env *envelope.Envelope) error {
	return t.deliver(ctx, env.SenderSiloID, env)
}

func (t *LocalTransport) deliver(ctx context.Context, to string, env *envelope.Envelope) error {
	if !t.started.Load() {
		return gerrors.ErrTransportNotStarted
	}
	if to == "" || to == t.siloID {
		return t.DeliverAsync(ctx, env)
	}

	target, err := t.network.route(t.siloID, to)
	if err != nil {
		return err
	}
	if err := target.DeliverAsync(ctx, env); err != nil {
		return fmt.Errorf("%w: %w", gerrors.ErrRemoteSendFailure, err)
	}
	return nil
}
