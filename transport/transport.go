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

// Package transport moves envelopes between silos.
//
// A Transport delivers requests to env.TargetSiloID and responses back to
// env.SenderSiloID. Envelopes addressed to the local silo never touch the
// network: they are handed to the local handler directly. Receivers must check
// IsResponse before anything else and never dispatch a response to an actor.
package transport

import (
	"context"

	"github.com/quarkgo/quark/envelope"
)

// Handler consumes the envelopes received by a Transport
type Handler func(ctx context.Context, env *envelope.Envelope)

// Transport carries envelopes between silos
type Transport interface {
	// Start binds the transport. The handler must be set before Start.
	Start(ctx context.Context) error
	// Stop unbinds the transport and waits for in-flight local deliveries
	Stop(ctx context.Context) error
	// Send delivers a request to env.TargetSiloID
	Send(ctx context.Context, env *envelope.Envelope) error
	// SendResponse delivers a response to env.SenderSiloID
	SendResponse(ctx context.Context, env *envelope.Envelope) error
	// OnEnvelopeReceived sets the handler of inbound envelopes
	OnEnvelopeReceived(handler Handler)
	// SiloID returns the id of the local silo
	SiloID() string
}

// Destination returns the silo an envelope must be delivered to
func Destination(env *envelope.Envelope) string {
	if env.IsResponse() {
		return env.SenderSiloID
	}
	return env.TargetSiloID
}
