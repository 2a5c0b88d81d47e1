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

package silo

import (
	"context"
	"fmt"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/envelope"
	"github.com/quarkgo/quark/internal/codec"
)

// ActorHandle addresses one virtual actor through a silo.
// A handle is cheap, holds no activation and is safe for concurrent use.
type ActorHandle struct {
	silo     *Silo
	identity actor.Identity
}

// Handle returns the handle of the actor (actorType, actorID)
func (s *Silo) Handle(actorType, actorID string) *ActorHandle {
	return &ActorHandle{silo: s, identity: actor.NewIdentity(actorType, actorID)}
}

// Identity returns the actor identity
func (h *ActorHandle) Identity() actor.Identity {
	return h.identity
}

// Invoke calls method with a raw payload
func (h *ActorHandle) Invoke(ctx context.Context, method string, payload []byte) ([]byte, error) {
	return h.silo.Invoke(ctx, h.identity.Type, h.identity.ID, method, payload)
}

// Activate activates the actor without dispatching anything to it
func (h *ActorHandle) Activate(ctx context.Context) error {
	_, err := h.Invoke(ctx, envelope.MethodActivate, nil)
	return err
}

// Call invokes method with a CBOR encoded request and decodes the response.
// It pairs with actor.CBORMethod on the actor side.
func Call[Req, Res any](ctx context.Context, handle *ActorHandle, method string, request *Req) (*Res, error) {
	payload, err := codec.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	out, err := handle.Invoke(ctx, method, payload)
	if err != nil {
		return nil, err
	}

	response := new(Res)
	if len(out) == 0 {
		return response, nil
	}
	if err := codec.Unmarshal(out, response); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return response, nil
}
