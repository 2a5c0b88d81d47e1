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

// Package envelope defines the message exchanged between silos.
//
// Requests and responses travel in the same Envelope type. Kind tags the
// direction explicitly; IsResponse also honours the response-only fields so
// that an envelope built without a kind is never mistaken for a request.
package envelope

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/internal/codec"
)

// Kind tags the direction of an envelope
type Kind int

const (
	// KindRequest is an invocation travelling towards an actor
	KindRequest Kind = iota
	// KindResponse is the completion of a request travelling back to its caller
	KindResponse
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MethodActivate is the system method asking a silo to activate an actor
// without dispatching anything to it.
const MethodActivate = "$activate"

// Envelope is the unit of work carried by the transport.
type Envelope struct {
	MessageID       string    `cbor:"1,keyasint"`
	CorrelationID   string    `cbor:"2,keyasint,omitempty"`
	Kind            Kind      `cbor:"3,keyasint"`
	ActorID         string    `cbor:"4,keyasint"`
	ActorType       string    `cbor:"5,keyasint"`
	MethodName      string    `cbor:"6,keyasint,omitempty"`
	Payload         []byte    `cbor:"7,keyasint,omitempty"`
	ResponsePayload []byte    `cbor:"8,keyasint,omitempty"`
	IsError         bool      `cbor:"9,keyasint,omitempty"`
	ErrorMessage    string    `cbor:"10,keyasint,omitempty"`
	ErrorCode       string    `cbor:"11,keyasint,omitempty"`
	SenderSiloID    string    `cbor:"12,keyasint,omitempty"`
	TargetSiloID    string    `cbor:"13,keyasint,omitempty"`
	CallChain       []string  `cbor:"14,keyasint,omitempty"`
	Timestamp       time.Time `cbor:"15,keyasint"`
}

// NewRequest creates a request envelope with fresh message and correlation ids.
func NewRequest(actorType, actorID, method string, payload []byte) *Envelope {
	id := uuid.NewString()
	return &Envelope{
		MessageID:     id,
		CorrelationID: id,
		Kind:          KindRequest,
		ActorID:       actorID,
		ActorType:     actorType,
		MethodName:    method,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}
}

// IsResponse reports whether the envelope completes a request.
// Receive paths must check it before any dispatch.
func (e *Envelope) IsResponse() bool {
	return e.Kind == KindResponse || e.ResponsePayload != nil || e.IsError
}

// Key returns the actor key "type:id"
func (e *Envelope) Key() string {
	return Key(e.ActorType, e.ActorID)
}

// Reply builds the successful response to e.
// The response is addressed back to the sender of e.
func (e *Envelope) Reply(payload []byte) *Envelope {
	if payload == nil {
		payload = []byte{}
	}
	resp := e.response()
	resp.ResponsePayload = payload
	return resp
}

// Fail builds the error response to e
func (e *Envelope) Fail(err error) *Envelope {
	resp := e.response()
	resp.IsError = true
	resp.ErrorMessage = err.Error()
	resp.ErrorCode = gerrors.Code(err)
	return resp
}

// Err returns the error carried by an error response, nil otherwise
func (e *Envelope) Err() error {
	if !e.IsError {
		return nil
	}
	return gerrors.FromCode(e.ErrorCode, e.ErrorMessage)
}

// Validate checks the fields required to route e
func (e *Envelope) Validate() error {
	switch {
	case e.MessageID == "":
		return fmt.Errorf("%w: message id is required", gerrors.ErrInvalidEnvelope)
	case e.IsResponse():
		return nil
	case e.ActorType == "" || e.ActorID == "":
		return fmt.Errorf("%w: actor type and id are required", gerrors.ErrInvalidEnvelope)
	case e.MethodName == "":
		return fmt.Errorf("%w: method name is required", gerrors.ErrInvalidEnvelope)
	default:
		return nil
	}
}

// Clone returns a copy of e safe to hand to another goroutine
func (e *Envelope) Clone() *Envelope {
	clone := *e
	clone.CallChain = append([]string(nil), e.CallChain...)
	return &clone
}

// Marshal encodes the envelope for the wire
func (e *Envelope) Marshal() ([]byte, error) {
	return codec.Marshal(e)
}

// Unmarshal decodes an envelope from the wire
func Unmarshal(data []byte) (*Envelope, error) {
	env := new(Envelope)
	if err := codec.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("%w: %w", gerrors.ErrInvalidEnvelope, err)
	}
	return env, nil
}

func (e *Envelope) response() *Envelope {
	return &Envelope{
		MessageID:     e.MessageID,
		CorrelationID: e.CorrelationID,
		Kind:          KindResponse,
		ActorID:       e.ActorID,
		ActorType:     e.ActorType,
		MethodName:    e.MethodName,
		SenderSiloID:  e.SenderSiloID,
		TargetSiloID:  e.TargetSiloID,
		Timestamp:     time.Now().UTC(),
	}
}

// Key builds the actor key used for placement and caching
func Key(actorType, actorID string) string {
	return actorType + ":" + actorID
}
