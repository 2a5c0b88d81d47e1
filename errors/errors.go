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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRing is returned when a key is looked up on a ring without nodes.
	ErrEmptyRing = errors.New("hash ring is empty")

	// ErrNoSiloAvailable is returned when no active silo can own an actor.
	ErrNoSiloAvailable = errors.New("no silo available")

	// ErrSiloNotFound is returned when a silo record does not exist in the membership store.
	ErrSiloNotFound = errors.New("silo not found")

	// ErrUnknownActorType is returned when no dispatcher is registered for an actor type.
	ErrUnknownActorType = errors.New("unknown actor type")

	// ErrMethodNotFound is returned when a dispatcher has no handler for the requested method.
	ErrMethodNotFound = errors.New("method not found")

	// ErrActorCreationFailed is returned when the actor factory fails to build an instance.
	ErrActorCreationFailed = errors.New("actor creation failed")

	// ErrActorActivationFailed is returned when the activation hook of an actor fails.
	ErrActorActivationFailed = errors.New("actor activation failed")

	// ErrActorAlreadyRegistered is returned when an actor location is already owned by another silo.
	ErrActorAlreadyRegistered = errors.New("actor already registered")

	// ErrMailboxFull is returned when a mailbox rejects a message because it is at capacity.
	ErrMailboxFull = errors.New("mailbox is full")

	// ErrMailboxStopped is returned when a message is posted to a stopped mailbox.
	ErrMailboxStopped = errors.New("mailbox is stopped")

	// ErrMailboxDrainTimeout is returned when a mailbox could not drain before its stop deadline.
	ErrMailboxDrainTimeout = errors.New("mailbox drain timed out")

	// ErrCircularCall is returned when an invocation targets an actor already present in its call chain.
	ErrCircularCall = errors.New("circular actor call detected")

	// ErrSiloShuttingDown is returned when a shutting down silo is asked to activate an actor.
	ErrSiloShuttingDown = errors.New("silo is shutting down")

	// ErrSiloNotActive is returned when an operation requires an active silo.
	ErrSiloNotActive = errors.New("silo is not active")

	// ErrSiloAlreadyStarted is returned when Start is called twice.
	ErrSiloAlreadyStarted = errors.New("silo already started")

	// ErrRequestTimeout indicates that an invocation timed out while waiting for a response.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrInvalidEnvelope is returned when an envelope misses mandatory fields.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrRemoteSendFailure is returned when sending an envelope to a remote silo fails.
	ErrRemoteSendFailure = errors.New("remote send failed")

	// ErrInvalidStatusTransition is returned when a silo status is moved backwards.
	ErrInvalidStatusTransition = errors.New("invalid silo status transition")

	// ErrTransportNotStarted is returned when the transport is used before Start.
	ErrTransportNotStarted = errors.New("transport not started")

	// ErrNotOwner is returned by a silo receiving a request for an actor it does not own.
	ErrNotOwner = errors.New("silo does not own the actor")

	// ErrHandlerPanic is the sentinel matched by every PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrStateNotFound is returned by a state store when no state exists for a key.
	ErrStateNotFound = errors.New("state not found")
)

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}

// Is makes every PanicError match ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// RemoteError is an error decoded from an error envelope.
type RemoteError struct {
	code    string
	message string
}

// enforce compilation error
var _ error = (*RemoteError)(nil)

// Error implements the standard error interface
func (e *RemoteError) Error() string {
	return e.message
}

// Code returns the wire code carried by the envelope
func (e *RemoteError) Code() string {
	return e.code
}

// Unwrap returns the sentinel bound to the wire code, if any.
func (e *RemoteError) Unwrap() error {
	if sentinel, ok := sentinelsByCode[e.code]; ok {
		return sentinel
	}
	return nil
}
