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
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/flowchartsman/retry"

	"github.com/quarkgo/quark/actor"
	"github.com/quarkgo/quark/directory"
	"github.com/quarkgo/quark/envelope"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/mailbox"
	"github.com/quarkgo/quark/membership"
)

// backoff between two routing attempts of one invocation
const (
	rerouteInitialDelay = 10 * time.Millisecond
	rerouteMaxDelay     = 500 * time.Millisecond
)

// Invoke calls method on the actor (actorType, actorID) wherever it lives and
// returns the response payload.
//
// The call is bounded by RequestTimeout. Failures caused by a stale view of the
// cluster (silo shutting down, not the owner, unreachable) invalidate the
// cached route, reload the membership and are retried up to InvokeRetries times.
// Each attempt is a new request, so delivery is at least once: a request whose
// receipt was lost after the owner queued it runs again on retry. Methods that
// must not run twice should be idempotent or tolerate replays.
// A call issued from an actor handler carries the call chain of that handler;
// calling back into an actor of the chain fails with ErrCircularCall.
func (s *Silo) Invoke(ctx context.Context, actorType, actorID, method string, payload []byte) ([]byte, error) {
	if !s.started.Load() || s.Status() == membership.StatusDead {
		return nil, gerrors.ErrSiloNotActive
	}
	if actorType == "" || actorID == "" || method == "" {
		return nil, fmt.Errorf("%w: actor type, id and method are required", gerrors.ErrInvalidEnvelope)
	}

	identity := actor.NewIdentity(actorType, actorID)
	callChain := actor.CallChain(ctx)
	if slices.Contains(callChain, identity.String()) {
		return nil, fmt.Errorf("%w: %s calls itself through %v", gerrors.ErrCircularCall, identity, callChain)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var (
		response []byte
		lastErr  error
	)
	retrier := retry.NewRetrier(s.config.InvokeRetries+1, rerouteInitialDelay, rerouteMaxDelay)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		out, err := s.invokeOnce(ctx, identity, method, payload, callChain)
		lastErr = err
		if err == nil {
			response = out
			return nil
		}
		if !retryable(err) {
			// stop retrying, lastErr carries the failure
			return nil
		}

		s.logger.Debugf("silo (%s) re-routing %s.%s: %v", s.id, identity, method, err)
		s.directory.InvalidateCache(identity.ID, identity.Type)
		if reloadErr := s.membership.Reload(ctx); reloadErr != nil {
			s.logger.Debugf("silo (%s) failed to reload membership: %v", s.id, reloadErr)
		}
		return err
	})

	switch {
	case lastErr != nil:
		return nil, lastErr
	case err != nil:
		return nil, err
	default:
		return response, nil
	}
}

// Activate activates the actor (actorType, actorID) on its owner without
// dispatching any method to it
func (s *Silo) Activate(ctx context.Context, actorType, actorID string) error {
	_, err := s.Invoke(ctx, actorType, actorID, envelope.MethodActivate, nil)
	return err
}

// invokeOnce routes and sends one attempt of an invocation
func (s *Silo) invokeOnce(ctx context.Context, identity actor.Identity, method string, payload []byte, callChain []string) ([]byte, error) {
	decision, err := s.directory.Route(ctx, identity.ID, identity.Type)
	if err != nil {
		return nil, err
	}

	request := envelope.NewRequest(identity.Type, identity.ID, method, payload)
	request.SenderSiloID = s.id
	request.CallChain = slices.Clone(callChain)

	switch decision.Kind {
	case directory.LocalSilo, directory.SameProcess:
		request.TargetSiloID = s.id
		return s.call(ctx, request, s.deliverLocal)
	case directory.Remote:
		request.TargetSiloID = decision.TargetSiloID
		return s.call(ctx, request, s.transport.Send)
	default:
		return nil, fmt.Errorf("%w: cannot place %s", gerrors.ErrNoSiloAvailable, identity)
	}
}

// call sends request and waits for its response
func (s *Silo) call(ctx context.Context, request *envelope.Envelope, send func(context.Context, *envelope.Envelope) error) ([]byte, error) {
	pending := s.correlator.Register(request.MessageID)
	if err := send(ctx, request); err != nil {
		s.correlator.Cancel(request.MessageID)
		return nil, err
	}

	response, err := s.correlator.Await(ctx, pending)
	if err != nil {
		return nil, err
	}
	return response.ResponsePayload, nil
}

// receive is the inbound handler of the transport.
// Responses complete the caller waiting on them and are never dispatched.
func (s *Silo) receive(ctx context.Context, env *envelope.Envelope) {
	if env.IsResponse() {
		s.metrics.EnvelopeReceived(ctx, envelope.KindResponse.String())
		if !s.correlator.Complete(env) {
			s.logger.Debugf("silo (%s) dropped response %s: no caller is waiting", s.id, env.MessageID)
		}
		return
	}

	s.metrics.EnvelopeReceived(ctx, envelope.KindRequest.String())
	if err := env.Validate(); err != nil {
		s.respond(ctx, env.Fail(err))
		return
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()
	if err := s.deliverLocal(enqueueCtx, env); err != nil {
		s.logger.Debugf("silo (%s) rejected %s.%s: %v", s.id, env.Key(), env.MethodName, err)
		s.respond(ctx, env.Fail(err))
	}
}

// deliverLocal posts a request to the mailbox of its actor, activating the
// actor when this silo owns it
func (s *Silo) deliverLocal(ctx context.Context, env *envelope.Envelope) error {
	identity := actor.NewIdentity(env.ActorType, env.ActorID)
	key := identity.String()

	for attempt := 0; ; attempt++ {
		mb, ok := s.activations.Get(key)
		if ok {
			if err := s.checkResidency(ctx, mb); err != nil {
				return err
			}
		} else {
			if err := s.checkOwnership(ctx, key); err != nil {
				return err
			}
			var err error
			if mb, err = s.getOrActivate(ctx, identity); err != nil {
				return err
			}
		}

		err := mb.Enqueue(ctx, env)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gerrors.ErrMailboxStopped) && attempt == 0:
			// deactivated concurrently: wait for the state flush, then activate afresh
			if waitErr := s.awaitDeactivation(ctx, mb); waitErr != nil {
				return waitErr
			}
		case errors.Is(err, gerrors.ErrMailboxFull):
			s.metrics.MailboxRejected(ctx, identity.Type)
			return fmt.Errorf("%w: %s", err, key)
		case errors.Is(err, gerrors.ErrMailboxStopped):
			s.metrics.MailboxRejected(ctx, identity.Type)
			return err
		default:
			s.metrics.MailboxRejected(ctx, identity.Type)
			return fmt.Errorf("%w: waiting for room in the mailbox of %s: %w", gerrors.ErrRequestTimeout, key, err)
		}
	}
}

func (s *Silo) awaitDeactivation(ctx context.Context, mb *mailbox.Mailbox) error {
	select {
	case <-mb.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.activations.DeleteIf(mb.Identity().String(), func(current *mailbox.Mailbox) bool {
		return current == mb
	})
	return nil
}

// checkResidency rejects a request for an activation the ring now places on
// another silo. The activation is deactivated first, which flushes its state,
// so that the caller re-routes to an owner that activates it afresh.
// A silo shutting down keeps serving its activations until it stops them.
func (s *Silo) checkResidency(ctx context.Context, mb *mailbox.Mailbox) error {
	if s.Status() != membership.StatusActive {
		return nil
	}

	key := mb.Identity().String()
	owner, err := s.directory.Owner(key)
	if err != nil || owner == s.id {
		return nil
	}

	if err := s.deactivate(ctx, mb); err != nil {
		s.logger.Warnf("silo (%s) failed to hand off actor %s: %v", s.id, key, err)
	}
	return fmt.Errorf("%w: %s is owned by silo %s", gerrors.ErrNotOwner, key, owner)
}

// checkOwnership rejects the activation of an actor the ring places elsewhere.
// A mismatch may come from a stale local view, which is reloaded once.
func (s *Silo) checkOwnership(ctx context.Context, key string) error {
	if err := s.activationError(key); err != nil {
		return err
	}

	owner, err := s.directory.Owner(key)
	if err == nil && owner == s.id {
		return nil
	}

	if reloadErr := s.membership.Reload(ctx); reloadErr != nil {
		s.logger.Debugf("silo (%s) failed to reload membership: %v", s.id, reloadErr)
	}
	if owner, err = s.directory.Owner(key); err != nil {
		return fmt.Errorf("%w: cannot place %s: %w", gerrors.ErrNoSiloAvailable, key, err)
	}
	if owner != s.id {
		return fmt.Errorf("%w: %s is owned by silo %s", gerrors.ErrNotOwner, key, owner)
	}
	return nil
}

// respond routes a response back to the silo that sent the request
func (s *Silo) respond(ctx context.Context, response *envelope.Envelope) {
	if response.SenderSiloID == "" || response.SenderSiloID == s.id {
		if !s.correlator.Complete(response) {
			s.logger.Debugf("silo (%s) dropped response %s: no caller is waiting", s.id, response.MessageID)
		}
		return
	}

	if err := s.transport.SendResponse(ctx, response); err != nil {
		s.logger.Warnf("silo (%s) failed to send response %s to silo %s: %v", s.id, response.MessageID, response.SenderSiloID, err)
	}
}
