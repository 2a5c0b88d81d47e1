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
	"sort"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/quarkgo/quark/actor"
	gerrors "github.com/quarkgo/quark/errors"
	"github.com/quarkgo/quark/mailbox"
)

// ActiveActors returns the identities of the actors activated on this silo
func (s *Silo) ActiveActors() []actor.Identity {
	mailboxes := s.activations.Values()
	out := make([]actor.Identity, 0, len(mailboxes))
	for _, mb := range mailboxes {
		out = append(out, mb.Identity())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// DeactivateActor drains the actor's mailbox, runs its deactivation hook and
// drops the activation. Deactivating an actor that is not active here is a no-op.
func (s *Silo) DeactivateActor(ctx context.Context, actorType, actorID string) error {
	mb, ok := s.activations.Get(actor.NewIdentity(actorType, actorID).String())
	if !ok {
		return nil
	}
	return s.deactivate(ctx, mb)
}

// getOrActivate returns the mailbox of identity, activating the actor on first use.
// Concurrent callers for the same identity observe a single activation.
func (s *Silo) getOrActivate(ctx context.Context, identity actor.Identity) (*mailbox.Mailbox, error) {
	key := identity.String()
	if mb, ok := s.activations.Get(key); ok {
		return mb, nil
	}

	dispatcher, ok := s.registry.Dispatcher(identity.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", gerrors.ErrUnknownActorType, identity.Type)
	}

	mb, created, err := s.activations.GetOrCreate(key, func() (*mailbox.Mailbox, error) {
		// checked under the shard lock so that stopActors never misses an activation
		if err := s.activationError(key); err != nil {
			return nil, err
		}
		instance, err := s.registry.NewInstance(ctx, identity)
		if err != nil {
			return nil, err
		}
		return mailbox.New(identity, instance, dispatcher, s.respond, s.mailboxOptions()...), nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		mb.Start()
		if err := s.directory.RegisterActor(ctx, identity.ID, identity.Type, s.id); err != nil {
			s.logger.Warnf("silo (%s) failed to record location of %s: %v", s.id, key, err)
		}
		s.logger.Debugf("silo (%s) activated actor %s", s.id, key)
	}
	return mb, nil
}

func (s *Silo) mailboxOptions() []mailbox.Option {
	cfg := s.config.Mailbox
	return []mailbox.Option{
		mailbox.WithCapacity(cfg.Capacity),
		mailbox.WithFullMode(s.config.FullMode()),
		mailbox.WithMaxMessagesPerTurn(cfg.MaxMessagesPerTurn),
		mailbox.WithActivation(cfg.ActivationRetries, cfg.ActivationTimeout),
		mailbox.WithSubmitter(s.pool),
		mailbox.WithObserver(s.metrics),
		mailbox.WithLogger(s.logger),
		mailbox.WithContext(s.actorContext),
	}
}

// deactivate stops mb and forgets the activation
func (s *Silo) deactivate(ctx context.Context, mb *mailbox.Mailbox) error {
	identity := mb.Identity()
	err := mb.Stop(ctx)

	s.activations.DeleteIf(identity.String(), func(current *mailbox.Mailbox) bool {
		return current == mb
	})
	s.directory.UnregisterActor(ctx, identity.ID, identity.Type)
	s.directory.InvalidateCache(identity.ID, identity.Type)

	if err != nil {
		return fmt.Errorf("failed to deactivate actor %s: %w", identity, err)
	}
	s.logger.Debugf("silo (%s) deactivated actor %s", s.id, identity)
	return nil
}

// stopActors deactivates every remaining actor in parallel within ShutdownTimeout
func (s *Silo) stopActors(ctx context.Context) error {
	mailboxes := s.activations.Values()
	if len(mailboxes) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Infof("silo (%s) deactivating %d actors...", s.id, len(mailboxes))
	var (
		mu    sync.Mutex
		errs  error
		group errgroup.Group
	)
	for _, mb := range mailboxes {
		group.Go(func() error {
			if err := s.deactivate(ctx, mb); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errs
}
