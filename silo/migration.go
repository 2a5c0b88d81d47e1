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
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/quarkgo/quark/envelope"
	"github.com/quarkgo/quark/mailbox"
	"github.com/quarkgo/quark/membership"
)

// migrateColdActors hands the idle actors over to the silos that own them once
// this silo has left the ring. Migration is best effort: a failed migration is
// logged and the actor is deactivated with the others.
func (s *Silo) migrateColdActors(ctx context.Context) error {
	cold := s.coldActors(time.Now())
	if len(cold) == 0 {
		return nil
	}

	s.logger.Infof("silo (%s) migrating %d cold actors...", s.id, len(cold))
	migrated := s.migrateAll(ctx, cold)
	s.logger.Infof("silo (%s) migrated %d/%d cold actors", s.id, migrated, len(cold))
	return nil
}

// handOff moves the activations the ring now places on another silo, hot or
// cold, so that an actor never stays live on two silos after a join
func (s *Silo) handOff(ctx context.Context) error {
	s.handOffMu.Lock()
	defer s.handOffMu.Unlock()
	if s.Status() != membership.StatusActive {
		return nil
	}

	var moving []*mailbox.Mailbox
	for _, mb := range s.activations.Values() {
		if owner, err := s.directory.Owner(mb.Identity().String()); err == nil && owner != s.id {
			moving = append(moving, mb)
		}
	}
	if len(moving) == 0 {
		return nil
	}

	s.logger.Infof("silo (%s) handing off %d actors...", s.id, len(moving))
	moved := s.migrateAll(ctx, moving)
	s.logger.Infof("silo (%s) handed off %d/%d actors", s.id, moved, len(moving))
	return nil
}

// migrateAll migrates mailboxes, MaxConcurrentMigrations at a time, and
// returns how many succeeded
func (s *Silo) migrateAll(ctx context.Context, mailboxes []*mailbox.Mailbox) int64 {
	migrated := atomic.NewInt64(0)
	group := new(errgroup.Group)
	group.SetLimit(s.config.Migration.MaxConcurrentMigrations)
	for _, mb := range mailboxes {
		group.Go(func() error {
			migrationCtx, cancel := context.WithTimeout(ctx, s.config.Migration.MigrationTimeout)
			defer cancel()
			if err := s.migrate(migrationCtx, mb); err != nil {
				s.logger.Warnf("silo (%s) failed to migrate actor %s: %v", s.id, mb.Identity(), err)
				return nil
			}
			migrated.Inc()
			return nil
		})
	}
	_ = group.Wait()
	return migrated.Load()
}

// coldActors returns the actors idle for at least ColdActorThreshold
func (s *Silo) coldActors(now time.Time) []*mailbox.Mailbox {
	var cold []*mailbox.Mailbox
	for _, mb := range s.activations.Values() {
		if mb.IsProcessing() || mb.MessageCount() > 0 {
			continue
		}
		if now.Sub(mb.LastActivity()) >= s.config.Migration.ColdActorThreshold {
			cold = append(cold, mb)
		}
	}
	return cold
}

// migrate deactivates the actor of mb, which flushes its state, and
// pre-activates it on its next owner when migration is enabled
func (s *Silo) migrate(ctx context.Context, mb *mailbox.Mailbox) error {
	identity := mb.Identity()
	target, err := s.directory.OwnerExcluding(identity.String(), s.id)
	if err != nil {
		return err
	}

	if err := s.deactivate(ctx, mb); err != nil {
		return err
	}
	if !s.config.Migration.Enabled {
		return nil
	}

	request := envelope.NewRequest(identity.Type, identity.ID, envelope.MethodActivate, nil)
	request.SenderSiloID = s.id
	request.TargetSiloID = target
	if _, err := s.call(ctx, request, s.transport.Send); err != nil {
		return fmt.Errorf("pre-activation on silo %s: %w", target, err)
	}

	s.logger.Debugf("silo (%s) migrated actor %s to silo %s", s.id, identity, target)
	return nil
}
