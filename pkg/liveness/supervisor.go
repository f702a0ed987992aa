// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package liveness

import (
	"context"
	"sync"
	"time"

	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/store"
)

const DefaultInterval = 30 * time.Second

var _ SupervisorInterface = (*Supervisor)(nil)

// Supervisor keeps a periodic full refresh running for as long as the
// local player occupies a slot in an Active group.
type Supervisor struct {
	store     store.ReaderInterface
	refresher RefresherInterface
	playerID  string
	interval  time.Duration

	mu          sync.Mutex
	parent      context.Context
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}

	logger logging.LoggerInterface
}

// Attach subscribes to the cache and evaluates the current contents.
// Attaching an attached supervisor is a no-op.
func (s *Supervisor) Attach(ctx context.Context) {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return
	}
	s.parent = ctx
	s.mu.Unlock()

	unsubscribe := s.store.Subscribe(func(c store.Change) { s.evaluate(c.Groups) })

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.evaluate(s.store.List())
}

// Close stops the timer and detaches from the cache, whatever the current
// predicate value.
func (s *Supervisor) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.parent = nil
	done := s.stopLocked()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if done != nil {
		<-done
	}
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancel != nil
}

// evaluate runs inside the store notification, so a stop only cancels the
// ticker and never waits for it.
func (s *Supervisor) evaluate(groups []types.Group) {
	_, active := types.ActiveGroupOf(groups, s.playerID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.parent == nil {
		return
	}

	switch {
	case active && s.cancel == nil:
		s.logger.Debugf("player %s is in an active group, starting periodic refresh", s.playerID)
		s.startLocked()
	case !active && s.cancel != nil:
		s.logger.Debugf("player %s left active groups, stopping periodic refresh", s.playerID)
		s.stopLocked()
	}
}

func (s *Supervisor) startLocked() {
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})

	s.cancel = cancel
	s.done = done

	go s.loop(ctx, done)
}

func (s *Supervisor) stopLocked() chan struct{} {
	if s.cancel == nil {
		return nil
	}

	s.cancel()
	done := s.done

	s.cancel = nil
	s.done = nil

	return done
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.refresher.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warnf("periodic refresh failed: %v", err)
			}
		}
	}
}

func NewSupervisor(
	s store.ReaderInterface,
	refresher RefresherInterface,
	playerID string,
	interval time.Duration,
	logger logging.LoggerInterface,
) *Supervisor {
	sup := new(Supervisor)

	sup.store = s
	sup.refresher = refresher
	sup.playerID = playerID
	sup.interval = interval
	if sup.interval <= 0 {
		sup.interval = DefaultInterval
	}

	sup.logger = logger

	return sup
}
