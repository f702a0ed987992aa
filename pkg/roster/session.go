// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package roster

import (
	"context"
	"fmt"
	"sync"

	"github.com/canonical/roster-sync/internal/logging"
)

// Session owns every background resource of an active roster view: the
// push subscription, the liveness timer and the cache followers.
type Session struct {
	synchronizer SynchronizerInterface
	supervisor   SupervisorInterface
	followers    []ScopedInterface

	mu     sync.Mutex
	active bool

	logger logging.LoggerInterface
}

// Activate acquires all scoped resources. Activating an active session is a
// no-op, so repeated activation never duplicates subscriptions or timers.
func (s *Session) Activate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to activate roster view: %w", err)
	}

	s.active = true

	for _, f := range s.followers {
		f.Attach()
	}
	s.supervisor.Attach(ctx)
	s.synchronizer.Start(ctx)

	s.logger.Debug("roster view activated")
	return nil
}

// Deactivate releases every scoped resource whatever state they are in.
func (s *Session) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.synchronizer.Stop()
	s.supervisor.Close()
	for i := len(s.followers) - 1; i >= 0; i-- {
		s.followers[i].Close()
	}

	if s.active {
		s.logger.Debug("roster view deactivated")
	}
	s.active = false
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

func NewSession(
	synchronizer SynchronizerInterface,
	supervisor SupervisorInterface,
	logger logging.LoggerInterface,
	followers ...ScopedInterface,
) *Session {
	s := new(Session)

	s.synchronizer = synchronizer
	s.supervisor = supervisor
	s.followers = followers

	s.logger = logger

	return s
}
