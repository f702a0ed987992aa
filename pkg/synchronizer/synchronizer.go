// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package synchronizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/push"
	"github.com/canonical/roster-sync/pkg/store"
)

const (
	refreshKey = "refresh"
	component  = "roster_api"
)

var (
	_ SynchronizerInterface = (*Synchronizer)(nil)
	_ push.HandlerInterface = (*Synchronizer)(nil)
)

// Synchronizer feeds the store from the pull and push transports.
// It holds no business logic.
type Synchronizer struct {
	store      store.StoreInterface
	puller     PullerInterface
	subscriber SubscriberInterface

	flight  singleflight.Group
	limiter *rate.Limiter

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Start triggers a background full pull and starts the push subscription.
// Either may land first. Calling Start while started is a no-op.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		// failures are logged by Refresh, the push init or the next tick recovers
		_ = s.Refresh(ctx)
	}()

	if s.subscriber == nil {
		s.logger.Info("push channel not configured, relying on pulls only")
		return
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.subscriber.Run(ctx, s)
	}()
}

// Refresh performs a full pull and replaces the cache contents.
// Concurrent calls share the same request.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "synchronizer.Synchronizer.Refresh")
	defer span.End()

	_, err, shared := s.flight.Do(refreshKey, func() (interface{}, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("refresh not allowed: %w", err)
		}

		groups, err := s.puller.ListGroups(ctx)
		if err != nil {
			s.setAvailability(0)
			return nil, err
		}
		s.setAvailability(1)

		s.store.ReplaceAll(groups)
		return nil, nil
	})

	if err != nil {
		s.logger.Errorf("full roster pull failed: %v", err)
		return err
	}

	if shared {
		s.logger.Debug("roster pull coalesced with an in-flight request")
	}
	return nil
}

// Stop releases the push subscription and waits for in-flight work.
// Safe to call more than once.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	s.running.Wait()
}

func (s *Synchronizer) OnInit(groups []types.Group) {
	s.logger.Debugf("push init with %d groups", len(groups))
	s.store.ReplaceAll(groups)
}

func (s *Synchronizer) OnUpsert(group types.Group) {
	s.store.Upsert(group)
}

func (s *Synchronizer) OnDelete(id string) {
	s.store.Remove(id)
}

func (s *Synchronizer) OnConnected() {
	s.logger.Info("push channel connected")
}

// OnDisconnected leaves the cache untouched, the next init rehydrates it.
func (s *Synchronizer) OnDisconnected(err error) {
	s.logger.Warnf("push channel disconnected: %v", err)
}

func (s *Synchronizer) setAvailability(v float64) {
	if err := s.monitor.SetDependencyAvailability(map[string]string{"component": component}, v); err != nil {
		s.logger.Debugf("error setting dependency availability: %v", err)
	}
}

// NewSynchronizer wires the transports to the store. subscriber may be nil,
// in which case the cache is only fed by pulls. minPullInterval paces full
// pulls, zero disables pacing.
func NewSynchronizer(
	s store.StoreInterface,
	puller PullerInterface,
	subscriber SubscriberInterface,
	minPullInterval time.Duration,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Synchronizer {
	sy := new(Synchronizer)

	sy.store = s
	sy.puller = puller
	sy.subscriber = subscriber

	limit := rate.Inf
	if minPullInterval > 0 {
		limit = rate.Every(minPullInterval)
	}
	sy.limiter = rate.NewLimiter(limit, 1)

	sy.tracer = tracer
	sy.monitor = monitor
	sy.logger = logger

	return sy
}
