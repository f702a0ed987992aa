// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package store

import (
	"slices"
	"sync"

	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/types"
)

var _ StoreInterface = (*Store)(nil)

// Store keeps the last known snapshot of every group.
//
// Writes replace whole snapshots, never individual fields. Subscribers are
// called synchronously, in write order, and only when the roster view
// changed; they must not write back into the store from the callback.
type Store struct {
	mu     sync.RWMutex
	groups map[string]types.Group

	// dispatch serializes notification so subscribers see writes in order
	dispatch sync.Mutex

	subsMu sync.Mutex
	subs   map[int]func(Change)
	nextID int

	versionGuard bool

	logger logging.LoggerInterface
}

type Option func(*Store)

// WithVersionGuard rejects upserts carrying a lower non-zero Version than the
// cached snapshot. Without it the last physical write wins.
func WithVersionGuard() Option {
	return func(s *Store) {
		s.versionGuard = true
	}
}

func (s *Store) ReplaceAll(groups []types.Group) {
	next := make(map[string]types.Group, len(groups))
	for i := range groups {
		g := groups[i]
		if !g.Valid() {
			s.logger.Warnf("dropping malformed group snapshot id=%q slots=%d", g.ID, len(g.Slots))
			continue
		}
		next[g.ID] = g.Clone()
	}

	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	changed := !sameMaps(s.groups, next)
	s.groups = next
	snapshot := s.snapshot()
	s.mu.Unlock()

	if changed {
		s.notify(snapshot)
	}
}

func (s *Store) Upsert(group types.Group) {
	if !group.Valid() {
		s.logger.Warnf("dropping malformed group snapshot id=%q slots=%d", group.ID, len(group.Slots))
		return
	}

	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	existing, ok := s.groups[group.ID]
	if ok && s.versionGuard && group.Version != 0 && existing.Version > group.Version {
		s.mu.Unlock()
		s.logger.Debugf("ignoring stale snapshot of group %s: version %d < %d", group.ID, group.Version, existing.Version)
		return
	}

	changed := !ok || !types.SameRoster(existing, group)
	s.groups[group.ID] = group.Clone()
	snapshot := s.snapshot()
	s.mu.Unlock()

	if changed {
		s.notify(snapshot)
	}
}

func (s *Store) Remove(id string) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	if _, ok := s.groups[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.groups, id)
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Store) Get(id string) (types.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return types.Group{}, false
	}
	return g.Clone(), true
}

func (s *Store) List() []types.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot()
}

// Subscribe registers fn for change notifications and returns the function
// that removes it. Calling the returned function more than once is safe.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) notify(groups []types.Group) {
	s.subsMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.subsMu.Unlock()

	slices.Sort(ids)

	for _, id := range ids {
		s.subsMu.Lock()
		fn, ok := s.subs[id]
		s.subsMu.Unlock()

		if ok {
			fn(Change{Groups: cloneAll(groups)})
		}
	}
}

// snapshot must be called with mu held.
func (s *Store) snapshot() []types.Group {
	groups := make([]types.Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g.Clone())
	}
	return types.SortByID(groups)
}

func sameMaps(a, b map[string]types.Group) bool {
	if len(a) != len(b) {
		return false
	}
	for id, ga := range a {
		gb, ok := b[id]
		if !ok || !types.SameRoster(ga, gb) {
			return false
		}
	}
	return true
}

func cloneAll(groups []types.Group) []types.Group {
	c := make([]types.Group, len(groups))
	for i := range groups {
		c[i] = groups[i].Clone()
	}
	return c
}

func NewStore(logger logging.LoggerInterface, opts ...Option) *Store {
	s := new(Store)

	s.groups = make(map[string]types.Group)
	s.subs = make(map[int]func(Change))
	s.logger = logger

	for _, opt := range opts {
		opt(s)
	}

	return s
}
