// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package completion

import (
	"sync"

	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/store"
)

type State int

const (
	StateIdle State = iota
	StateCelebrating
)

func (s State) String() string {
	if s == StateCelebrating {
		return "celebrating"
	}
	return "idle"
}

type EventKind int

const (
	// Completed fires once when a group the player is in becomes full.
	Completed EventKind = iota
	// Cleared fires when the celebration ends without a Dismiss.
	Cleared
)

// Event carries the group snapshot at the moment of the transition.
type Event struct {
	Kind  EventKind
	Group types.Group
}

type Sink func(Event)

// Detector turns cache changes into one-shot "roster just became full"
// events for the local player. It never writes to the cache.
type Detector struct {
	store    store.ReaderInterface
	playerID string
	sink     Sink

	mu          sync.Mutex
	state       State
	celebrating string
	full        map[string]bool
	unsubscribe func()

	logger logging.LoggerInterface
}

// Attach records the current fullness of every cached group without firing
// and starts following cache changes. Attaching twice is a no-op.
func (d *Detector) Attach() {
	d.mu.Lock()
	if d.unsubscribe != nil {
		d.mu.Unlock()
		return
	}
	d.unsubscribe = func() {}
	d.mu.Unlock()

	unsubscribe := d.store.Subscribe(func(c store.Change) { d.observe(c.Groups) })

	d.mu.Lock()
	d.unsubscribe = unsubscribe
	d.mu.Unlock()

	d.observe(d.store.List())
}

// Close stops following the cache and forgets everything observed.
func (d *Detector) Close() {
	d.mu.Lock()
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.state = StateIdle
	d.celebrating = ""
	d.full = make(map[string]bool)
	d.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// State returns the current state and the celebrated group id, if any.
func (d *Detector) State() (State, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state, d.celebrating
}

// Dismiss ends the current celebration, the user closed the notification.
func (d *Detector) Dismiss() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = StateIdle
	d.celebrating = ""
}

// Force celebrates groupID when it is full and the player occupies a slot
// in it, without waiting for a transition. Returns false otherwise.
func (d *Detector) Force(groupID string) bool {
	g, ok := d.store.Get(groupID)
	if !ok || !g.IsFull() || !g.HasOccupant(d.playerID) {
		return false
	}

	d.mu.Lock()
	d.state = StateCelebrating
	d.celebrating = g.ID
	d.mu.Unlock()

	d.emit([]Event{{Kind: Completed, Group: g}})
	return true
}

func (d *Detector) observe(groups []types.Group) {
	d.mu.Lock()

	events := make([]Event, 0, 1)
	seen := make(map[string]bool, len(groups))

	if d.state == StateCelebrating {
		if ev, cleared := d.checkCelebrated(groups); cleared {
			events = append(events, ev)
		}
	}

	for _, g := range groups {
		seen[g.ID] = true

		full := g.IsFull()
		was, known := d.full[g.ID]
		d.full[g.ID] = full

		if !known || was || !full {
			continue
		}
		if !g.HasOccupant(d.playerID) {
			continue
		}
		if d.state != StateIdle {
			d.logger.Debugf("group %s completed while %s is celebrated", g.ID, d.celebrating)
			continue
		}

		d.state = StateCelebrating
		d.celebrating = g.ID
		events = append(events, Event{Kind: Completed, Group: g})
	}

	for id := range d.full {
		if !seen[id] {
			delete(d.full, id)
		}
	}

	d.mu.Unlock()

	d.emit(events)
}

// checkCelebrated must be called with mu held.
func (d *Detector) checkCelebrated(groups []types.Group) (Event, bool) {
	for _, g := range groups {
		if g.ID != d.celebrating {
			continue
		}
		if g.IsFull() && g.HasOccupant(d.playerID) {
			return Event{}, false
		}
		d.state = StateIdle
		d.celebrating = ""
		return Event{Kind: Cleared, Group: g}, true
	}

	ev := Event{Kind: Cleared, Group: types.Group{ID: d.celebrating}}
	d.state = StateIdle
	d.celebrating = ""
	return ev, true
}

func (d *Detector) emit(events []Event) {
	if d.sink == nil {
		return
	}
	for _, ev := range events {
		d.sink(ev)
	}
}

func NewDetector(s store.ReaderInterface, playerID string, sink Sink, logger logging.LoggerInterface) *Detector {
	d := new(Detector)

	d.store = s
	d.playerID = playerID
	d.sink = sink
	d.full = make(map[string]bool)

	d.logger = logger

	return d
}
