// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package membership

import (
	"fmt"
	"sync"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/types"
)

// CloseReason tells why a pending conflict went away.
type CloseReason string

const (
	ReasonOpen         CloseReason = ""
	ReasonConfirmed    CloseReason = "confirmed"
	ReasonDismissed    CloseReason = "dismissed"
	ReasonExistingGone CloseReason = "existing_group_removed"
	ReasonLeftExisting CloseReason = "left_existing_group"
	ReasonSuperseded   CloseReason = "superseded"
)

// Conflict is returned by Join when the player already occupies a slot in
// another Active group. It stays pending until confirmed, dismissed or
// made moot by a cache change.
type Conflict struct {
	PlayerID    string
	Existing    types.Group
	Destination string
	DesiredRole string

	// Create is set when the conflict was raised by CreateGroup, Confirm then
	// issues the creation again instead of a join.
	Create *httptypes.CreateGroupRequest

	// destinationKnown records whether the destination was cached when the
	// conflict was raised, a later absence then means it was deleted.
	destinationKnown bool
	existingSeen     bool

	once   sync.Once
	mu     sync.Mutex
	reason CloseReason
	done   chan struct{}
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("player %s already occupies a slot in active group %s", c.PlayerID, c.Existing.ID)
}

// Is lets errors.Is(err, ErrAlreadyInActiveGroup) match a conflict.
func (c *Conflict) Is(target error) bool {
	t, ok := target.(*MembershipError)
	return ok && t.Code == ErrCodeConflict
}

func (c *Conflict) Occupied() int {
	return c.Existing.OccupiedCount()
}

func (c *Conflict) Capacity() int {
	return c.Existing.Capacity()
}

// Done is closed once the conflict is no longer pending.
func (c *Conflict) Done() <-chan struct{} {
	return c.done
}

func (c *Conflict) Reason() CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reason
}

func (c *Conflict) close(reason CloseReason) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()

		close(c.done)
	})
}

// moot reports whether the cache contents make the conflict irrelevant.
// The existing group only counts once it has been seen holding the player,
// so a stale cache never closes a fresh conflict. Callers serialize access.
func (c *Conflict) moot(groups []types.Group) (CloseReason, bool) {
	for _, g := range groups {
		if g.ID != c.Existing.ID {
			continue
		}
		if g.IsActive() && g.HasOccupant(c.PlayerID) {
			c.existingSeen = true
			return ReasonOpen, false
		}
		if c.existingSeen {
			return ReasonLeftExisting, true
		}
		return ReasonOpen, false
	}

	if c.existingSeen {
		return ReasonExistingGone, true
	}
	return ReasonOpen, false
}

func newConflict(playerID, destination, role string, existing types.Group, destinationKnown bool, create *httptypes.CreateGroupRequest) *Conflict {
	c := new(Conflict)

	c.PlayerID = playerID
	c.Existing = existing
	c.Destination = destination
	c.DesiredRole = role
	c.destinationKnown = destinationKnown
	if create != nil {
		req := *create
		req.Roles = append([]string(nil), create.Roles...)
		c.Create = &req
	}
	c.done = make(chan struct{})

	return c
}
