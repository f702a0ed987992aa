// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package types

import (
	"encoding/json"
	"errors"
	"sort"
	"time"
)

type LifecycleStatus string

const (
	StatusActive    LifecycleStatus = "Active"
	StatusCompleted LifecycleStatus = "Completed"
	StatusCancelled LifecycleStatus = "Cancelled"
)

var ErrInvalidStatus = errors.New("invalid lifecycle status")

// Player is referenced by slots through its stable ID, Nick is display only.
type Player struct {
	ID   string `json:"id"`
	Nick string `json:"nick,omitempty"`
}

// Slot is one role position within a Group.
type Slot struct {
	Role     string  `json:"role"`
	Occupant *Player `json:"user"`
}

// Group represents an activity roster.
type Group struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	ActivityType string          `json:"activityType"`
	Status       LifecycleStatus `json:"status"`
	CreatorID    string          `json:"creatorId"`
	Description  string          `json:"description,omitempty"`
	Slots        []Slot          `json:"slots"`
	Version      int64           `json:"version,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt,omitempty"`
}

// UnmarshalJSON accepts `_id` as an alias of `id`.
func (g *Group) UnmarshalJSON(data []byte) error {
	type plain Group
	aux := struct {
		*plain
		LegacyID string `json:"_id"`
	}{plain: (*plain)(g)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if g.ID == "" {
		g.ID = aux.LegacyID
	}
	return nil
}

// ParseLifecycleStatus converts a string to a LifecycleStatus.
func ParseLifecycleStatus(s string) (LifecycleStatus, error) {
	switch LifecycleStatus(s) {
	case StatusActive, "":
		return StatusActive, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Valid reports whether the snapshot is well formed enough to be cached.
func (g *Group) Valid() bool {
	return g != nil && g.ID != "" && len(g.Slots) > 0
}

func (g *Group) IsActive() bool {
	return g.Status == StatusActive
}

func (g *Group) Capacity() int {
	return len(g.Slots)
}

func (g *Group) OccupiedCount() int {
	n := 0
	for _, s := range g.Slots {
		if s.Occupant != nil {
			n++
		}
	}
	return n
}

// IsFull is derived from the slots on every call and never stored.
func (g *Group) IsFull() bool {
	return g.Capacity() > 0 && g.OccupiedCount() == g.Capacity()
}

// SlotOf returns the index of the slot occupied by playerID, or -1.
func (g *Group) SlotOf(playerID string) int {
	if playerID == "" {
		return -1
	}
	for i, s := range g.Slots {
		if s.Occupant != nil && s.Occupant.ID == playerID {
			return i
		}
	}
	return -1
}

func (g *Group) HasOccupant(playerID string) bool {
	return g.SlotOf(playerID) >= 0
}

// FreeSlot returns the first empty slot for role, or the first empty slot
// of any role when role is empty. -1 when none is available.
func (g *Group) FreeSlot(role string) int {
	for i, s := range g.Slots {
		if s.Occupant != nil {
			continue
		}
		if role == "" || s.Role == role {
			return i
		}
	}
	return -1
}

func (g *Group) Clone() Group {
	c := *g
	if g.Slots != nil {
		c.Slots = make([]Slot, len(g.Slots))
		for i, s := range g.Slots {
			c.Slots[i] = s
			if s.Occupant != nil {
				p := *s.Occupant
				c.Slots[i].Occupant = &p
			}
		}
	}
	return c
}

func occupantID(s Slot) string {
	if s.Occupant == nil {
		return ""
	}
	return s.Occupant.ID
}

// SameRoster compares two snapshots of a group by identity, lifecycle status
// and the role and occupant of each slot position. Other fields are ignored.
func SameRoster(a, b Group) bool {
	if a.ID != b.ID || a.Status != b.Status || len(a.Slots) != len(b.Slots) {
		return false
	}
	for i := range a.Slots {
		if a.Slots[i].Role != b.Slots[i].Role {
			return false
		}
		if (a.Slots[i].Occupant == nil) != (b.Slots[i].Occupant == nil) {
			return false
		}
		if occupantID(a.Slots[i]) != occupantID(b.Slots[i]) {
			return false
		}
	}
	return true
}

// SameRosters applies SameRoster pairwise after sorting both lists by id.
func SameRosters(a, b []Group) bool {
	if len(a) != len(b) {
		return false
	}

	as := SortByID(a)
	bs := SortByID(b)
	for i := range as {
		if !SameRoster(as[i], bs[i]) {
			return false
		}
	}
	return true
}

// SortByID returns a sorted copy, the input is left untouched.
func SortByID(groups []Group) []Group {
	sorted := make([]Group, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

// SortActiveFirst moves the Active group playerID belongs to in front,
// keeping the relative order of the rest.
func SortActiveFirst(groups []Group, playerID string) []Group {
	sorted := make([]Group, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool {
		return isActiveMember(sorted[i], playerID) && !isActiveMember(sorted[j], playerID)
	})
	return sorted
}

// ActiveGroupOf returns the first Active group playerID occupies a slot in.
func ActiveGroupOf(groups []Group, playerID string) (Group, bool) {
	for _, g := range groups {
		if isActiveMember(g, playerID) {
			return g, true
		}
	}
	return Group{}, false
}

func isActiveMember(g Group, playerID string) bool {
	return g.IsActive() && g.HasOccupant(playerID)
}
