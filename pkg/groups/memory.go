// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package groups

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canonical/roster-sync/internal/types"
)

var _ DatabaseInterface = (*Storage)(nil)

// Storage is an in-memory roster store. A single lock covers every group so
// the single-active-group check and the slot write happen atomically.
type Storage struct {
	mu     sync.RWMutex
	groups map[string]*types.Group
}

func (m *Storage) ListGroups(ctx context.Context) ([]types.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groups := make([]types.Group, 0, len(m.groups))
	for _, group := range m.groups {
		groups = append(groups, group.Clone())
	}
	return types.SortByID(groups), nil
}

func (m *Storage) GetGroup(ctx context.Context, id string) (types.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	group, ok := m.groups[id]
	if !ok {
		return types.Group{}, NewGroupNotFoundError(id, "GetGroup")
	}
	return group.Clone(), nil
}

// CreateGroup stores group under a new id. When creator is set it takes the
// first free slot of joinRole in the same step.
func (m *Storage) CreateGroup(ctx context.Context, group types.Group, creator *types.Player, joinRole string) (types.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := group.Clone()
	g.ID = uuid.New().String()
	g.Status = types.StatusActive

	if creator != nil {
		if existing, ok := m.activeGroupOf(creator.ID); ok {
			return types.Group{}, NewAlreadyInActiveGroupError(creator.ID, existing.Clone(), "CreateGroup")
		}

		idx := g.FreeSlot(joinRole)
		if idx < 0 {
			return types.Group{}, NewNoFreeSlotError(g.ID, joinRole, false, "CreateGroup")
		}
		p := *creator
		g.Slots[idx].Occupant = &p
	}

	m.touch(&g)
	m.groups[g.ID] = &g

	return g.Clone(), nil
}

// UpdateGroup applies fn to a copy of the group and stores it if fn succeeds.
func (m *Storage) UpdateGroup(ctx context.Context, id string, fn func(*types.Group) error) (types.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.groups[id]
	if !ok {
		return types.Group{}, NewGroupNotFoundError(id, "UpdateGroup")
	}

	g := existing.Clone()
	if err := fn(&g); err != nil {
		return types.Group{}, err
	}

	g.ID = id
	m.touch(&g)
	m.groups[id] = &g

	return g.Clone(), nil
}

func (m *Storage) DeleteGroup(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[id]; !ok {
		return NewGroupNotFoundError(id, "DeleteGroup")
	}

	delete(m.groups, id)
	return nil
}

// AddMember seats player in groupID. A player already seated in the group is
// moved to a free slot of role, which is how role changes are expressed.
func (m *Storage) AddMember(ctx context.Context, groupID string, player types.Player, role string) (types.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[groupID]
	if !ok {
		return types.Group{}, NewGroupNotFoundError(groupID, "AddMember")
	}
	if !g.IsActive() {
		return types.Group{}, NewValidationError("status", "group is not active", "AddMember")
	}

	current := g.SlotOf(player.ID)
	if current >= 0 && (role == "" || g.Slots[current].Role == role) {
		return g.Clone(), nil
	}

	if current < 0 {
		if existing, ok := m.activeGroupOf(player.ID); ok {
			return types.Group{}, NewAlreadyInActiveGroupError(player.ID, existing.Clone(), "AddMember")
		}
	}

	idx := g.FreeSlot(role)
	if idx < 0 {
		return types.Group{}, NewNoFreeSlotError(groupID, role, g.IsFull(), "AddMember")
	}

	if current >= 0 {
		g.Slots[current].Occupant = nil
	}
	p := player
	g.Slots[idx].Occupant = &p
	m.touch(g)

	return g.Clone(), nil
}

func (m *Storage) RemoveMember(ctx context.Context, groupID, playerID string) (types.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[groupID]
	if !ok {
		return types.Group{}, NewGroupNotFoundError(groupID, "RemoveMember")
	}

	idx := g.SlotOf(playerID)
	if idx < 0 {
		return types.Group{}, NewUserNotInGroupError(playerID, groupID, "RemoveMember")
	}

	g.Slots[idx].Occupant = nil
	m.touch(g)

	return g.Clone(), nil
}

func (m *Storage) GetActiveGroup(ctx context.Context, playerID string) (types.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.activeGroupOf(playerID)
	if !ok {
		return types.Group{}, NewUserNotInGroupError(playerID, "", "GetActiveGroup")
	}
	return g.Clone(), nil
}

// activeGroupOf must be called with mu held.
func (m *Storage) activeGroupOf(playerID string) (*types.Group, bool) {
	for _, g := range m.groups {
		if g.IsActive() && g.HasOccupant(playerID) {
			return g, true
		}
	}
	return nil, false
}

func (m *Storage) touch(g *types.Group) {
	g.Version++
	g.UpdatedAt = time.Now().UTC()
}

func NewStorage() *Storage {
	return &Storage{
		groups: make(map[string]*types.Group),
	}
}
