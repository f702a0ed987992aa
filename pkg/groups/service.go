// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package groups

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/push"
)

var _ ServiceInterface = (*Service)(nil)

type Service struct {
	db        DatabaseInterface
	publisher PublisherInterface
	validate  *validator.Validate

	// mu orders commits and their broadcasts.
	mu sync.Mutex

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (s *Service) ListGroups(ctx context.Context) ([]types.Group, error) {
	ctx, span := s.tracer.Start(ctx, "groups.Service.ListGroups")
	defer span.End()

	return s.db.ListGroups(ctx)
}

func (s *Service) GetGroup(ctx context.Context, id string) (types.Group, error) {
	ctx, span := s.tracer.Start(ctx, "groups.Service.GetGroup")
	defer span.End()

	return s.db.GetGroup(ctx, id)
}

func (s *Service) CreateGroup(ctx context.Context, actor string, req httptypes.CreateGroupRequest) (types.Group, error) {
	ctx, span := s.tracer.Start(ctx, "groups.Service.CreateGroup")
	defer span.End()

	if req.CreatorID == "" {
		req.CreatorID = actor
	}
	if actor != "" && req.CreatorID != actor {
		return types.Group{}, NewForbiddenError(actor, "", "CreateGroup")
	}
	if err := s.validate.Struct(req); err != nil {
		return types.Group{}, NewValidationError("body", err.Error(), "CreateGroup")
	}

	group := types.Group{
		Name:         req.Name,
		ActivityType: req.ActivityType,
		CreatorID:    req.CreatorID,
		Description:  req.Description,
		Slots:        make([]types.Slot, 0, len(req.Roles)),
	}
	for _, role := range req.Roles {
		group.Slots = append(group.Slots, types.Slot{Role: role})
	}

	var creator *types.Player
	if req.JoinRole != "" {
		creator = &types.Player{ID: req.CreatorID, Nick: req.CreatorNick}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.db.CreateGroup(ctx, group, creator, req.JoinRole)
	if err != nil {
		return types.Group{}, err
	}

	s.publisher.Publish(push.EventCreated, created)
	return created, nil
}

// UpdateGroup replaces the editable fields and, when slots are sent, the slot
// layout. Occupants can only be kept or dropped, seating a player goes
// through AddMember. A layout that drops a seated player must carry the
// version it was built from, so a stale copy never evicts anyone.
func (s *Service) UpdateGroup(ctx context.Context, actor, id string, group types.Group) (types.Group, error) {
	ctx, span := s.tracer.Start(ctx, "groups.Service.UpdateGroup")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.db.UpdateGroup(ctx, id, func(g *types.Group) error {
		if g.CreatorID != actor {
			return NewForbiddenError(actor, id, "UpdateGroup")
		}
		if group.Version != 0 && group.Version != g.Version {
			return NewStaleGroupError(id, g.Version, group.Version, "UpdateGroup")
		}

		status := g.Status
		if group.Status != "" {
			parsed, err := types.ParseLifecycleStatus(string(group.Status))
			if err != nil {
				return NewValidationError("status", err.Error(), "UpdateGroup")
			}
			if parsed == types.StatusActive && !g.IsActive() {
				return NewValidationError("status", "a closed group cannot be reopened", "UpdateGroup")
			}
			status = parsed
		}

		if len(group.Slots) > 0 {
			if err := validateLayout(*g, group); err != nil {
				return err
			}
			g.Slots = group.Clone().Slots
		}

		if group.Name != "" {
			g.Name = group.Name
		}
		if group.ActivityType != "" {
			g.ActivityType = group.ActivityType
		}
		if group.Description != "" {
			g.Description = group.Description
		}
		g.Status = status
		return nil
	})
	if err != nil {
		return types.Group{}, err
	}

	s.publisher.Publish(push.EventUpdated, updated)
	return updated, nil
}

// validateLayout checks a new slot layout against the stored group.
func validateLayout(stored, group types.Group) error {
	seated := make(map[string]bool, len(group.Slots))

	for _, slot := range group.Slots {
		if slot.Role == "" {
			return NewValidationError("slots", "every slot needs a role", "UpdateGroup")
		}
		if slot.Occupant == nil {
			continue
		}
		if !stored.HasOccupant(slot.Occupant.ID) {
			return NewValidationError("slots", fmt.Sprintf("%s is not a member", slot.Occupant.ID), "UpdateGroup")
		}
		if seated[slot.Occupant.ID] {
			return NewValidationError("slots", fmt.Sprintf("%s occupies more than one slot", slot.Occupant.ID), "UpdateGroup")
		}
		seated[slot.Occupant.ID] = true
	}

	if group.Version != 0 {
		return nil
	}
	for _, slot := range stored.Slots {
		if slot.Occupant != nil && !seated[slot.Occupant.ID] {
			return NewValidationError("slots", fmt.Sprintf("%s would be dropped without a version", slot.Occupant.ID), "UpdateGroup")
		}
	}
	return nil
}

func (s *Service) DeleteGroup(ctx context.Context, actor, id string) error {
	ctx, span := s.tracer.Start(ctx, "groups.Service.DeleteGroup")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.db.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if g.CreatorID != actor {
		return NewForbiddenError(actor, id, "DeleteGroup")
	}

	if err := s.db.DeleteGroup(ctx, id); err != nil {
		return err
	}

	s.publisher.Publish(push.EventDeleted, map[string]string{"groupId": id})
	return nil
}

// AddMember seats a player. Only the player themselves may join.
func (s *Service) AddMember(ctx context.Context, actor, groupID string, req httptypes.JoinRequest) (types.Group, error) {
	ctx, span := s.tracer.Start(ctx, "groups.Service.AddMember")
	defer span.End()

	if req.PlayerID == "" {
		req.PlayerID = actor
	}
	if err := s.validate.Struct(req); err != nil {
		return types.Group{}, NewValidationError("body", err.Error(), "AddMember")
	}
	if actor != "" && actor != req.PlayerID {
		return types.Group{}, NewForbiddenError(actor, groupID, "AddMember")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.db.AddMember(ctx, groupID, types.Player{ID: req.PlayerID, Nick: req.Nick}, req.Role)
	if err != nil {
		var gErr *GroupError
		if errors.As(err, &gErr) && gErr.Code == httptypes.CodeAlreadyInActiveGroup {
			s.logger.Debugf("join of %s into %s refused: %v", req.PlayerID, groupID, err)
		}
		return types.Group{}, err
	}

	s.publisher.Publish(push.EventUpdated, g)
	return g, nil
}

// RemoveMember frees the player's slot. Players may leave, the creator may
// remove anyone.
func (s *Service) RemoveMember(ctx context.Context, actor, groupID, playerID string) (types.Group, error) {
	ctx, span := s.tracer.Start(ctx, "groups.Service.RemoveMember")
	defer span.End()

	if actor != "" && actor != playerID {
		g, err := s.db.GetGroup(ctx, groupID)
		if err != nil {
			return types.Group{}, err
		}
		if g.CreatorID != actor {
			return types.Group{}, NewForbiddenError(actor, groupID, "RemoveMember")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.db.RemoveMember(ctx, groupID, playerID)
	if err != nil {
		return types.Group{}, err
	}

	s.publisher.Publish(push.EventUpdated, g)
	return g, nil
}

func (s *Service) GetActiveGroup(ctx context.Context, playerID string) (types.Group, error) {
	ctx, span := s.tracer.Start(ctx, "groups.Service.GetActiveGroup")
	defer span.End()

	return s.db.GetActiveGroup(ctx, playerID)
}

func NewService(
	db DatabaseInterface,
	publisher PublisherInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Service {
	s := new(Service)

	s.db = db
	s.publisher = publisher
	s.validate = validator.New(validator.WithRequiredStructEnabled())

	s.monitor = monitor
	s.tracer = tracer
	s.logger = logger

	return s
}
