// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package groups

import (
	"context"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/types"
)

// ServiceInterface is the membership service. The first string argument of
// mutating calls is the acting player.
type ServiceInterface interface {
	ListGroups(context.Context) ([]types.Group, error)
	GetGroup(context.Context, string) (types.Group, error)
	CreateGroup(context.Context, string, httptypes.CreateGroupRequest) (types.Group, error)
	UpdateGroup(context.Context, string, string, types.Group) (types.Group, error)
	DeleteGroup(context.Context, string, string) error

	AddMember(context.Context, string, string, httptypes.JoinRequest) (types.Group, error)
	RemoveMember(context.Context, string, string, string) (types.Group, error)

	GetActiveGroup(context.Context, string) (types.Group, error)
}

// DatabaseInterface keeps the rosters. Every call is atomic with respect to
// the single-active-group invariant.
type DatabaseInterface interface {
	ListGroups(context.Context) ([]types.Group, error)
	GetGroup(context.Context, string) (types.Group, error)
	CreateGroup(context.Context, types.Group, *types.Player, string) (types.Group, error)
	UpdateGroup(context.Context, string, func(*types.Group) error) (types.Group, error)
	DeleteGroup(context.Context, string) error

	AddMember(context.Context, string, types.Player, string) (types.Group, error)
	RemoveMember(context.Context, string, string) (types.Group, error)

	GetActiveGroup(context.Context, string) (types.Group, error)
}

// PublisherInterface fans roster changes out to push subscribers.
type PublisherInterface interface {
	Publish(string, interface{})
}

// ListerInterface answers roster_init requests on the push channel.
type ListerInterface interface {
	ListGroups(context.Context) ([]types.Group, error)
}
