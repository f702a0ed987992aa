// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package remote

import (
	"context"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/types"
)

// ClientInterface is the membership service contract as seen by the client.
type ClientInterface interface {
	ListGroups(context.Context) ([]types.Group, error)
	CreateGroup(context.Context, httptypes.CreateGroupRequest) (types.Group, error)
	UpdateGroup(context.Context, string, types.Group) (types.Group, error)
	DeleteGroup(context.Context, string) error

	AddMember(context.Context, string, httptypes.JoinRequest) (types.Group, error)
	RemoveMember(context.Context, string, string) (types.Group, error)

	GetActiveGroup(context.Context, string) (types.Group, error)
}
