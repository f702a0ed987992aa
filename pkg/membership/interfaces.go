// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package membership

import (
	"context"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/types"
)

// RemoteInterface is the part of the membership service the workflow calls.
type RemoteInterface interface {
	CreateGroup(context.Context, httptypes.CreateGroupRequest) (types.Group, error)
	UpdateGroup(context.Context, string, types.Group) (types.Group, error)
	DeleteGroup(context.Context, string) error

	AddMember(context.Context, string, httptypes.JoinRequest) (types.Group, error)
	RemoveMember(context.Context, string, string) (types.Group, error)

	GetActiveGroup(context.Context, string) (types.Group, error)
}

type WorkflowInterface interface {
	Join(context.Context, string, string, string) (types.Group, error)
	Leave(context.Context, string, string) (types.Group, error)
	ChangeRole(context.Context, string, string, string) (types.Group, error)

	Pending() *Conflict
	Confirm(context.Context, *Conflict) (types.Group, error)
	Dismiss(*Conflict)

	CreateGroup(context.Context, httptypes.CreateGroupRequest) (types.Group, error)
	AddSlot(context.Context, string, string) (types.Group, error)
	RemoveSlot(context.Context, string, int) (types.Group, error)
	SetSlotRole(context.Context, string, int, string) (types.Group, error)
	Kick(context.Context, string, string) (types.Group, error)
	DeleteGroup(context.Context, string) error
}
