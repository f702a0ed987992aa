// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package types

import (
	"encoding/json"

	"github.com/canonical/roster-sync/internal/types"
)

// Error codes shared by the membership service and its clients.
const (
	CodeAlreadyInActiveGroup = "ALREADY_IN_ACTIVE_GROUP"
	CodeGroupFull            = "GROUP_FULL"
	CodeRoleUnavailable      = "ROLE_UNAVAILABLE"
	CodeGroupNotFound        = "GROUP_NOT_FOUND"
	CodeUserNotInGroup       = "USER_NOT_IN_GROUP"
	CodeForbidden            = "FORBIDDEN"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeStaleGroup           = "STALE_GROUP"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// ActorHeader carries the id of the player on whose behalf a request is made.
const ActorHeader = "X-Player-Id"

type Response struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Status  int         `json:"status"`
}

type ErrorResponse struct {
	Status        int          `json:"status"`
	Code          string       `json:"code"`
	Message       string       `json:"message"`
	ExistingGroup *types.Group `json:"existingGroup,omitempty"`
}

type CreateGroupRequest struct {
	Name         string   `json:"name" validate:"required,max=128"`
	ActivityType string   `json:"activityType" validate:"max=64"`
	Template     string   `json:"template,omitempty"`
	Roles        []string `json:"roles" validate:"required,min=1,max=64,dive,required"`
	CreatorID    string   `json:"creatorId" validate:"required"`
	CreatorNick  string   `json:"creatorNick,omitempty"`
	JoinRole     string   `json:"joinRole,omitempty"`
	Description  string   `json:"description,omitempty"`
}

type JoinRequest struct {
	PlayerID string `json:"playerId" validate:"required"`
	Nick     string `json:"nick,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UnwrapData returns the `data` member of a {"data": ...} envelope,
// or the body itself when it is not wrapped.
func UnwrapData(body []byte) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return body
}
