// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package groups

import (
	"fmt"
	"net/http"
	"strconv"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/types"
)

// GroupError represents a domain-specific error for group operations
type GroupError struct {
	Code     string            // Machine-readable error code
	Message  string            // Human-readable error message
	Op       string            // Operation that failed (e.g., "AddMember", "DeleteGroup")
	Metadata map[string]string // Additional context about the error

	// ExistingGroup is only set for ALREADY_IN_ACTIVE_GROUP.
	ExistingGroup *types.Group
}

func (e *GroupError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Is implements error unwrapping for errors.Is
func (e *GroupError) Is(target error) bool {
	t, ok := target.(*GroupError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Status maps the error code to the HTTP status of the wire contract.
func (e *GroupError) Status() int {
	switch e.Code {
	case httptypes.CodeAlreadyInActiveGroup, httptypes.CodeGroupFull, httptypes.CodeRoleUnavailable, httptypes.CodeStaleGroup:
		return http.StatusConflict
	case httptypes.CodeGroupNotFound, httptypes.CodeUserNotInGroup:
		return http.StatusNotFound
	case httptypes.CodeForbidden:
		return http.StatusForbidden
	case httptypes.CodeValidationError:
		return http.StatusBadRequest
	case httptypes.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrGroupNotFound        = &GroupError{Code: httptypes.CodeGroupNotFound, Message: "group not found"}
	ErrGroupFull            = &GroupError{Code: httptypes.CodeGroupFull, Message: "group is full"}
	ErrRoleUnavailable      = &GroupError{Code: httptypes.CodeRoleUnavailable, Message: "no free slot for the requested role"}
	ErrUserNotInGroup       = &GroupError{Code: httptypes.CodeUserNotInGroup, Message: "user is not a member of the group"}
	ErrForbidden            = &GroupError{Code: httptypes.CodeForbidden, Message: "only the group creator can do this"}
	ErrValidation           = &GroupError{Code: httptypes.CodeValidationError, Message: "validation failed"}
	ErrAlreadyInActiveGroup = &GroupError{Code: httptypes.CodeAlreadyInActiveGroup, Message: "user already occupies a slot in another active group"}
	ErrStaleGroup           = &GroupError{Code: httptypes.CodeStaleGroup, Message: "group changed since it was read"}
)

func NewGroupNotFoundError(groupID string, op string) *GroupError {
	return &GroupError{
		Code:    httptypes.CodeGroupNotFound,
		Message: "group not found",
		Op:      op,
		Metadata: map[string]string{
			"group_id": groupID,
		},
	}
}

func NewUserNotInGroupError(userID, groupID string, op string) *GroupError {
	return &GroupError{
		Code:    httptypes.CodeUserNotInGroup,
		Message: "user is not a member of the group",
		Op:      op,
		Metadata: map[string]string{
			"user_id":  userID,
			"group_id": groupID,
		},
	}
}

func NewAlreadyInActiveGroupError(userID string, existing types.Group, op string) *GroupError {
	return &GroupError{
		Code:    httptypes.CodeAlreadyInActiveGroup,
		Message: "user already occupies a slot in another active group",
		Op:      op,
		Metadata: map[string]string{
			"user_id":  userID,
			"group_id": existing.ID,
		},
		ExistingGroup: &existing,
	}
}

func NewNoFreeSlotError(groupID, role string, full bool, op string) *GroupError {
	code, message := httptypes.CodeRoleUnavailable, "no free slot for the requested role"
	if full {
		code, message = httptypes.CodeGroupFull, "group is full"
	}
	return &GroupError{
		Code:    code,
		Message: message,
		Op:      op,
		Metadata: map[string]string{
			"group_id": groupID,
			"role":     role,
		},
	}
}

func NewForbiddenError(userID, groupID string, op string) *GroupError {
	return &GroupError{
		Code:    httptypes.CodeForbidden,
		Message: "only the group creator can do this",
		Op:      op,
		Metadata: map[string]string{
			"user_id":  userID,
			"group_id": groupID,
		},
	}
}

func NewValidationError(field, reason string, op string) *GroupError {
	return &GroupError{
		Code:    httptypes.CodeValidationError,
		Message: "validation failed",
		Op:      op,
		Metadata: map[string]string{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewStaleGroupError(groupID string, current, sent int64, op string) *GroupError {
	return &GroupError{
		Code:    httptypes.CodeStaleGroup,
		Message: "group changed since it was read",
		Op:      op,
		Metadata: map[string]string{
			"group_id":        groupID,
			"current_version": strconv.FormatInt(current, 10),
			"sent_version":    strconv.FormatInt(sent, 10),
		},
	}
}
