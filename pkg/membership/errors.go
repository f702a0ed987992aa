// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package membership

import (
	"errors"
	"fmt"
	"net/http"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/pkg/remote"
)

// Error codes for membership errors. Service codes are reused as is.
const (
	ErrCodeConflict          = httptypes.CodeAlreadyInActiveGroup
	ErrCodeGroupFull         = httptypes.CodeGroupFull
	ErrCodeRoleUnavailable   = httptypes.CodeRoleUnavailable
	ErrCodeGroupNotFound     = httptypes.CodeGroupNotFound
	ErrCodeNotMember         = httptypes.CodeUserNotInGroup
	ErrCodeForbidden         = httptypes.CodeForbidden
	ErrCodeValidation        = httptypes.CodeValidationError
	ErrCodeStale             = httptypes.CodeStaleGroup
	ErrCodeDestinationGone   = "DESTINATION_GONE"
	ErrCodeDestinationFull   = "DESTINATION_FULL"
	ErrCodeNoPendingConflict = "NO_PENDING_CONFLICT"
)

// MembershipError is a domain failure returned by the workflow.
type MembershipError struct {
	Code       string
	Message    string
	Op         string
	Metadata   map[string]string
	Underlying error
}

func (e *MembershipError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *MembershipError) Is(target error) bool {
	t, ok := target.(*MembershipError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *MembershipError) Unwrap() error {
	return e.Underlying
}

var (
	ErrGroupNotFound        = &MembershipError{Code: ErrCodeGroupNotFound, Message: "group not found"}
	ErrGroupFull            = &MembershipError{Code: ErrCodeGroupFull, Message: "group is full"}
	ErrRoleUnavailable      = &MembershipError{Code: ErrCodeRoleUnavailable, Message: "no free slot for the requested role"}
	ErrNotMember            = &MembershipError{Code: ErrCodeNotMember, Message: "player does not occupy a slot in the group"}
	ErrForbidden            = &MembershipError{Code: ErrCodeForbidden, Message: "only the group creator can do this"}
	ErrValidation           = &MembershipError{Code: ErrCodeValidation, Message: "invalid request"}
	ErrDestinationGone      = &MembershipError{Code: ErrCodeDestinationGone, Message: "destination group no longer exists"}
	ErrDestinationFull      = &MembershipError{Code: ErrCodeDestinationFull, Message: "destination group has no free slot"}
	ErrNoPendingConflict    = &MembershipError{Code: ErrCodeNoPendingConflict, Message: "conflict is no longer pending"}
	ErrAlreadyInActiveGroup = &MembershipError{Code: ErrCodeConflict, Message: "player already occupies a slot in another active group"}
	ErrStale                = &MembershipError{Code: ErrCodeStale, Message: "group changed since it was cached, refresh and retry"}
)

func newError(base *MembershipError, op string, metadata map[string]string, underlying error) *MembershipError {
	return &MembershipError{
		Code:       base.Code,
		Message:    base.Message,
		Op:         op,
		Metadata:   metadata,
		Underlying: underlying,
	}
}

// Kind discriminates the outcome of a workflow operation.
type Kind int

const (
	KindSuccess Kind = iota
	KindConflict
	KindNotFound
	KindForbidden
	KindNotMember
	KindFull
	KindDestinationGone
	KindDestinationFull
	KindValidation
	// KindStale means the cached snapshot was outdated, the caller should
	// refresh before retrying.
	KindStale
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindNotMember:
		return "not_member"
	case KindFull:
		return "full"
	case KindDestinationGone:
		return "destination_gone"
	case KindDestinationFull:
		return "destination_full"
	case KindValidation:
		return "validation"
	case KindStale:
		return "stale"
	default:
		return "unexpected"
	}
}

// IsDomain reports whether the kind is an expected, user-facing outcome.
func (k Kind) IsDomain() bool {
	return k != KindSuccess && k != KindUnexpected
}

// KindOf classifies an error returned by the workflow.
func KindOf(err error) Kind {
	if err == nil {
		return KindSuccess
	}

	var c *Conflict
	if errors.As(err, &c) {
		return KindConflict
	}

	var e *MembershipError
	if !errors.As(err, &e) {
		return KindUnexpected
	}

	switch e.Code {
	case ErrCodeConflict:
		return KindConflict
	case ErrCodeGroupNotFound:
		return KindNotFound
	case ErrCodeForbidden:
		return KindForbidden
	case ErrCodeNotMember:
		return KindNotMember
	case ErrCodeGroupFull, ErrCodeRoleUnavailable:
		return KindFull
	case ErrCodeDestinationGone:
		return KindDestinationGone
	case ErrCodeDestinationFull:
		return KindDestinationFull
	case ErrCodeValidation, ErrCodeNoPendingConflict:
		return KindValidation
	case ErrCodeStale:
		return KindStale
	default:
		return KindUnexpected
	}
}

// fromRemote maps a service rejection to the matching domain error.
// Anything else, transport failures included, is returned unchanged.
func fromRemote(op string, metadata map[string]string, err error) error {
	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case httptypes.CodeGroupNotFound:
		return newError(ErrGroupNotFound, op, metadata, err)
	case httptypes.CodeGroupFull:
		return newError(ErrGroupFull, op, metadata, err)
	case httptypes.CodeRoleUnavailable:
		return newError(ErrRoleUnavailable, op, metadata, err)
	case httptypes.CodeUserNotInGroup:
		return newError(ErrNotMember, op, metadata, err)
	case httptypes.CodeForbidden:
		return newError(ErrForbidden, op, metadata, err)
	case httptypes.CodeValidationError:
		return newError(ErrValidation, op, metadata, err)
	case httptypes.CodeAlreadyInActiveGroup:
		return newError(ErrAlreadyInActiveGroup, op, metadata, err)
	case httptypes.CodeStaleGroup:
		return newError(ErrStale, op, metadata, err)
	}

	switch apiErr.Status {
	case http.StatusForbidden:
		return newError(ErrForbidden, op, metadata, err)
	case http.StatusNotFound:
		return newError(ErrGroupNotFound, op, metadata, err)
	}
	return err
}
