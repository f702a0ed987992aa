// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package remote

import (
	"errors"
	"fmt"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/types"
)

// ErrTransport wraps every failure that happened before a response was read.
var ErrTransport = errors.New("membership service unreachable")

// APIError is a non-2xx answer from the membership service.
type APIError struct {
	Status        int
	Code          string
	Message       string
	ExistingGroup *types.Group
}

func (e *APIError) Error() string {
	return fmt.Sprintf("membership service returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Is matches another *APIError by code, or by status when the target has no code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.Status == e.Status
}

func newAPIError(status int, body httptypes.ErrorResponse) *APIError {
	return &APIError{
		Status:        status,
		Code:          body.Code,
		Message:       body.Message,
		ExistingGroup: body.ExistingGroup,
	}
}
