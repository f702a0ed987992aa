// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authentication

import (
	"context"
)

type TokenVerifierInterface interface {
	// VerifyToken reports whether the bearer token grants access
	VerifyToken(ctx context.Context, rawToken string) (bool, error)
}
