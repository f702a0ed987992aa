// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package liveness

import (
	"context"
)

type RefresherInterface interface {
	Refresh(context.Context) error
}

type SupervisorInterface interface {
	Attach(context.Context)
	Close()
	Running() bool
}
