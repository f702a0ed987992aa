// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package roster

import (
	"context"
)

// ScopedInterface is a cache follower that is attached while the roster
// view is active.
type ScopedInterface interface {
	Attach()
	Close()
}

type SupervisorInterface interface {
	Attach(context.Context)
	Close()
}

type SynchronizerInterface interface {
	Start(context.Context)
	Stop()
}
