// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package synchronizer

import (
	"context"

	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/push"
)

// SynchronizerInterface is what the liveness supervisor and the roster
// session depend on.
type SynchronizerInterface interface {
	Start(context.Context)
	Refresh(context.Context) error
	Stop()
}

// PullerInterface is the subset of the remote client used for full pulls.
type PullerInterface interface {
	ListGroups(context.Context) ([]types.Group, error)
}

// SubscriberInterface keeps a push subscription alive until ctx ends.
type SubscriberInterface interface {
	Run(context.Context, push.HandlerInterface)
}
