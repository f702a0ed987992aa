// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package push

import (
	"github.com/canonical/roster-sync/internal/types"
)

// HandlerInterface receives decoded push events. Calls happen on the
// reader goroutine, one at a time.
type HandlerInterface interface {
	OnInit([]types.Group)
	OnUpsert(types.Group)
	OnDelete(string)

	OnConnected()
	OnDisconnected(error)
}
