// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package store

import (
	"github.com/canonical/roster-sync/internal/types"
)

// StoreInterface is the narrow surface every other component depends on.
type StoreInterface interface {
	ReaderInterface

	ReplaceAll([]types.Group)
	Upsert(types.Group)
	Remove(string)
}

type ReaderInterface interface {
	Get(string) (types.Group, bool)
	List() []types.Group
	Subscribe(func(Change)) func()
}

// Change is delivered after every write that altered the roster view.
type Change struct {
	// Groups is the full post-change list, sorted by id.
	Groups []types.Group
}

// Get returns the group with the given id from the change snapshot.
func (c Change) Get(id string) (types.Group, bool) {
	for _, g := range c.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return types.Group{}, false
}
