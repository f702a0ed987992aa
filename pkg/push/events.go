// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/canonical/roster-sync/internal/types"
)

const (
	EventInit    = "roster_init"
	EventCreated = "roster_created"
	EventUpdated = "roster_updated"
	EventDeleted = "roster_deleted"
)

var ErrEmptyPayload = errors.New("empty payload")

// Frame is the wire format of the push channel, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewFrame(event string, data interface{}) (Frame, error) {
	f := Frame{Event: event}
	if data == nil {
		return f, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return f, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	f.Data = raw
	return f, nil
}

// DecodeGroup accepts a bare group or {"group": {...}}.
func DecodeGroup(raw json.RawMessage) (types.Group, error) {
	if isEmpty(raw) {
		return types.Group{}, ErrEmptyPayload
	}

	var wrapped struct {
		Group *types.Group `json:"group"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Group != nil {
		return *wrapped.Group, nil
	}

	var g types.Group
	if err := json.Unmarshal(raw, &g); err != nil {
		return types.Group{}, fmt.Errorf("failed to decode group: %w", err)
	}
	return g, nil
}

// DecodeGroups accepts a bare array or {"groups": [...]}.
func DecodeGroups(raw json.RawMessage) ([]types.Group, error) {
	if isEmpty(raw) {
		return nil, ErrEmptyPayload
	}

	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		groups := make([]types.Group, 0)
		if err := json.Unmarshal(raw, &groups); err != nil {
			return nil, fmt.Errorf("failed to decode groups: %w", err)
		}
		return groups, nil
	}

	var wrapped struct {
		Groups []types.Group `json:"groups"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	if wrapped.Groups == nil {
		return nil, fmt.Errorf("failed to decode groups: missing groups member")
	}
	return wrapped.Groups, nil
}

// DecodeID accepts "id" or {"groupId"|"id"|"_id": "id"}.
func DecodeID(raw json.RawMessage) (string, error) {
	if isEmpty(raw) {
		return "", ErrEmptyPayload
	}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		if id == "" {
			return "", ErrEmptyPayload
		}
		return id, nil
	}

	var wrapped struct {
		GroupID  string `json:"groupId"`
		ID       string `json:"id"`
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return "", fmt.Errorf("failed to decode group id: %w", err)
	}

	for _, candidate := range []string{wrapped.GroupID, wrapped.ID, wrapped.LegacyID} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", ErrEmptyPayload
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
