// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package membership

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"go.uber.org/mock/gomock"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/remote"
	"github.com/canonical/roster-sync/pkg/store"
)

//go:generate mockgen -build_flags=--mod=mod -package membership -destination ./mock_membership.go -source=./interfaces.go -exclude_interfaces=WorkflowInterface

const me = "player-a"

func roster(id, name string, occupants ...string) types.Group {
	g := types.Group{ID: id, Name: name, Status: types.StatusActive, CreatorID: "creator"}
	for i, role := range []string{"Tank", "Heal", "DPS"} {
		s := types.Slot{Role: role}
		if i < len(occupants) && occupants[i] != "" {
			s.Occupant = &types.Player{ID: occupants[i]}
		}
		g.Slots = append(g.Slots, s)
	}
	return g
}

func conflictErr(existing *types.Group) error {
	return &remote.APIError{
		Status:        http.StatusConflict,
		Code:          httptypes.CodeAlreadyInActiveGroup,
		Message:       "already in an active group",
		ExistingGroup: existing,
	}
}

func setup(t *testing.T, groups ...types.Group) (*Workflow, *MockRemoteInterface, *store.Store) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockRemote := NewMockRemoteInterface(ctrl)

	s := store.NewStore(logging.NewNoopLogger())
	s.ReplaceAll(groups)

	w := NewWorkflow(mockRemote, s, me, tracing.NewNoopTracer(), logging.NewNoopLogger())
	w.Attach()
	t.Cleanup(w.Close)

	return w, mockRemote, s
}

func TestWorkflow_Join(t *testing.T) {
	dungeon := roster("g1", "Dungeon Tuesday")
	joined := roster("g1", "Dungeon Tuesday", "", me)

	testCases := []struct {
		name       string
		setupMocks func(m *MockRemoteInterface)
		kind       Kind
		occupied   int
	}{
		{
			name: "success writes the confirmed snapshot",
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().AddMember(gomock.Any(), "g1", httptypes.JoinRequest{PlayerID: me, Role: "Heal"}).Return(joined, nil)
			},
			kind:     KindSuccess,
			occupied: 1,
		},
		{
			name: "group full",
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().AddMember(gomock.Any(), "g1", gomock.Any()).Return(types.Group{}, &remote.APIError{Status: http.StatusConflict, Code: httptypes.CodeRoleUnavailable})
			},
			kind: KindFull,
		},
		{
			name: "group gone",
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().AddMember(gomock.Any(), "g1", gomock.Any()).Return(types.Group{}, &remote.APIError{Status: http.StatusNotFound})
			},
			kind: KindNotFound,
		},
		{
			name: "transport failure",
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().AddMember(gomock.Any(), "g1", gomock.Any()).Return(types.Group{}, fmt.Errorf("%w: connection refused", remote.ErrTransport))
			},
			kind: KindUnexpected,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, m, s := setup(t, dungeon)
			tc.setupMocks(m)

			_, err := w.Join(context.Background(), "g1", me, "Heal")

			if got := KindOf(err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s (%v)", tc.kind, got, err)
			}
			cached, _ := s.Get("g1")
			if cached.OccupiedCount() != tc.occupied {
				t.Fatalf("expected %d occupied slots in the cache, got %d", tc.occupied, cached.OccupiedCount())
			}
		})
	}
}

func TestWorkflow_JoinConflict(t *testing.T) {
	dungeon := roster("g1", "Dungeon Tuesday", "", me)
	gvg := roster("g2", "GvG Night")

	testCases := []struct {
		name       string
		setupMocks func(m *MockRemoteInterface)
	}{
		{
			name: "existing group in the error body",
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, conflictErr(&dungeon))
			},
		},
		{
			name: "existing group looked up",
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, conflictErr(nil))
				m.EXPECT().GetActiveGroup(gomock.Any(), me).Return(dungeon, nil)
			},
		},
		{
			name: "existing group found in the cache",
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, conflictErr(nil))
				m.EXPECT().GetActiveGroup(gomock.Any(), me).Return(types.Group{}, &remote.APIError{Status: http.StatusNotFound})
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, m, s := setup(t, dungeon, gvg)
			tc.setupMocks(m)

			_, err := w.Join(context.Background(), "g2", me, "")

			var c *Conflict
			if !errors.As(err, &c) {
				t.Fatalf("expected a conflict, got %v", err)
			}
			if !errors.Is(err, ErrAlreadyInActiveGroup) || KindOf(err) != KindConflict {
				t.Fatalf("expected the conflict to classify as ALREADY_IN_ACTIVE_GROUP")
			}
			if c.Existing.ID != "g1" || c.Destination != "g2" {
				t.Fatalf("unexpected conflict %+v", c)
			}
			if c.Occupied() != 1 || c.Capacity() != 3 {
				t.Fatalf("expected 1/3 occupancy, got %d/%d", c.Occupied(), c.Capacity())
			}
			if w.Pending() != c {
				t.Fatalf("expected the conflict to be pending")
			}
			if g, _ := s.Get("g2"); g.HasOccupant(me) {
				t.Fatalf("expected no speculative write to the destination")
			}
		})
	}
}

func TestWorkflow_ConfirmLeavesThenJoins(t *testing.T) {
	dungeon := roster("g1", "Dungeon Tuesday", "", me)
	gvg := roster("g2", "GvG Night")

	w, m, s := setup(t, dungeon, gvg)

	m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, conflictErr(&dungeon))
	_, err := w.Join(context.Background(), "g2", me, "DPS")

	var c *Conflict
	if !errors.As(err, &c) {
		t.Fatalf("expected a conflict, got %v", err)
	}

	gomock.InOrder(
		m.EXPECT().RemoveMember(gomock.Any(), "g1", me).Return(roster("g1", "Dungeon Tuesday"), nil),
		m.EXPECT().AddMember(gomock.Any(), "g2", httptypes.JoinRequest{PlayerID: me, Role: "DPS"}).Return(roster("g2", "GvG Night", "", "", me), nil),
	)

	g, err := w.Confirm(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID != "g2" {
		t.Fatalf("expected to join g2, got %s", g.ID)
	}

	var memberOf []string
	for _, g := range s.List() {
		if g.HasOccupant(me) {
			memberOf = append(memberOf, g.ID)
		}
	}
	if len(memberOf) != 1 || memberOf[0] != "g2" {
		t.Fatalf("expected the player to occupy a slot only in g2, got %v", memberOf)
	}

	select {
	case <-c.Done():
	default:
		t.Fatalf("expected the conflict to be closed")
	}
	if c.Reason() != ReasonConfirmed || w.Pending() != nil {
		t.Fatalf("expected a confirmed, cleared conflict, got %q", c.Reason())
	}

	if _, err := w.Confirm(context.Background(), c); KindOf(err) != KindValidation {
		t.Fatalf("expected a second confirmation to be rejected, got %v", err)
	}
}

func TestWorkflow_ConfirmDestinationChecks(t *testing.T) {
	dungeon := roster("g1", "Dungeon Tuesday", "", me)

	testCases := []struct {
		name       string
		before     func(s *store.Store)
		setupMocks func(m *MockRemoteInterface)
		kind       Kind
	}{
		{
			name:       "destination deleted before the retry",
			before:     func(s *store.Store) { s.Remove("g2") },
			setupMocks: func(m *MockRemoteInterface) {},
			kind:       KindDestinationGone,
		},
		{
			name:       "destination became full",
			before:     func(s *store.Store) { s.Upsert(roster("g2", "GvG Night", "x", "y", "z")) },
			setupMocks: func(m *MockRemoteInterface) {},
			kind:       KindDestinationFull,
		},
		{
			name:   "destination deleted on the server",
			before: func(s *store.Store) {},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().RemoveMember(gomock.Any(), "g1", me).Return(roster("g1", "Dungeon Tuesday"), nil)
				m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, &remote.APIError{Status: http.StatusNotFound, Code: httptypes.CodeGroupNotFound})
			},
			kind: KindDestinationGone,
		},
		{
			name:   "destination filled on the server",
			before: func(s *store.Store) {},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().RemoveMember(gomock.Any(), "g1", me).Return(roster("g1", "Dungeon Tuesday"), nil)
				m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, &remote.APIError{Status: http.StatusConflict, Code: httptypes.CodeGroupFull})
			},
			kind: KindDestinationFull,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, m, s := setup(t, dungeon, roster("g2", "GvG Night"))

			m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, conflictErr(&dungeon))
			_, err := w.Join(context.Background(), "g2", me, "")
			c, ok := err.(*Conflict)
			if !ok {
				t.Fatalf("expected a conflict, got %v", err)
			}

			tc.before(s)
			tc.setupMocks(m)

			_, err = w.Confirm(context.Background(), c)
			if got := KindOf(err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s (%v)", tc.kind, got, err)
			}
			for _, g := range s.List() {
				if g.ID != "g1" && g.HasOccupant(me) {
					t.Fatalf("expected the player not to end up in %s", g.ID)
				}
			}
		})
	}
}

func TestWorkflow_ConflictClosesWhenExistingGroupGoes(t *testing.T) {
	testCases := []struct {
		name   string
		change func(s *store.Store)
		reason CloseReason
	}{
		{name: "existing group deleted", change: func(s *store.Store) { s.Remove("g1") }, reason: ReasonExistingGone},
		{name: "player removed from existing group", change: func(s *store.Store) { s.Upsert(roster("g1", "Dungeon Tuesday")) }, reason: ReasonLeftExisting},
		{
			name: "existing group completed",
			change: func(s *store.Store) {
				g := roster("g1", "Dungeon Tuesday", "", me)
				g.Status = types.StatusCompleted
				s.Upsert(g)
			},
			reason: ReasonLeftExisting,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dungeon := roster("g1", "Dungeon Tuesday", "", me)
			w, m, s := setup(t, dungeon, roster("g2", "GvG Night"))

			m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, conflictErr(&dungeon))
			_, err := w.Join(context.Background(), "g2", me, "")
			c, ok := err.(*Conflict)
			if !ok {
				t.Fatalf("expected a conflict, got %v", err)
			}

			// unrelated changes keep it open
			s.Upsert(roster("g3", "Raid"))
			if c.Reason() != ReasonOpen {
				t.Fatalf("expected the conflict to stay open, got %q", c.Reason())
			}

			tc.change(s)

			select {
			case <-c.Done():
			default:
				t.Fatalf("expected the conflict to close without user action")
			}
			if c.Reason() != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, c.Reason())
			}
			if w.Pending() != nil {
				t.Fatalf("expected no pending conflict")
			}
		})
	}
}

func TestWorkflow_Dismiss(t *testing.T) {
	dungeon := roster("g1", "Dungeon Tuesday", "", me)
	w, m, _ := setup(t, dungeon, roster("g2", "GvG Night"))

	m.EXPECT().AddMember(gomock.Any(), "g2", gomock.Any()).Return(types.Group{}, conflictErr(&dungeon))
	_, err := w.Join(context.Background(), "g2", me, "")
	c := err.(*Conflict)

	w.Dismiss(c)
	w.Dismiss(c)

	if c.Reason() != ReasonDismissed || w.Pending() != nil {
		t.Fatalf("expected a dismissed conflict, got %q", c.Reason())
	}
}

func TestWorkflow_Leave(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind Kind
	}{
		{name: "success", err: nil, kind: KindSuccess},
		{name: "not a member", err: &remote.APIError{Status: http.StatusNotFound, Code: httptypes.CodeUserNotInGroup}, kind: KindNotMember},
		{name: "unexpected", err: errors.New("boom"), kind: KindUnexpected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, m, s := setup(t, roster("g1", "Dungeon Tuesday", "", me))

			var result types.Group
			if tc.err == nil {
				result = roster("g1", "Dungeon Tuesday")
			}
			m.EXPECT().RemoveMember(gomock.Any(), "g1", me).Return(result, tc.err)

			_, err := w.Leave(context.Background(), "g1", me)
			if got := KindOf(err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, got)
			}

			g, _ := s.Get("g1")
			if g.HasOccupant(me) == (tc.kind == KindSuccess) {
				t.Fatalf("unexpected cache state after leave: %+v", g.Slots)
			}
		})
	}
}

func TestWorkflow_ChangeRole(t *testing.T) {
	w, m, s := setup(t, roster("g1", "Dungeon Tuesday", "", me), roster("g2", "Other"))

	if _, err := w.ChangeRole(context.Background(), "g2", me, "Tank"); KindOf(err) != KindNotMember {
		t.Fatalf("expected not member for a group the player is not in, got %v", err)
	}

	m.EXPECT().AddMember(gomock.Any(), "g1", httptypes.JoinRequest{PlayerID: me, Role: "Tank"}).Return(roster("g1", "Dungeon Tuesday", me), nil)

	if _, err := w.ChangeRole(context.Background(), "g1", me, "Tank"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g, _ := s.Get("g1")
	if g.SlotOf(me) != 0 || g.OccupiedCount() != 1 {
		t.Fatalf("expected the player to hold only the Tank slot, got %+v", g.Slots)
	}
}

func TestWorkflow_AdminOperations(t *testing.T) {
	owned := roster("g1", "Mine")
	owned.CreatorID = me
	owned.Version = 7
	foreign := roster("g2", "Theirs")

	testCases := []struct {
		name       string
		run        func(w *Workflow) error
		setupMocks func(m *MockRemoteInterface)
		kind       Kind
	}{
		{
			name: "add slot",
			run: func(w *Workflow) error {
				g, err := w.AddSlot(context.Background(), "g1", "Support")
				if err == nil && g.Capacity() != 4 {
					return fmt.Errorf("expected 4 slots, got %d", g.Capacity())
				}
				return err
			},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().UpdateGroup(gomock.Any(), "g1", gomock.Any()).DoAndReturn(
					func(_ context.Context, _ string, g types.Group) (types.Group, error) {
						if g.Capacity() != 4 || g.Slots[3].Role != "Support" {
							t.Errorf("unexpected update payload %+v", g.Slots)
						}
						return g, nil
					},
				)
			},
			kind: KindSuccess,
		},
		{
			name: "remove slot",
			run: func(w *Workflow) error {
				_, err := w.RemoveSlot(context.Background(), "g1", 0)
				return err
			},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().UpdateGroup(gomock.Any(), "g1", gomock.Any()).DoAndReturn(
					func(_ context.Context, _ string, g types.Group) (types.Group, error) { return g, nil },
				)
			},
			kind: KindSuccess,
		},
		{
			name: "remove slot out of range",
			run: func(w *Workflow) error {
				_, err := w.RemoveSlot(context.Background(), "g1", 7)
				return err
			},
			setupMocks: func(m *MockRemoteInterface) {},
			kind:       KindValidation,
		},
		{
			name: "set slot role",
			run: func(w *Workflow) error {
				g, err := w.SetSlotRole(context.Background(), "g1", 2, "Support")
				if err == nil && g.Slots[2].Role != "Support" {
					return fmt.Errorf("role not changed")
				}
				return err
			},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().UpdateGroup(gomock.Any(), "g1", gomock.Any()).DoAndReturn(
					func(_ context.Context, _ string, g types.Group) (types.Group, error) { return g, nil },
				)
			},
			kind: KindSuccess,
		},
		{
			name: "non creator rejected client side",
			run: func(w *Workflow) error {
				_, err := w.AddSlot(context.Background(), "g2", "Support")
				return err
			},
			setupMocks: func(m *MockRemoteInterface) {},
			kind:       KindForbidden,
		},
		{
			name: "non creator delete rejected client side",
			run: func(w *Workflow) error {
				return w.DeleteGroup(context.Background(), "g2")
			},
			setupMocks: func(m *MockRemoteInterface) {},
			kind:       KindForbidden,
		},
		{
			name: "server rejection is authoritative",
			run: func(w *Workflow) error {
				return w.DeleteGroup(context.Background(), "g1")
			},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().DeleteGroup(gomock.Any(), "g1").Return(&remote.APIError{Status: http.StatusForbidden, Code: httptypes.CodeForbidden})
			},
			kind: KindForbidden,
		},
		{
			name: "kick",
			run: func(w *Workflow) error {
				_, err := w.Kick(context.Background(), "g1", "someone")
				return err
			},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().RemoveMember(gomock.Any(), "g1", "someone").Return(owned, nil)
			},
			kind: KindSuccess,
		},
		{
			name: "edit from an outdated snapshot",
			run: func(w *Workflow) error {
				_, err := w.AddSlot(context.Background(), "g1", "Support")
				return err
			},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().UpdateGroup(gomock.Any(), "g1", gomock.Any()).DoAndReturn(
					func(_ context.Context, _ string, g types.Group) (types.Group, error) {
						if g.Version != 7 {
							t.Errorf("expected the cached version 7 to be sent, got %d", g.Version)
						}
						return types.Group{}, &remote.APIError{Status: http.StatusConflict, Code: httptypes.CodeStaleGroup}
					},
				)
			},
			kind: KindStale,
		},
		{
			name: "edit of uncached group",
			run: func(w *Workflow) error {
				_, err := w.AddSlot(context.Background(), "missing", "Tank")
				return err
			},
			setupMocks: func(m *MockRemoteInterface) {},
			kind:       KindNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, m, _ := setup(t, owned, foreign)
			tc.setupMocks(m)

			err := tc.run(w)
			if got := KindOf(err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}
}

func TestWorkflow_RemoveLastSlotRejected(t *testing.T) {
	single := types.Group{ID: "g1", Status: types.StatusActive, CreatorID: me, Slots: []types.Slot{{Role: "Tank"}}}
	w, _, _ := setup(t, single)

	_, err := w.RemoveSlot(context.Background(), "g1", 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestWorkflow_DeleteGroupRemovesFromCache(t *testing.T) {
	owned := roster("g1", "Mine")
	owned.CreatorID = me
	w, m, s := setup(t, owned)

	m.EXPECT().DeleteGroup(gomock.Any(), "g1").Return(nil)

	if err := w.DeleteGroup(context.Background(), "g1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.Get("g1"); ok {
		t.Fatalf("expected the deleted group to leave the cache")
	}
}

func TestWorkflow_CreateGroup(t *testing.T) {
	dungeon := roster("g1", "Dungeon Tuesday", "", me)

	testCases := []struct {
		name       string
		req        httptypes.CreateGroupRequest
		setupMocks func(m *MockRemoteInterface)
		kind       Kind
	}{
		{
			name: "success defaults the creator",
			req:  httptypes.CreateGroupRequest{Name: "GvG Night", Roles: []string{"Tank", "Heal"}},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().CreateGroup(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, req httptypes.CreateGroupRequest) (types.Group, error) {
						if req.CreatorID != me {
							t.Errorf("expected creator %s, got %s", me, req.CreatorID)
						}
						return roster("g2", req.Name), nil
					},
				)
			},
			kind: KindSuccess,
		},
		{
			name:       "no roles",
			req:        httptypes.CreateGroupRequest{Name: "empty"},
			setupMocks: func(m *MockRemoteInterface) {},
			kind:       KindValidation,
		},
		{
			name: "creator already in an active group",
			req:  httptypes.CreateGroupRequest{Name: "GvG Night", Roles: []string{"Tank"}, JoinRole: "Tank"},
			setupMocks: func(m *MockRemoteInterface) {
				m.EXPECT().CreateGroup(gomock.Any(), gomock.Any()).Return(types.Group{}, conflictErr(&dungeon))
			},
			kind: KindConflict,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, m, _ := setup(t, dungeon)
			tc.setupMocks(m)

			_, err := w.CreateGroup(context.Background(), tc.req)
			if got := KindOf(err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}
}

func TestWorkflow_ConfirmCreateConflict(t *testing.T) {
	dungeon := roster("g1", "Dungeon Tuesday", "", me)
	req := httptypes.CreateGroupRequest{Name: "GvG Night", Roles: []string{"Tank", "Heal"}, JoinRole: "Tank"}

	w, m, s := setup(t, dungeon)

	m.EXPECT().CreateGroup(gomock.Any(), gomock.Any()).Return(types.Group{}, conflictErr(&dungeon))
	_, err := w.CreateGroup(context.Background(), req)

	var c *Conflict
	if !errors.As(err, &c) {
		t.Fatalf("expected a conflict, got %v", err)
	}
	if c.Create == nil || c.Create.Name != req.Name || c.Destination != "" || c.DesiredRole != "Tank" {
		t.Fatalf("expected the creation to be recorded, got %+v", c)
	}

	gomock.InOrder(
		m.EXPECT().RemoveMember(gomock.Any(), "g1", me).Return(roster("g1", "Dungeon Tuesday"), nil),
		m.EXPECT().CreateGroup(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, got httptypes.CreateGroupRequest) (types.Group, error) {
				if got.Name != req.Name || got.JoinRole != "Tank" || got.CreatorID != me {
					t.Errorf("unexpected creation request %+v", got)
				}
				return roster("g2", got.Name, me), nil
			},
		),
	)

	g, err := w.Confirm(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID != "g2" || !g.HasOccupant(me) {
		t.Fatalf("expected the player in the new group, got %+v", g)
	}
	if d, _ := s.Get("g1"); d.HasOccupant(me) {
		t.Fatalf("expected the player out of g1")
	}
}

func TestWorkflow_ConfirmWithoutDestinationLeavesNothing(t *testing.T) {
	dungeon := roster("g1", "Dungeon Tuesday", "", me)
	w, _, s := setup(t, dungeon)

	c := newConflict(me, "", "", dungeon, false, nil)
	w.mu.Lock()
	w.pending = c
	w.mu.Unlock()

	if _, err := w.Confirm(context.Background(), c); KindOf(err) != KindValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if d, _ := s.Get("g1"); !d.HasOccupant(me) {
		t.Fatalf("expected the player to stay in g1")
	}
}

func TestKindOf(t *testing.T) {
	tests := map[error]Kind{
		nil:                                     KindSuccess,
		errors.New("boom"):                      KindUnexpected,
		ErrGroupFull:                            KindFull,
		ErrDestinationGone:                      KindDestinationGone,
		ErrStale:                                KindStale,
		fmt.Errorf("wrapped: %w", ErrForbidden): KindForbidden,
	}

	for err, want := range tests {
		if got := KindOf(err); got != want {
			t.Fatalf("KindOf(%v) = %s, want %s", err, got, want)
		}
	}
}
