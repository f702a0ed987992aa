// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package membership

import (
	"context"
	"errors"
	"sync"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/remote"
	"github.com/canonical/roster-sync/pkg/store"
)

var _ WorkflowInterface = (*Workflow)(nil)

// Workflow performs membership changes against the remote service. The
// cache is only written with snapshots the service returned.
type Workflow struct {
	remote   RemoteInterface
	store    store.StoreInterface
	playerID string

	mu          sync.Mutex
	pending     *Conflict
	unsubscribe func()

	tracer tracing.TracingInterface
	logger logging.LoggerInterface
}

// Attach starts watching the cache so a pending conflict closes itself
// when the existing group goes away. Attaching twice is a no-op.
func (w *Workflow) Attach() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.unsubscribe != nil {
		return
	}
	w.unsubscribe = w.store.Subscribe(func(c store.Change) { w.reconcile(c.Groups) })
}

// Close stops watching the cache and dismisses any pending conflict.
func (w *Workflow) Close() {
	w.mu.Lock()
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if pending != nil {
		pending.close(ReasonDismissed)
	}
}

func (w *Workflow) Join(ctx context.Context, groupID, playerID, role string) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.Join")
	defer span.End()

	group, err := w.remote.AddMember(ctx, groupID, httptypes.JoinRequest{PlayerID: playerID, Role: role})
	if err != nil {
		return types.Group{}, w.joinError(ctx, "Join", groupID, playerID, role, nil, err)
	}

	w.confirm(group)
	return group, nil
}

func (w *Workflow) Leave(ctx context.Context, groupID, playerID string) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.Leave")
	defer span.End()

	group, err := w.remote.RemoveMember(ctx, groupID, playerID)
	if err != nil {
		return types.Group{}, w.fail("Leave", metadata(groupID, playerID), err)
	}

	w.confirm(group)
	return group, nil
}

// ChangeRole moves the player to a free slot of another role within the
// same group. The service frees the previous slot.
func (w *Workflow) ChangeRole(ctx context.Context, groupID, playerID, role string) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.ChangeRole")
	defer span.End()

	if role == "" {
		return types.Group{}, newError(ErrValidation, "ChangeRole", map[string]string{"field": "role"}, nil)
	}
	if g, ok := w.store.Get(groupID); ok && !g.HasOccupant(playerID) {
		return types.Group{}, newError(ErrNotMember, "ChangeRole", metadata(groupID, playerID), nil)
	}

	group, err := w.remote.AddMember(ctx, groupID, httptypes.JoinRequest{PlayerID: playerID, Role: role})
	if err != nil {
		return types.Group{}, w.fail("ChangeRole", metadata(groupID, playerID), err)
	}

	w.confirm(group)
	return group, nil
}

func (w *Workflow) Pending() *Conflict {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.pending
}

// Confirm leaves the existing group and retries the operation that raised
// the conflict: the join of the recorded destination, or the creation of
// the requested group. It never joins any other group.
func (w *Workflow) Confirm(ctx context.Context, c *Conflict) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.Confirm")
	defer span.End()

	w.mu.Lock()
	if c == nil || w.pending != c {
		w.mu.Unlock()
		return types.Group{}, newError(ErrNoPendingConflict, "Confirm", nil, nil)
	}
	w.pending = nil
	w.mu.Unlock()

	c.close(ReasonConfirmed)

	md := metadata(c.Destination, c.PlayerID)
	md["existing_group_id"] = c.Existing.ID

	if c.Create == nil && c.Destination == "" {
		md["field"] = "destination"
		return types.Group{}, newError(ErrValidation, "Confirm", md, nil)
	}
	if err := w.checkDestination(c, md); err != nil {
		return types.Group{}, err
	}

	left, err := w.remote.RemoveMember(ctx, c.Existing.ID, c.PlayerID)
	switch {
	case err == nil:
		w.confirm(left)
	case errors.Is(err, &remote.APIError{Code: httptypes.CodeUserNotInGroup}),
		errors.Is(err, &remote.APIError{Code: httptypes.CodeGroupNotFound}):
		w.logger.Debugf("player %s already out of group %s", c.PlayerID, c.Existing.ID)
	default:
		return types.Group{}, w.fail("Confirm", md, err)
	}

	if c.Create != nil {
		return w.create(ctx, "Confirm", *c.Create)
	}

	if err := w.checkDestination(c, md); err != nil {
		return types.Group{}, err
	}

	group, err := w.remote.AddMember(ctx, c.Destination, httptypes.JoinRequest{PlayerID: c.PlayerID, Role: c.DesiredRole})
	if err != nil {
		var apiErr *remote.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case httptypes.CodeGroupNotFound:
				return types.Group{}, newError(ErrDestinationGone, "Confirm", md, err)
			case httptypes.CodeGroupFull, httptypes.CodeRoleUnavailable:
				return types.Group{}, newError(ErrDestinationFull, "Confirm", md, err)
			}
		}
		return types.Group{}, w.joinError(ctx, "Confirm", c.Destination, c.PlayerID, c.DesiredRole, nil, err)
	}

	w.confirm(group)
	return group, nil
}

// Dismiss drops the conflict without changing any membership.
func (w *Workflow) Dismiss(c *Conflict) {
	if c == nil {
		return
	}

	w.mu.Lock()
	if w.pending == c {
		w.pending = nil
	}
	w.mu.Unlock()

	c.close(ReasonDismissed)
}

// CreateGroup creates a roster. When JoinRole is set the creator takes that
// slot, which can conflict with another active group.
func (w *Workflow) CreateGroup(ctx context.Context, req httptypes.CreateGroupRequest) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.CreateGroup")
	defer span.End()

	if req.CreatorID == "" {
		req.CreatorID = w.playerID
	}
	if len(req.Roles) == 0 {
		return types.Group{}, newError(ErrValidation, "CreateGroup", map[string]string{"field": "roles"}, nil)
	}

	return w.create(ctx, "CreateGroup", req)
}

func (w *Workflow) create(ctx context.Context, op string, req httptypes.CreateGroupRequest) (types.Group, error) {
	group, err := w.remote.CreateGroup(ctx, req)
	if err != nil {
		if req.JoinRole != "" && errors.Is(err, &remote.APIError{Code: httptypes.CodeAlreadyInActiveGroup}) {
			return types.Group{}, w.joinError(ctx, op, "", req.CreatorID, req.JoinRole, &req, err)
		}
		return types.Group{}, w.fail(op, map[string]string{"group_name": req.Name}, err)
	}

	w.confirm(group)
	return group, nil
}

func (w *Workflow) AddSlot(ctx context.Context, groupID, role string) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.AddSlot")
	defer span.End()

	if role == "" {
		return types.Group{}, newError(ErrValidation, "AddSlot", map[string]string{"field": "role"}, nil)
	}

	return w.edit(ctx, "AddSlot", groupID, func(g *types.Group) error {
		g.Slots = append(g.Slots, types.Slot{Role: role})
		return nil
	})
}

// RemoveSlot drops the slot at index. The last slot can never be removed.
func (w *Workflow) RemoveSlot(ctx context.Context, groupID string, index int) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.RemoveSlot")
	defer span.End()

	return w.edit(ctx, "RemoveSlot", groupID, func(g *types.Group) error {
		if index < 0 || index >= len(g.Slots) {
			return newError(ErrValidation, "RemoveSlot", map[string]string{"field": "index", "reason": "out of range"}, nil)
		}
		if len(g.Slots) == 1 {
			return newError(ErrValidation, "RemoveSlot", map[string]string{"field": "index", "reason": "last slot"}, nil)
		}
		g.Slots = append(g.Slots[:index], g.Slots[index+1:]...)
		return nil
	})
}

func (w *Workflow) SetSlotRole(ctx context.Context, groupID string, index int, role string) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.SetSlotRole")
	defer span.End()

	return w.edit(ctx, "SetSlotRole", groupID, func(g *types.Group) error {
		if role == "" || index < 0 || index >= len(g.Slots) {
			return newError(ErrValidation, "SetSlotRole", map[string]string{"field": "index"}, nil)
		}
		g.Slots[index].Role = role
		return nil
	})
}

// Kick removes another player from a group the local player created.
func (w *Workflow) Kick(ctx context.Context, groupID, playerID string) (types.Group, error) {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.Kick")
	defer span.End()

	if err := w.requireCreator("Kick", groupID); err != nil {
		return types.Group{}, err
	}

	group, err := w.remote.RemoveMember(ctx, groupID, playerID)
	if err != nil {
		return types.Group{}, w.fail("Kick", metadata(groupID, playerID), err)
	}

	w.confirm(group)
	return group, nil
}

func (w *Workflow) DeleteGroup(ctx context.Context, groupID string) error {
	ctx, span := w.tracer.Start(ctx, "membership.Workflow.DeleteGroup")
	defer span.End()

	if err := w.requireCreator("DeleteGroup", groupID); err != nil {
		return err
	}

	if err := w.remote.DeleteGroup(ctx, groupID); err != nil {
		return w.fail("DeleteGroup", map[string]string{"group_id": groupID}, err)
	}

	w.store.Remove(groupID)
	return nil
}

// edit applies fn to the cached snapshot and sends the whole group, version
// included, to the service. The service refuses a snapshot older than its
// own, reported as KindStale. A group missing from the cache is reported as
// not found so the caller refreshes first.
func (w *Workflow) edit(ctx context.Context, op, groupID string, fn func(*types.Group) error) (types.Group, error) {
	if err := w.requireCreator(op, groupID); err != nil {
		return types.Group{}, err
	}

	cached, ok := w.store.Get(groupID)
	if !ok {
		return types.Group{}, newError(ErrGroupNotFound, op, map[string]string{"group_id": groupID}, nil)
	}

	if err := fn(&cached); err != nil {
		return types.Group{}, err
	}

	group, err := w.remote.UpdateGroup(ctx, groupID, cached)
	if err != nil {
		if errors.Is(err, &remote.APIError{Code: httptypes.CodeStaleGroup}) {
			w.logger.Infof("%s on group %s sent version %d, the service has moved on", op, groupID, cached.Version)
		}
		return types.Group{}, w.fail(op, map[string]string{"group_id": groupID}, err)
	}

	w.confirm(group)
	return group, nil
}

// requireCreator only rejects when the cache proves the local player is not
// the creator, the service has the final say.
func (w *Workflow) requireCreator(op, groupID string) error {
	g, ok := w.store.Get(groupID)
	if !ok || g.CreatorID == "" || g.CreatorID == w.playerID {
		return nil
	}
	return newError(ErrForbidden, op, map[string]string{"group_id": groupID, "user_id": w.playerID}, nil)
}

// joinError turns an ALREADY_IN_ACTIVE_GROUP rejection into a pending
// conflict, every other failure is mapped as usual. create is set when the
// rejected operation was a group creation.
func (w *Workflow) joinError(ctx context.Context, op, groupID, playerID, role string, create *httptypes.CreateGroupRequest, err error) error {
	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != httptypes.CodeAlreadyInActiveGroup {
		return w.fail(op, metadata(groupID, playerID), err)
	}

	existing, ok := w.existingGroup(ctx, apiErr, playerID, groupID)
	if !ok {
		w.logger.Warnf("conflict for player %s without an identifiable existing group", playerID)
		return newError(ErrAlreadyInActiveGroup, op, metadata(groupID, playerID), err)
	}

	known := false
	if groupID != "" {
		_, known = w.store.Get(groupID)
	}
	c := newConflict(playerID, groupID, role, existing, known, create)
	groups := w.store.List()

	w.mu.Lock()
	previous := w.pending
	w.pending = c
	c.moot(groups)
	w.mu.Unlock()

	if previous != nil {
		previous.close(ReasonSuperseded)
	}

	if create != nil {
		w.logger.Debugf("player %s must leave group %s before creating %q", playerID, existing.ID, create.Name)
	} else {
		w.logger.Debugf("player %s must leave group %s before joining %s", playerID, existing.ID, groupID)
	}
	return c
}

// existingGroup resolves the group the player already belongs to, from the
// error body first, then the service lookup, then the cache.
func (w *Workflow) existingGroup(ctx context.Context, apiErr *remote.APIError, playerID, destination string) (types.Group, bool) {
	if apiErr.ExistingGroup != nil && apiErr.ExistingGroup.ID != "" {
		return *apiErr.ExistingGroup, true
	}

	g, err := w.remote.GetActiveGroup(ctx, playerID)
	if err == nil && g.ID != "" {
		return g, true
	}
	if err != nil {
		w.logger.Debugf("active group lookup for %s failed: %v", playerID, err)
	}

	for _, g := range w.store.List() {
		if g.ID != destination && g.IsActive() && g.HasOccupant(playerID) {
			return g, true
		}
	}
	return types.Group{}, false
}

func (w *Workflow) checkDestination(c *Conflict, md map[string]string) error {
	g, ok := w.store.Get(c.Destination)
	if !ok {
		if c.destinationKnown {
			return newError(ErrDestinationGone, "Confirm", md, nil)
		}
		return nil
	}
	if !g.IsActive() {
		return newError(ErrDestinationGone, "Confirm", md, nil)
	}
	if g.FreeSlot(c.DesiredRole) < 0 {
		return newError(ErrDestinationFull, "Confirm", md, nil)
	}
	return nil
}

// reconcile runs inside store notifications and only closes conflicts.
func (w *Workflow) reconcile(groups []types.Group) {
	w.mu.Lock()
	c := w.pending
	if c == nil {
		w.mu.Unlock()
		return
	}
	reason, closed := c.moot(groups)
	if closed {
		w.pending = nil
	}
	w.mu.Unlock()

	if closed {
		w.logger.Debugf("conflict on group %s closed: %s", c.Existing.ID, reason)
		c.close(reason)
	}
}

// confirm writes a service-returned snapshot to the cache. Empty answers
// are left to the push channel.
func (w *Workflow) confirm(group types.Group) {
	if group.Valid() {
		w.store.Upsert(group)
	}
}

func (w *Workflow) fail(op string, md map[string]string, err error) error {
	mapped := fromRemote(op, md, err)

	if KindOf(mapped).IsDomain() {
		w.logger.Debugf("%s rejected: %v", op, mapped)
	} else {
		w.logger.Errorf("%s failed: %v", op, err)
	}
	return mapped
}

func metadata(groupID, playerID string) map[string]string {
	md := map[string]string{"user_id": playerID}
	if groupID != "" {
		md["group_id"] = groupID
	}
	return md
}

func NewWorkflow(
	client RemoteInterface,
	s store.StoreInterface,
	playerID string,
	tracer tracing.TracingInterface,
	logger logging.LoggerInterface,
) *Workflow {
	w := new(Workflow)

	w.remote = client
	w.store = s
	w.playerID = playerID

	w.tracer = tracer
	w.logger = logger

	return w
}
