// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package roster

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/internal/types"
	"github.com/canonical/roster-sync/pkg/completion"
	"github.com/canonical/roster-sync/pkg/groups"
	"github.com/canonical/roster-sync/pkg/liveness"
	"github.com/canonical/roster-sync/pkg/membership"
	"github.com/canonical/roster-sync/pkg/push"
	"github.com/canonical/roster-sync/pkg/remote"
	"github.com/canonical/roster-sync/pkg/store"
	"github.com/canonical/roster-sync/pkg/synchronizer"
)

const waitFor = 5 * time.Second

// signalingHandler reports every processed roster_init.
type signalingHandler struct {
	push.HandlerInterface
	inits chan struct{}
}

func (h *signalingHandler) OnInit(groups []types.Group) {
	h.HandlerInterface.OnInit(groups)
	select {
	case h.inits <- struct{}{}:
	default:
	}
}

type signalingSubscriber struct {
	client *push.Client
	inits  chan struct{}
}

func (s *signalingSubscriber) Run(ctx context.Context, handler push.HandlerInterface) {
	s.client.Run(ctx, &signalingHandler{HandlerInterface: handler, inits: s.inits})
}

type signalingPuller struct {
	client *remote.Client
	pulled chan struct{}
}

func (p *signalingPuller) ListGroups(ctx context.Context) ([]types.Group, error) {
	select {
	case p.pulled <- struct{}{}:
	default:
	}
	return p.client.ListGroups(ctx)
}

type client struct {
	store        *store.Store
	synchronizer *synchronizer.Synchronizer
	supervisor   *liveness.Supervisor
	workflow     *membership.Workflow
	session      *Session
	events       chan completion.Event
}

func newServer(t *testing.T) (*httptest.Server, *groups.Service) {
	t.Helper()

	logger := logging.NewNoopLogger()
	tracer := tracing.NewNoopTracer()
	monitor := monitoring.NewNoopMonitor("test")

	db := groups.NewStorage()
	hub := groups.NewHub(db, tracer, monitor, logger)
	svc := groups.NewService(db, hub, tracer, monitor, logger)

	mux := chi.NewMux()
	groups.NewAPI(svc, hub, tracer, monitor, logger).RegisterEndpoints(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, svc
}

// newClient activates a roster view for playerID and returns once both the
// initial pull and the first push rehydration have landed.
func newClient(t *testing.T, srv *httptest.Server, playerID string) *client {
	t.Helper()

	logger := logging.NewNoopLogger()
	tracer := tracing.NewNoopTracer()
	monitor := monitoring.NewNoopMonitor("test")

	c := new(client)
	c.events = make(chan completion.Event, 16)
	c.store = store.NewStore(logger)

	rc := remote.NewClient(srv.URL, "", playerID, waitFor, tracer, monitor, logger)
	pc := push.NewClient("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", "", playerID, 10*time.Millisecond, 100*time.Millisecond, tracer, monitor, logger)

	puller := &signalingPuller{client: rc, pulled: make(chan struct{}, 1)}
	subscriber := &signalingSubscriber{client: pc, inits: make(chan struct{}, 1)}

	c.synchronizer = synchronizer.NewSynchronizer(c.store, puller, subscriber, 0, tracer, monitor, logger)
	c.supervisor = liveness.NewSupervisor(c.store, c.synchronizer, playerID, time.Hour, logger)
	c.workflow = membership.NewWorkflow(rc, c.store, playerID, tracer, logger)
	detector := completion.NewDetector(c.store, playerID, func(ev completion.Event) { c.events <- ev }, logger)

	c.session = NewSession(c.synchronizer, c.supervisor, logger, detector, c.workflow)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		c.session.Deactivate()
		cancel()
	})

	if err := c.session.Activate(ctx); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}

	select {
	case <-puller.pulled:
	case <-time.After(waitFor):
		t.Fatalf("initial pull never started")
	}
	if err := c.synchronizer.Refresh(ctx); err != nil {
		t.Fatalf("initial pull failed: %v", err)
	}

	select {
	case <-subscriber.inits:
	case <-time.After(waitFor):
		t.Fatalf("push channel never rehydrated")
	}

	return c
}

func (c *client) nextEvent(t *testing.T) completion.Event {
	t.Helper()

	select {
	case ev := <-c.events:
		return ev
	case <-time.After(waitFor):
		t.Fatalf("no completion event")
	}
	return completion.Event{}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(waitFor)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", waitFor)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRosterView_CompletionAndConflictResolution(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()

	dungeon, _ := svc.CreateGroup(ctx, "creator", httptypes.CreateGroupRequest{Name: "Dungeon", Roles: []string{"Tank", "Heal", "DPS"}})
	gvg, _ := svc.CreateGroup(ctx, "creator", httptypes.CreateGroupRequest{Name: "GvG", Roles: []string{"Tank", "Heal"}})
	for _, p := range []string{"alice", "bob"} {
		if _, err := svc.AddMember(ctx, p, dungeon.ID, httptypes.JoinRequest{PlayerID: p}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	carol := newClient(t, srv, "carol")

	if g, ok := carol.store.Get(dungeon.ID); !ok || g.OccupiedCount() != 2 {
		t.Fatalf("expected the dungeon cached with 2 members, got %+v", g)
	}

	if _, err := carol.workflow.Join(ctx, dungeon.ID, "carol", ""); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}

	ev := carol.nextEvent(t)
	if ev.Kind != completion.Completed || ev.Group.ID != dungeon.ID {
		t.Fatalf("expected the dungeon to complete, got %+v", ev)
	}
	if !carol.supervisor.Running() {
		t.Fatalf("expected the liveness refresh to run while carol is in an active group")
	}

	_, err := carol.workflow.Join(ctx, gvg.ID, "carol", "Tank")

	var conflict *membership.Conflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, got %v", err)
	}
	if conflict.Existing.ID != dungeon.ID || conflict.Destination != gvg.ID {
		t.Fatalf("unexpected conflict %+v", conflict)
	}
	if carol.workflow.Pending() != conflict {
		t.Fatalf("expected the conflict to be pending")
	}

	joined, err := carol.workflow.Confirm(ctx, conflict)
	if err != nil {
		t.Fatalf("unexpected confirm error: %v", err)
	}
	if joined.ID != gvg.ID || joined.SlotOf("carol") != 0 {
		t.Fatalf("expected carol in the Tank slot of %s, got %+v", gvg.ID, joined)
	}
	if conflict.Reason() != membership.ReasonConfirmed {
		t.Fatalf("expected the conflict to be confirmed, got %q", conflict.Reason())
	}

	ev = carol.nextEvent(t)
	if ev.Kind != completion.Cleared || ev.Group.ID != dungeon.ID {
		t.Fatalf("expected the celebration to clear, got %+v", ev)
	}

	eventually(t, func() bool {
		d, _ := carol.store.Get(dungeon.ID)
		g, _ := carol.store.Get(gvg.ID)
		return !d.HasOccupant("carol") && g.HasOccupant("carol")
	})

	active, err := svc.GetActiveGroup(ctx, "carol")
	if err != nil || active.ID != gvg.ID {
		t.Fatalf("expected the service to hold carol in %s, got %s %v", gvg.ID, active.ID, err)
	}
}

func TestRosterView_ConflictClosesWhenExistingGroupIsDeleted(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()

	gvg, _ := svc.CreateGroup(ctx, "creator", httptypes.CreateGroupRequest{Name: "GvG", Roles: []string{"Tank", "Heal"}})
	raid, _ := svc.CreateGroup(ctx, "creator", httptypes.CreateGroupRequest{Name: "Raid", Roles: []string{"Tank", "DPS"}})
	if _, err := svc.AddMember(ctx, "carol", gvg.ID, httptypes.JoinRequest{PlayerID: "carol"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	carol := newClient(t, srv, "carol")

	_, err := carol.workflow.Join(ctx, raid.ID, "carol", "")

	var conflict *membership.Conflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, got %v", err)
	}

	if err := svc.DeleteGroup(ctx, "creator", gvg.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-conflict.Done():
	case <-time.After(waitFor):
		t.Fatalf("conflict still pending after the existing group was deleted")
	}
	if conflict.Reason() != membership.ReasonExistingGone {
		t.Fatalf("expected %q, got %q", membership.ReasonExistingGone, conflict.Reason())
	}
	if carol.workflow.Pending() != nil {
		t.Fatalf("expected no pending conflict")
	}

	if _, err := carol.workflow.Confirm(ctx, conflict); !errors.Is(err, membership.ErrNoPendingConflict) {
		t.Fatalf("expected a closed conflict to be unconfirmable, got %v", err)
	}
	if _, err := carol.workflow.Join(ctx, raid.ID, "carol", ""); err != nil {
		t.Fatalf("expected carol to join freely, got %v", err)
	}
}

func TestRosterView_DeactivateReleasesEverything(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "creator", httptypes.CreateGroupRequest{Name: "GvG", Roles: []string{"Tank"}, JoinRole: "Tank"})

	creator := newClient(t, srv, "creator")
	if !creator.supervisor.Running() {
		t.Fatalf("expected the liveness refresh to run")
	}

	creator.session.Deactivate()

	if creator.session.Active() || creator.supervisor.Running() {
		t.Fatalf("expected everything released")
	}

	if err := svc.DeleteGroup(ctx, "creator", g.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, ok := creator.store.Get(g.ID); !ok {
		t.Fatalf("expected a released view to stop following the push channel")
	}
}

// newPullOnly returns a workflow over a cache that only changes when hydrate
// is called, so it can be made to fall behind the service on purpose.
func newPullOnly(t *testing.T, srv *httptest.Server, playerID string) (*membership.Workflow, *store.Store, func()) {
	t.Helper()

	logger := logging.NewNoopLogger()
	tracer := tracing.NewNoopTracer()

	s := store.NewStore(logger)
	rc := remote.NewClient(srv.URL, "", playerID, waitFor, tracer, monitoring.NewNoopMonitor("test"), logger)

	w := membership.NewWorkflow(rc, s, playerID, tracer, logger)
	w.Attach()
	t.Cleanup(w.Close)

	hydrate := func() {
		groups, err := rc.ListGroups(context.Background())
		if err != nil {
			t.Fatalf("pull failed: %v", err)
		}
		s.ReplaceAll(groups)
	}
	hydrate()

	return w, s, hydrate
}

func TestRosterView_ConfirmedCreateMovesTheCreator(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()

	dungeon, _ := svc.CreateGroup(ctx, "creator", httptypes.CreateGroupRequest{Name: "Dungeon", Roles: []string{"Tank", "Heal"}})
	if _, err := svc.AddMember(ctx, "alice", dungeon.ID, httptypes.JoinRequest{PlayerID: "alice", Role: "Heal"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w, s, _ := newPullOnly(t, srv, "alice")

	_, err := w.CreateGroup(ctx, httptypes.CreateGroupRequest{Name: "GvG", Roles: []string{"Tank", "Heal"}, JoinRole: "Tank"})

	var conflict *membership.Conflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, got %v", err)
	}
	if conflict.Create == nil || conflict.Existing.ID != dungeon.ID {
		t.Fatalf("expected a creation conflict against %s, got %+v", dungeon.ID, conflict)
	}

	created, err := w.Confirm(ctx, conflict)
	if err != nil {
		t.Fatalf("unexpected confirm error: %v", err)
	}
	if created.Name != "GvG" || created.SlotOf("alice") != 0 {
		t.Fatalf("expected alice in the Tank slot of a new GvG group, got %+v", created)
	}

	active, err := svc.GetActiveGroup(ctx, "alice")
	if err != nil || active.ID != created.ID {
		t.Fatalf("expected the service to hold alice in %s, got %s %v", created.ID, active.ID, err)
	}
	if d, _ := s.Get(dungeon.ID); d.HasOccupant("alice") {
		t.Fatalf("expected alice out of the dungeon in the cache")
	}
}

func TestRosterView_StaleSlotEditKeepsLateJoiners(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()

	g, _ := svc.CreateGroup(ctx, "creator", httptypes.CreateGroupRequest{Name: "Dungeon", Roles: []string{"Tank", "Heal"}})

	w, _, hydrate := newPullOnly(t, srv, "creator")

	if _, err := svc.AddMember(ctx, "bob", g.ID, httptypes.JoinRequest{PlayerID: "bob", Role: "Heal"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := w.AddSlot(ctx, g.ID, "DPS")
	if kind := membership.KindOf(err); kind != membership.KindStale {
		t.Fatalf("expected a stale edit, got %s (%v)", kind, err)
	}

	stored, _ := svc.GetGroup(ctx, g.ID)
	if !stored.HasOccupant("bob") || stored.Capacity() != 2 {
		t.Fatalf("expected the service group untouched, got %+v", stored.Slots)
	}

	hydrate()

	updated, err := w.AddSlot(ctx, g.ID, "DPS")
	if err != nil {
		t.Fatalf("unexpected error after refreshing: %v", err)
	}
	if !updated.HasOccupant("bob") || updated.Capacity() != 3 {
		t.Fatalf("expected bob kept and a third slot, got %+v", updated.Slots)
	}
}
