// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/internal/types"
)

type recordingMonitor struct {
	monitoring.NoopMonitor
	routes []string
}

func (m *recordingMonitor) SetResponseTimeMetric(tags map[string]string, _ float64) error {
	m.routes = append(m.routes, tags["route"]+" "+tags["status"])
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingMonitor) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	monitor := new(recordingMonitor)
	return NewClient(srv.URL+"/", "secret", "p1", 5*time.Second, tracing.NewNoopTracer(), monitor, logging.NewNoopLogger()), monitor
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ListGroups(t *testing.T) {
	groups := []types.Group{
		{ID: "g1", Status: types.StatusActive, Slots: []types.Slot{{Role: "Tank"}}},
	}

	testCases := []struct {
		name string
		body interface{}
	}{
		{name: "bare array", body: groups},
		{name: "data envelope", body: httptypes.Response{Data: groups, Status: http.StatusOK}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, monitor := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/groups" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("unexpected authorization header %q", got)
				}
				if got := r.Header.Get(httptypes.ActorHeader); got != "p1" {
					t.Errorf("unexpected actor header %q", got)
				}
				writeJSON(w, http.StatusOK, tc.body)
			})

			got, err := c.ListGroups(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 1 || got[0].ID != "g1" {
				t.Fatalf("unexpected groups %+v", got)
			}
			if len(monitor.routes) != 1 || monitor.routes[0] != "GET /groups 200" {
				t.Fatalf("unexpected metrics %v", monitor.routes)
			}
		})
	}
}

func TestClient_AddMemberConflict(t *testing.T) {
	existing := types.Group{ID: "g1", Name: "Dungeon Tuesday", Status: types.StatusActive, Slots: []types.Slot{{Role: "Heal", Occupant: &types.Player{ID: "p1"}}}}

	c, monitor := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups/g2/members" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req httptypes.JoinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode join request: %v", err)
		}
		if req.PlayerID != "p1" || req.Role != "DPS" {
			t.Errorf("unexpected join request %+v", req)
		}
		writeJSON(w, http.StatusConflict, httptypes.ErrorResponse{
			Status:        http.StatusConflict,
			Code:          httptypes.CodeAlreadyInActiveGroup,
			Message:       "already in an active group",
			ExistingGroup: &existing,
		})
	})

	_, err := c.AddMember(context.Background(), "g2", httptypes.JoinRequest{PlayerID: "p1", Role: "DPS"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Code != httptypes.CodeAlreadyInActiveGroup {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if apiErr.ExistingGroup == nil || apiErr.ExistingGroup.ID != "g1" {
		t.Fatalf("expected existing group g1, got %+v", apiErr.ExistingGroup)
	}
	if !errors.Is(err, &APIError{Code: httptypes.CodeAlreadyInActiveGroup}) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if monitor.routes[0] != "POST /groups/{id}/members 409" {
		t.Fatalf("unexpected route label %q", monitor.routes[0])
	}
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := c.DeleteGroup(context.Background(), "g1")

	if !errors.Is(err, &APIError{Status: http.StatusForbidden}) {
		t.Fatalf("expected 403 api error, got %v", err)
	}
}

func TestClient_RemoveMemberNoContent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/groups/g1/members/p1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	g, err := c.RemoveMember(context.Background(), "g1", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID != "" {
		t.Fatalf("expected zero group, got %+v", g)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", "", time.Second, tracing.NewNoopTracer(), monitoring.NewNoopMonitor("test"), logging.NewNoopLogger())

	_, err := c.ListGroups(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestRouteOf(t *testing.T) {
	tests := map[string]string{
		"/groups":                 "/groups",
		"/groups/abc":             "/groups/{id}",
		"/groups/abc/members":     "/groups/{id}/members",
		"/groups/abc/members/p-1": "/groups/{id}/members/{id}",
		"/groups/active/p-1":      "/groups/active/{id}",
	}

	for in, want := range tests {
		if got := routeOf(in); got != want {
			t.Fatalf("routeOf(%q) = %q, want %q", in, got, want)
		}
	}
}
