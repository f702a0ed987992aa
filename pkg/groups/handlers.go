// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package groups

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/internal/types"
)

type API struct {
	service ServiceInterface
	hub     http.Handler

	middlewares chi.Middlewares

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux *chi.Mux) {
	r := mux.With(a.middlewares...)

	r.Get("/groups", a.handleListGroups)
	r.Post("/groups", a.handleCreateGroup)
	r.Get("/groups/active/{player_id}", a.handleGetActiveGroup)
	r.Get("/groups/{group_id}", a.handleGetGroup)
	r.Put("/groups/{group_id}", a.handleUpdateGroup)
	r.Delete("/groups/{group_id}", a.handleDeleteGroup)
	r.Post("/groups/{group_id}/members", a.handleAddMember)
	r.Delete("/groups/{group_id}/members/{player_id}", a.handleRemoveMember)

	if a.hub != nil {
		r.Handle("/ws", a.hub)
	}
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.service.ListGroups(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeData(w, http.StatusOK, groups, "List of groups")
}

func (a *API) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := a.service.GetGroup(r.Context(), chi.URLParam(r, "group_id"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeData(w, http.StatusOK, group, "Group details")
}

func (a *API) handleGetActiveGroup(w http.ResponseWriter, r *http.Request) {
	group, err := a.service.GetActiveGroup(r.Context(), chi.URLParam(r, "player_id"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeData(w, http.StatusOK, group, "Active group")
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req httptypes.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, NewValidationError("body", "invalid request body", "CreateGroup"))
		return
	}

	group, err := a.service.CreateGroup(r.Context(), actor(r), req)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeData(w, http.StatusCreated, group, fmt.Sprintf("Created group %s", group.Name))
}

func (a *API) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var group types.Group
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		a.writeError(w, NewValidationError("body", "invalid request body", "UpdateGroup"))
		return
	}

	updated, err := a.service.UpdateGroup(r.Context(), actor(r), chi.URLParam(r, "group_id"), group)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeData(w, http.StatusOK, updated, "Updated group")
}

func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteGroup(r.Context(), actor(r), chi.URLParam(r, "group_id")); err != nil {
		a.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddMember(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req httptypes.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, NewValidationError("body", "invalid request body", "AddMember"))
		return
	}

	group, err := a.service.AddMember(r.Context(), actor(r), chi.URLParam(r, "group_id"), req)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeData(w, http.StatusOK, group, "Joined group")
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	group, err := a.service.RemoveMember(r.Context(), actor(r), chi.URLParam(r, "group_id"), chi.URLParam(r, "player_id"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeData(w, http.StatusOK, group, "Left group")
}

func (a *API) writeData(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(httptypes.Response{Data: data, Message: message, Status: status}); err != nil {
		a.logger.Errorf("failed to encode response: %v", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	rr := httptypes.ErrorResponse{
		Status:  http.StatusInternalServerError,
		Code:    httptypes.CodeInternalError,
		Message: err.Error(),
	}

	var gErr *GroupError
	if errors.As(err, &gErr) {
		rr.Status = gErr.Status()
		rr.Code = gErr.Code
		rr.ExistingGroup = gErr.ExistingGroup
	} else {
		a.logger.Errorf("unexpected error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rr.Status)

	if err := json.NewEncoder(w).Encode(rr); err != nil {
		a.logger.Errorf("failed to encode error response: %v", err)
	}
}

func actor(r *http.Request) string {
	return r.Header.Get(httptypes.ActorHeader)
}

// NewAPI returns the REST handlers of the membership service. hub may be nil
// when no push channel is served.
func NewAPI(
	service ServiceInterface,
	hub http.Handler,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
	middlewares ...func(http.Handler) http.Handler,
) *API {
	a := new(API)

	a.service = service
	a.hub = hub
	a.middlewares = middlewares

	a.tracer = tracer
	a.monitor = monitor
	a.logger = logger

	return a
}
