// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package status

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"

	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
)

// SubscriberCounterInterface reports live push subscriptions.
type SubscriberCounterInterface interface {
	Subscribers() int
}

type BuildInfo struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	Name       string `json:"name"`
}

type Status struct {
	Status          string     `json:"status"`
	PushSubscribers int        `json:"push_subscribers"`
	BuildInfo       *BuildInfo `json:"buildInfo,omitempty"`
}

type API struct {
	counter SubscriberCounterInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux *chi.Mux) {
	mux.Get("/api/v0/status", a.alive)
}

func (a *API) alive(w http.ResponseWriter, r *http.Request) {
	_, span := a.tracer.Start(r.Context(), "status.API.alive")
	defer span.End()

	rr := Status{Status: "ok", BuildInfo: buildInfo()}
	if a.counter != nil {
		rr.PushSubscribers = a.counter.Subscribers()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(rr); err != nil {
		a.logger.Errorf("failed to encode status: %v", err)
	}
}

func buildInfo() *BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	b := &BuildInfo{Name: info.Main.Path, Version: info.Main.Version}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			b.CommitHash = s.Value
		}
	}
	return b
}

// NewAPI returns the liveness endpoint. counter may be nil.
func NewAPI(counter SubscriberCounterInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *API {
	a := new(API)

	a.counter = counter

	a.tracer = tracer
	a.monitor = monitor
	a.logger = logger

	return a
}
