// Copyright 2025 Canonical Ltd
// SPDX-License-Identifier: AGPL-3.0

package web

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
	"github.com/canonical/roster-sync/pkg/authentication"
	groups_api "github.com/canonical/roster-sync/pkg/groups"
	"github.com/canonical/roster-sync/pkg/metrics"
	"github.com/canonical/roster-sync/pkg/status"
)

// NewRouter serves the membership service on top of db. When verifier is
// not nil every roster route, the push channel included, requires a bearer
// token it accepts.
func NewRouter(
	db *groups_api.Storage,
	verifier authentication.TokenVerifierInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) http.Handler {
	router := chi.NewMux()

	middlewares := make(chi.Middlewares, 0)
	middlewares = append(
		middlewares,
		middleware.RequestID,
		monitoring.NewMiddleware(monitor, logger).ResponseTime(),
		middlewareCORS([]string{"*"}),
		middleware.RequestLogger(logging.NewLogFormatter(logger)), // LogFormatter will only work if logger is set to DEBUG level
	)

	router.Use(middlewares...)

	groupMiddlewares := make([]func(http.Handler) http.Handler, 0, 1)
	if verifier != nil {
		groupMiddlewares = append(groupMiddlewares, authentication.NewMiddleware(verifier, tracer, monitor, logger).Authenticate())
	}

	hub := groups_api.NewHub(db, tracer, monitor, logger)
	groupService := groups_api.NewService(db, hub, tracer, monitor, logger)

	groups_api.NewAPI(groupService, hub, tracer, monitor, logger, groupMiddlewares...).RegisterEndpoints(router)
	metrics.NewAPI(logger).RegisterEndpoints(router)
	status.NewAPI(hub, tracer, monitor, logger).RegisterEndpoints(router)

	return tracing.NewMiddleware(monitor, logger).OpenTelemetry(router)
}
