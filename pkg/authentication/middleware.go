// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authentication

import (
	"encoding/json"
	"net/http"
	"strings"

	httptypes "github.com/canonical/roster-sync/internal/http/types"
	"github.com/canonical/roster-sync/internal/logging"
	"github.com/canonical/roster-sync/internal/monitoring"
	"github.com/canonical/roster-sync/internal/tracing"
)

// pushTokenParam carries the token on push channel upgrades, for websocket
// clients that cannot set request headers.
const pushTokenParam = "access_token"

// Middleware guards the roster routes with a shared bearer token.
type Middleware struct {
	verifier TokenVerifierInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (m *Middleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := m.tracer.Start(r.Context(), "authentication.Middleware.Authenticate")
			defer span.End()

			player := r.Header.Get(httptypes.ActorHeader)

			token, found := credentials(r)
			if !found {
				m.reject(w, r, player, "roster access needs a bearer token")
				return
			}

			authorized, err := m.verifier.VerifyToken(ctx, token)
			if err != nil {
				m.logger.Debugf("roster token check failed for player %q: %v", player, err)
				m.reject(w, r, player, "roster access token could not be checked")
				return
			}
			if !authorized {
				m.reject(w, r, player, "roster access token rejected")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// credentials returns the bearer token of r. The auth scheme is matched
// case-insensitively. Push channel upgrades may pass it as a query parameter.
func credentials(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}

	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return "", false
	}
	token := r.URL.Query().Get(pushTokenParam)
	return token, token != ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, player, message string) {
	m.logger.Debugf("refused %s %s for player %q: %s", r.Method, r.URL.Path, player, message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(httptypes.ErrorResponse{
		Status:  http.StatusUnauthorized,
		Code:    httptypes.CodeUnauthorized,
		Message: message,
	}); err != nil {
		m.logger.Errorf("failed to encode unauthorized response: %v", err)
	}
}

func NewMiddleware(verifier TokenVerifierInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Middleware {
	m := new(Middleware)

	m.verifier = verifier

	m.tracer = tracer
	m.monitor = monitor
	m.logger = logger

	return m
}
