// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package authz

import (
	"errors"
	"net/http"

	"github.com/tomtom215/engagement/internal/auth"
	"github.com/tomtom215/engagement/internal/logging"
)

var errForbidden = errors.New("insufficient permissions")

// Middleware guards routes with the enforcer. It must run after the caller
// has been authenticated.
type Middleware struct {
	enforcer   *Enforcer
	writeError auth.ErrorWriter
}

// NewMiddleware creates authorization middleware backed by enforcer.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		writeError: func(w http.ResponseWriter, _ *http.Request, status int, err error) {
			http.Error(w, err.Error(), status)
		},
	}
}

// SetErrorWriter replaces the plain-text error renderer.
func (m *Middleware) SetErrorWriter(fn auth.ErrorWriter) {
	if fn != nil {
		m.writeError = fn
	}
}

// Authorize admits callers allowed to perform action on object. No owner
// is passed, so only role grants apply.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.CallerID(r.Context())
			allowed, err := m.enforcer.Enforce(caller, "", object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Str("object", object).Msg("Authorization error")
				m.writeError(w, r, http.StatusInternalServerError, errors.New("internal server error"))
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Debug().Str("object", object).Str("action", action).Msg("Authorization denied")
				m.writeError(w, r, http.StatusForbidden, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
