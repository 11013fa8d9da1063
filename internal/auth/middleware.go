// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package auth establishes the caller identity of HTTP requests, either from
// an HS256 bearer token or from a header set by a trusted gateway.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/logging"
)

// Authentication modes.
const (
	ModeJWT    = "jwt"
	ModeHeader = "header"
)

var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("credentials expired")
)

// ErrorWriter renders an authentication or authorization failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

// Middleware resolves the caller of each request.
type Middleware struct {
	mode        string
	jwtManager  *JWTManager
	userHeader  string
	tokenCookie string
	writeError  ErrorWriter
}

// NewMiddleware creates caller middleware for cfg.AuthMode. jwtManager is
// required in jwt mode and ignored otherwise.
func NewMiddleware(cfg *config.SecurityConfig, jwtManager *JWTManager) *Middleware {
	header := cfg.UserHeader
	if header == "" {
		header = "X-User-ID"
	}
	return &Middleware{
		mode:        cfg.AuthMode,
		jwtManager:  jwtManager,
		userHeader:  header,
		tokenCookie: "token",
		writeError: func(w http.ResponseWriter, _ *http.Request, status int, err error) {
			http.Error(w, err.Error(), status)
		},
	}
}

// SetErrorWriter replaces the plain-text error renderer.
func (m *Middleware) SetErrorWriter(fn ErrorWriter) {
	if fn != nil {
		m.writeError = fn
	}
}

// Authenticate returns the caller's user ID for r.
func (m *Middleware) Authenticate(r *http.Request) (string, error) {
	if m.mode == ModeHeader {
		id := strings.TrimSpace(r.Header.Get(m.userHeader))
		if id == "" {
			return "", ErrNoCredentials
		}
		return id, nil
	}

	token := m.extractToken(r)
	if token == "" {
		return "", ErrNoCredentials
	}
	if m.jwtManager == nil {
		return "", ErrInvalidCredentials
	}
	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredCredentials
		}
		return "", ErrInvalidCredentials
	}
	return claims.UserID(), nil
}

// RequireCaller rejects requests without valid credentials.
func (m *Middleware) RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Authenticate(r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			m.writeError(w, r, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.ContextWithCallerID(r.Context(), id)))
	})
}

// OptionalCaller lets anonymous requests through. Credentials that are
// present but invalid are still rejected.
func (m *Middleware) OptionalCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Authenticate(r)
		switch {
		case errors.Is(err, ErrNoCredentials):
			next.ServeHTTP(w, r)
		case err != nil:
			m.writeError(w, r, http.StatusUnauthorized, err)
		default:
			next.ServeHTTP(w, r.WithContext(logging.ContextWithCallerID(r.Context(), id)))
		}
	})
}

// CallerID returns the authenticated caller stored by the middleware, or ""
// for anonymous requests.
func CallerID(ctx context.Context) string {
	return logging.CallerIDFromContext(ctx)
}

// extractToken reads a bearer token from the Authorization header or cookie.
func (m *Middleware) extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(m.tokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
