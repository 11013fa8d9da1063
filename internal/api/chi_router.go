// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/engagement/internal/auth"
	"github.com/tomtom215/engagement/internal/authz"
	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/middleware"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. Authentication and authorization failures are
// rendered in the response envelope.
func NewRouter(handler *Handler, authMiddleware *auth.Middleware, authzMiddleware *authz.Middleware, sec *config.SecurityConfig) *Router {
	writeAuthError := func(w http.ResponseWriter, r *http.Request, status int, err error) {
		code := ErrCodeUnauthenticated
		switch status {
		case http.StatusForbidden:
			code = ErrCodeUnauthorized
		case http.StatusInternalServerError:
			code = ErrCodeInternalError
		}
		NewResponseWriter(w, r).Error(status, code, err.Error())
	}
	authMiddleware.SetErrorWriter(writeAuthError)
	authzMiddleware.SetErrorWriter(writeAuthError)
	return &Router{
		handler:       handler,
		auth:          authMiddleware,
		authz:         authzMiddleware,
		chiMiddleware: NewChiMiddleware(ChiMiddlewareConfigFrom(sec)),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to ALL routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/health/live", router.handler.HealthLive)
	r.Get("/health/ready", router.handler.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitByIP())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)

		// Public reads and view beacons
		r.Group(func(r chi.Router) {
			r.Use(router.auth.OptionalCaller)
			r.Get("/content/{id}", router.handler.GetContent)
			r.Post("/content/{id}/views", router.handler.RecordView)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.auth.RequireCaller)
			r.Use(router.chiMiddleware.RateLimitByCaller())

			r.Post("/content", router.handler.CreateContent)
			r.Delete("/content/{id}", router.handler.DeleteContent)
			r.Post("/content/{id}/like", router.handler.ToggleLike)
			r.Post("/content/{id}/save", router.handler.ToggleSave)
			r.Post("/content/{id}/repost", router.handler.ToggleRepost)
			r.Post("/content/{id}/comments", router.handler.AddComment)
			r.Get("/content/{id}/analytics", router.handler.Breakdown)
			r.Get("/analytics/overview", router.handler.Overview)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(router.auth.RequireCaller)
			r.Use(router.authz.Authorize(authz.ObjectAnomalies, authz.ActionRead))
			r.Get("/anomalies", router.handler.Anomalies)
		})
	})

	return r
}
