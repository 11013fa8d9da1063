// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package middleware provides HTTP middleware shared by every route group:
// request ID propagation, Prometheus request metrics, access logging and
// gzip response compression.
//
// All middleware use the func(http.Handler) http.Handler shape so they can be
// passed directly to chi's r.Use().
package middleware
