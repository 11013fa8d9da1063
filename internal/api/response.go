// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/engagement/internal/logging"
)

// APIResponse is the JSON envelope. Exactly one of Data and Error is set.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError carries a stable Code from the ErrCode constants and a
// human-readable Message.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type APIMeta struct {
	RequestID  string          `json:"requestId,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	DurationMs int64           `json:"durationMs"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// PaginationMeta describes the page returned by an offset/limit listing.
type PaginationMeta struct {
	Count   int  `json:"count"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// Error codes. Each maps one engagement error kind onto the wire.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "CONTENT_NOT_FOUND"
	ErrCodeWriteConflict      = "WRITE_CONFLICT"
	ErrCodeCancelled          = "CANCELLED"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ResponseWriter renders envelopes for a single request. The request's
// start time feeds meta.durationMs.
type ResponseWriter struct {
	w       http.ResponseWriter
	r       *http.Request
	started time.Time
}

func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, started: time.Now()}
}

func (rw *ResponseWriter) Success(data interface{}) {
	rw.ok(http.StatusOK, data, nil)
}

func (rw *ResponseWriter) SuccessWithPagination(data interface{}, page *PaginationMeta) {
	rw.ok(http.StatusOK, data, page)
}

func (rw *ResponseWriter) Created(data interface{}) {
	rw.ok(http.StatusCreated, data, nil)
}

// NoContent writes a bare 204; no envelope is sent.
func (rw *ResponseWriter) NoContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

func (rw *ResponseWriter) Error(status int, code, message string) {
	rw.ErrorWithDetails(status, code, message, nil)
}

// ErrorWithDetails attaches details, e.g. per-component readiness, to the
// error object.
func (rw *ResponseWriter) ErrorWithDetails(status int, code, message string, details interface{}) {
	rw.send(status, &APIResponse{
		Error: &APIError{Code: code, Message: message, Details: details},
	}, nil)
}

func (rw *ResponseWriter) ok(status int, data interface{}, page *PaginationMeta) {
	rw.send(status, &APIResponse{Success: true, Data: data}, page)
}

func (rw *ResponseWriter) send(status int, env *APIResponse, page *PaginationMeta) {
	env.Meta = &APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.started).Milliseconds(),
		Pagination: page,
	}
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(env); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Int("status", status).Msg("Failed to encode response envelope")
	}
}
