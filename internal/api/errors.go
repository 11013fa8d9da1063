// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/models"
	"github.com/tomtom215/engagement/internal/validation"
)

// StatusClientClosedRequest is the nginx convention for a request the client
// abandoned before the response was ready.
const StatusClientClosedRequest = 499

// errorStatus maps a service error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case models.IsValidationError(err):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, models.ErrContentNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden, ErrCodeUnauthorized
	case errors.Is(err, models.ErrWriteConflict):
		return http.StatusConflict, ErrCodeWriteConflict
	case errors.Is(err, models.ErrCancelled):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusServiceUnavailable, ErrCodeTimeout
		}
		return StatusClientClosedRequest, ErrCodeCancelled
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// writeError renders err in the response envelope. Internal errors are
// logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	rw := NewResponseWriter(w, r)

	switch status {
	case http.StatusInternalServerError:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		rw.Error(status, code, "An internal error occurred")
		return
	case http.StatusBadRequest:
		rw.ErrorWithDetails(status, code, validationMessage(err), validationDetails(err))
		return
	}
	rw.Error(status, code, err.Error())
}

func validationMessage(err error) string {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

// validationDetails lists every failed field.
func validationDetails(err error) interface{} {
	var rve *validation.RequestValidationError
	if errors.As(err, &rve) {
		fields := make([]map[string]string, 0, len(rve.Errors()))
		for _, fe := range rve.Errors() {
			fields = append(fields, map[string]string{"field": fe.Field, "message": fe.Message})
		}
		return map[string]interface{}{"fields": fields}
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		return map[string]string{"field": ve.Field}
	}
	return nil
}
