// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package validation provides struct validation using go-playground/validator v10.
// It holds a thread-safe singleton validator with custom validators for the
// platform, content type and visibility enums, and reports failures as
// *models.ValidationError keyed by the JSON field name.
//
// Example usage:
//
//	type repostRequest struct {
//	    Platform string `json:"platform" validate:"omitempty,platform"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    writeError(w, r, err) // 400 VALIDATION_ERROR
//	    return
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/engagement/internal/models"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// RequestValidationError collects every field failure of one struct.
// errors.As(err, **models.ValidationError) yields the first failure.
type RequestValidationError struct {
	errors []*models.ValidationError
}

// Errors returns the field failures in declaration order.
func (ve *RequestValidationError) Errors() []*models.ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

func (ve *RequestValidationError) Unwrap() error {
	if len(ve.errors) == 0 {
		return nil
	}
	return ve.errors[0]
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report JSON names so messages match the request body.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		mustRegister("platform", func(s string) error { _, err := models.ParsePlatform(s); return err })
		mustRegister("content_type", func(s string) error { _, err := models.ParseContentType(s); return err })
		mustRegister("visibility", func(s string) error { _, err := models.ParseVisibility(s); return err })
	})

	return validate
}

func mustRegister(tag string, parse func(string) error) {
	err := validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return parse(fl.Field().String()) == nil
	})
	if err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// ValidateStruct validates s using the singleton validator. It returns nil
// or a *RequestValidationError.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{errors: []*models.ValidationError{
			models.NewValidationError("", "%s", err.Error()),
		}}
	}

	fieldErrors := make([]*models.ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = models.NewValidationError(fieldErr.Field(), "%s", translateError(fieldErr))
	}
	return &RequestValidationError{errors: fieldErrors}
}

// errorMessageTemplates maps validation tags to messages.
var errorMessageTemplates = map[string]string{
	"required":     "is required",
	"url":          "must be a valid URL",
	"uuid":         "must be a valid UUID",
	"platform":     "must be one of whatsapp, instagram, twitter, facebook, copy, none",
	"content_type": "must be one of post, reel",
	"visibility":   "must be one of public, private",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"oneof": "must be one of: %s",
	"gte":   "must be greater than or equal to %s",
	"lte":   "must be less than or equal to %s",
	"gt":    "must be greater than %s",
	"lt":    "must be less than %s",
}

func translateError(fe validator.FieldError) string {
	tag := fe.Tag()
	param := fe.Param()

	if msg, ok := errorMessageTemplates[tag]; ok {
		return msg
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", param)
		}
		return fmt.Sprintf("must be at least %s", param)
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", param)
		}
		return fmt.Sprintf("must be at most %s", param)
	default:
		return fmt.Sprintf("failed %s validation", tag)
	}
}
