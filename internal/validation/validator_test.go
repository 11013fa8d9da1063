// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package validation

import (
	"errors"
	"testing"

	"github.com/tomtom215/engagement/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type sample struct {
	Type       string `json:"type" validate:"required,content_type"`
	Visibility string `json:"visibility" validate:"omitempty,visibility"`
	Platform   string `json:"platform" validate:"omitempty,platform"`
	MediaURL   string `json:"mediaUrl" validate:"omitempty,url"`
	Limit      int    `json:"limit" validate:"min=0,max=100"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     sample
		wantField string
		wantMsg   string
	}{
		{name: "valid", input: sample{Type: "reel", Platform: "WhatsApp", MediaURL: "https://cdn/x.mp4", Limit: 10}},
		{name: "missing type", input: sample{}, wantField: "type", wantMsg: "is required"},
		{name: "bad type", input: sample{Type: "story"}, wantField: "type", wantMsg: "must be one of post, reel"},
		{name: "bad visibility", input: sample{Type: "post", Visibility: "friends"}, wantField: "visibility"},
		{name: "bad platform", input: sample{Type: "post", Platform: "myspace"}, wantField: "platform"},
		{name: "bad url", input: sample{Type: "post", MediaURL: "not a url"}, wantField: "mediaUrl", wantMsg: "must be a valid URL"},
		{name: "limit too big", input: sample{Type: "post", Limit: 101}, wantField: "limit", wantMsg: "must be at most 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ValidateStruct() = %v, want *models.ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
			}
			if tt.wantMsg != "" && ve.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", ve.Message, tt.wantMsg)
			}
			if !models.IsValidationError(err) {
				t.Error("IsValidationError() = false")
			}
		})
	}
}

func TestValidateStruct_CollectsAllFields(t *testing.T) {
	err := ValidateStruct(&sample{Platform: "myspace", Limit: -1})
	var rve *RequestValidationError
	if !errors.As(err, &rve) {
		t.Fatalf("err = %T, want *RequestValidationError", err)
	}
	if got := len(rve.Errors()); got != 3 {
		t.Errorf("collected %d errors, want 3: %v", got, err)
	}
}
