// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/engagement/internal/models"
	"github.com/tomtom215/engagement/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

type createContentRequest struct {
	Type       string `json:"type" validate:"required,content_type"`
	Visibility string `json:"visibility" validate:"omitempty,visibility"`
	Body       string `json:"body" validate:"max=10000"`
	MediaURL   string `json:"mediaUrl" validate:"omitempty,url,max=2048"`
}

type repostRequest struct {
	Platform string `json:"platform" validate:"omitempty,platform"`
}

type commentRequest struct {
	Content         string `json:"content" validate:"required"`
	ParentCommentID string `json:"parentCommentId" validate:"omitempty,max=64"`
}

type viewRequest struct {
	WatchTimeMs *int64 `json:"watchTimeMs" validate:"omitempty,min=0"`
}

type pageQuery struct {
	Offset int `json:"offset" validate:"min=0"`
	Limit  int `json:"limit" validate:"min=0"`
}

type anomalyQuery struct {
	ContentID string     `json:"contentId" validate:"omitempty,max=64"`
	Field     string     `json:"field" validate:"omitempty,oneof=totalLikes totalSaves totalReposts totalComments"`
	Since     *time.Time `json:"since"`
	Limit     int        `json:"limit" validate:"min=0,max=1000"`
}

type likeResponse struct {
	Liked      bool  `json:"liked"`
	TotalLikes int64 `json:"totalLikes"`
}

type saveResponse struct {
	Saved      bool  `json:"saved"`
	TotalSaves int64 `json:"totalSaves"`
}

type repostResponse struct {
	Reposted     bool  `json:"reposted"`
	TotalReposts int64 `json:"totalReposts"`
}

// decodeBody decodes and validates a JSON body into dst. When optional is
// set an empty body leaves dst at its zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && optional:
		case errors.Is(err, io.EOF):
			return models.NewValidationError("body", "is required")
		case errors.As(err, &tooLarge):
			return models.NewValidationError("body", "must be at most %d bytes", tooLarge.Limit)
		default:
			return models.NewValidationError("body", "is not valid JSON")
		}
	}
	return validation.ValidateStruct(dst)
}

// parsePage reads offset and limit query parameters.
func parsePage(r *http.Request) (models.Page, error) {
	q := pageQuery{}
	var err error
	if q.Offset, err = intParam(r, "offset"); err != nil {
		return models.Page{}, err
	}
	if q.Limit, err = intParam(r, "limit"); err != nil {
		return models.Page{}, err
	}
	if err := validation.ValidateStruct(&q); err != nil {
		return models.Page{}, err
	}
	return models.Page{Offset: q.Offset, Limit: q.Limit}, nil
}

func parseAnomalyQuery(r *http.Request) (anomalyQuery, error) {
	q := anomalyQuery{
		ContentID: r.URL.Query().Get("contentId"),
		Field:     r.URL.Query().Get("field"),
	}
	var err error
	if q.Limit, err = intParam(r, "limit"); err != nil {
		return q, err
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, models.NewValidationError("since", "must be an RFC3339 timestamp")
		}
		q.Since = &t
	}
	return q, validation.ValidateStruct(&q)
}

func intParam(r *http.Request, name string) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, models.NewValidationError(name, "must be an integer")
	}
	return n, nil
}
