// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/engagement/internal/breaker"
	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/models"
)

const maxErrorBodySize = 4 * 1024

type batchRequest struct {
	IDs []string `json:"ids"`
}

type batchResponse struct {
	Users []models.Identity `json:"users"`
}

// HTTPDirectory calls the profile service's batch endpoint:
//
//	POST {url}  {"ids": ["u1", "u2"]}  ->  {"users": [{"id", "name", "avatar"}]}
//
// Calls go through a circuit breaker so a failing profile service degrades
// breakdown queries to placeholders instead of stalling them.
type HTTPDirectory struct {
	url     string
	client  *http.Client
	breaker *breaker.Breaker
}

// NewHTTPDirectory creates a client for cfg.URL.
func NewHTTPDirectory(cfg *config.IdentityConfig) *HTTPDirectory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPDirectory{
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker.New("identity-directory", cfg.BreakerFailures, cfg.BreakerTimeout),
	}
}

func (d *HTTPDirectory) BatchResolve(ctx context.Context, ids []string) (map[string]models.Identity, error) {
	out := make(map[string]models.Identity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	err := d.breaker.Execute(func() error {
		users, err := d.fetch(ctx, ids)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.ID != "" {
				out[u.ID] = u
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("identity directory: %w", err)
	}
	return out, nil
}

func (d *HTTPDirectory) fetch(ctx context.Context, ids []string) ([]models.Identity, error) {
	body, err := json.Marshal(batchRequest{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded.Users, nil
}
