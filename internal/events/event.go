// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package events publishes an InteractionEvent after every committed write so
// downstream consumers can follow engagement without polling the store.
// Delivery is best effort: a failed publish never fails the write.
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/engagement/internal/models"
)

// KindContent labels content lifecycle events.
const KindContent models.InteractionKind = "content"

// Action describes what happened to the record named by Kind.
type Action string

const (
	ActionAdded    Action = "added"
	ActionRemoved  Action = "removed"
	ActionRecorded Action = "recorded"
	ActionCreated  Action = "created"
	ActionDeleted  Action = "deleted"
)

// InteractionEvent is the message body published for each committed write.
type InteractionEvent struct {
	ID          string                 `json:"id"`
	Kind        models.InteractionKind `json:"kind"`
	Action      Action                 `json:"action"`
	ContentID   string                 `json:"contentId"`
	OwnerID     string                 `json:"ownerId"`
	UserID      string                 `json:"userId,omitempty"`
	Platform    models.Platform        `json:"platform,omitempty"`
	RecordID    string                 `json:"recordId,omitempty"`
	WatchTimeMs *int64                 `json:"watchTimeMs,omitempty"`
	Counted     bool                   `json:"counted,omitempty"`
	Version     uint64                 `json:"version"`
	Aggregate   models.Aggregate       `json:"aggregate"`
	Timestamp   time.Time              `json:"timestamp"`
}

// NewEvent builds an event carrying the post-commit state of item.
func NewEvent(kind models.InteractionKind, action Action, item *models.ContentItem, userID string) *InteractionEvent {
	return &InteractionEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		Action:    action,
		ContentID: item.ID,
		OwnerID:   item.OwnerID,
		UserID:    userID,
		Version:   item.Version,
		Aggregate: item.Aggregate,
		Timestamp: time.Now().UTC(),
	}
}

// Topic returns the subject the event is published on, e.g. "engagement.like".
func (e *InteractionEvent) Topic(prefix string) string {
	return prefix + "." + string(e.Kind)
}

// Marshal encodes the event as JSON.
func (e *InteractionEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	return data, nil
}

// Unmarshal decodes an event published by Marshal.
func Unmarshal(data []byte) (*InteractionEvent, error) {
	var e InteractionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}
