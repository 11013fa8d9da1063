// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/engagement/internal/breaker"
	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/logging"
)

// Bus owns the event publisher and whatever it runs on.
type Bus struct {
	*Publisher

	server *EmbeddedServer
	memory *gochannel.GoChannel
}

// Open builds the bus selected by cfg.Transport. For "nats" with
// EmbeddedServer set, a local JetStream server is started first.
func Open(ctx context.Context, cfg *config.EventsConfig) (*Bus, error) {
	br := breaker.New("events-publisher", 5, 30*time.Second)
	logger := NewLoggerAdapter()

	switch cfg.Transport {
	case "memory":
		mem := NewMemoryPubSub(logger)
		logging.Info().Msg("Interaction events published in-process")
		return &Bus{Publisher: NewPublisher(mem, cfg.SubjectPrefix, br), memory: mem}, nil

	case "nats":
		bus := &Bus{}
		url := cfg.URL
		if cfg.EmbeddedServer {
			srv, err := StartEmbeddedServer("127.0.0.1", -1, cfg.StoreDir)
			if err != nil {
				return nil, err
			}
			bus.server = srv
			url = srv.ClientURL()
			logging.Info().Str("url", url).Msg("Embedded NATS server started")
		}

		if err := EnsureStreamAt(ctx, url, StreamConfig(cfg.StreamName, cfg.SubjectPrefix)); err != nil {
			bus.shutdownServer()
			return nil, err
		}
		pub, err := NewNATSPublisher(NATSConfig{
			URL:           url,
			MaxReconnects: cfg.MaxReconnects,
			ReconnectWait: cfg.ReconnectWait,
		}, logger)
		if err != nil {
			bus.shutdownServer()
			return nil, err
		}
		bus.Publisher = NewPublisher(pub, cfg.SubjectPrefix, br)
		logging.Info().Str("url", url).Str("stream", cfg.StreamName).Msg("Interaction events published to NATS")
		return bus, nil
	}
	return nil, fmt.Errorf("unknown events transport %q", cfg.Transport)
}

// Subscriber returns the in-process subscriber, or nil for NATS.
func (b *Bus) Subscriber() message.Subscriber {
	if b.memory == nil {
		return nil
	}
	return b.memory
}

// Healthy reports whether the embedded server (if any) is running.
func (b *Bus) Healthy() bool {
	return b.server == nil || b.server.IsRunning()
}

// Close stops the publisher and then the embedded server.
func (b *Bus) Close() error {
	err := b.Publisher.Close()
	b.shutdownServer()
	return err
}

func (b *Bus) shutdownServer() {
	if b.server != nil {
		b.server.Shutdown()
		b.server = nil
	}
}
