// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/engagement/internal/breaker"
	"github.com/tomtom215/engagement/internal/metrics"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher wraps a Watermill publisher with a circuit breaker and the
// interaction event codec.
type Publisher struct {
	publisher message.Publisher
	breaker   *breaker.Breaker
	prefix    string

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub. Events are published on "<prefix>.<kind>".
// A nil breaker disables circuit breaking.
func NewPublisher(pub message.Publisher, prefix string, br *breaker.Breaker) *Publisher {
	if prefix == "" {
		prefix = "engagement"
	}
	return &Publisher{publisher: pub, breaker: br, prefix: prefix}
}

// NATSConfig holds the connection settings for NewNATSPublisher.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NewNATSPublisher creates a JetStream-backed Watermill publisher. The stream
// must already exist (see EnsureStream).
func NewNATSPublisher(cfg NATSConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// NewMemoryPubSub creates an in-process Watermill pub/sub. Messages published
// with no subscriber are dropped.
func NewMemoryPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = NewLoggerAdapter()
	}
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
}

// Publish encodes evt and sends it on its topic. The message UUID doubles as
// the JetStream dedup ID.
func (p *Publisher) Publish(ctx context.Context, evt *InteractionEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	data, err := evt.Marshal()
	if err != nil {
		return err
	}
	msg := message.NewMessage(evt.ID, data)
	msg.Metadata.Set(natsgo.MsgIdHdr, evt.ID)
	msg.Metadata.Set("kind", string(evt.Kind))
	msg.Metadata.Set("action", string(evt.Action))
	msg.Metadata.Set("content_id", evt.ContentID)
	msg.SetContext(ctx)

	topic := evt.Topic(p.prefix)
	publish := func() error { return p.publisher.Publish(topic, msg) }
	if p.breaker != nil {
		err = p.breaker.Execute(publish)
	} else {
		err = publish()
	}

	result := "ok"
	if err != nil {
		result = "error"
		if breaker.IsRejected(err) {
			result = "rejected"
		}
	}
	metrics.EventsPublished.WithLabelValues(string(evt.Kind), result).Inc()
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close shuts down the underlying publisher. It is safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
