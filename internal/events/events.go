// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package events carries Cadenza's internal domain events over a Watermill
// pub/sub channel. The one event today is playlist membership change, which
// invalidates cached recommendations.
package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/logging"
)

// TopicPlaylistChanged carries PlaylistChanged payloads.
const TopicPlaylistChanged = "playlist.changed"

// PlaylistChanged signals that a playlist's membership changed.
type PlaylistChanged struct {
	PlaylistID int64 `json:"playlist_id"`
}

// Bus is an in-process pub/sub bus.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger
}

// NewBus creates the bus.
func NewBus() *Bus {
	logger := logging.Component("events")
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermillAdapter{logger}),
		logger: logger,
	}
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// PublishPlaylistChanged emits a membership-change event.
func (b *Bus) PublishPlaylistChanged(playlistID int64) error {
	payload, err := json.Marshal(PlaylistChanged{PlaylistID: playlistID})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := b.pubsub.Publish(TopicPlaylistChanged, msg); err != nil {
		return fmt.Errorf("publishing playlist change: %w", err)
	}
	return nil
}

// SubscribePlaylistChanged invokes handler for every membership change
// until ctx is canceled. The handler runs on the subscription goroutine.
func (b *Bus) SubscribePlaylistChanged(ctx context.Context, handler func(PlaylistChanged)) error {
	messages, err := b.pubsub.Subscribe(ctx, TopicPlaylistChanged)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", TopicPlaylistChanged, err)
	}

	go func() {
		for msg := range messages {
			var event PlaylistChanged
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Warn().Err(err).Str("message", msg.UUID).Msg("dropping undecodable event")
				msg.Ack()
				continue
			}
			handler(event)
			msg.Ack()
		}
	}()
	return nil
}

// watermillAdapter routes Watermill's internal logging through zerolog.
type watermillAdapter struct {
	logger zerolog.Logger
}

func (a watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.event(a.logger.Error().Err(err), msg, fields)
}

func (a watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.event(a.logger.Info(), msg, fields)
}

func (a watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.event(a.logger.Debug(), msg, fields)
}

func (a watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.event(a.logger.Trace(), msg, fields)
}

func (a watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := a.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return watermillAdapter{logger}
}

func (a watermillAdapter) event(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
