// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package logging owns the process-wide zerolog logger.
//
// main calls Init once with the configured level and format. Before that a
// JSON logger at info level writes to stderr.
//
//	logging.Info().Str("content_id", id).Msg("Content created")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Write conflict, retrying")
//
// An event chain is only written once Msg or Send is called.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the level, format and sink of the global logger. Zero
// values mean info, json and os.Stderr.
type Config struct {
	Level  string // trace, debug, info, warn, error, fatal, disabled
	Format string // json or console
	Caller bool   // annotate entries with file:line
	Output io.Writer
}

var (
	mu   sync.RWMutex
	root zerolog.Logger
)

//nolint:gochecknoinits // packages log during their own initialization
func init() {
	Init(Config{})
}

// Init replaces the global logger. It may be called again, e.g. by tests
// that capture output.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	zc := zerolog.New(out).With().Timestamp()
	if cfg.Caller {
		zc = zc.Caller()
	}
	root = zc.Logger()
}

// parseLevel accepts zerolog level names plus "warning"; anything else,
// including the empty string, means info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return current().With().Str("component", component).Logger()
}

func Debug() *zerolog.Event { l := current(); return l.Debug() }
func Info() *zerolog.Event  { l := current(); return l.Info() }
func Warn() *zerolog.Event  { l := current(); return l.Warn() }
func Error() *zerolog.Event { l := current(); return l.Error() }

// Fatal exits the process with status 1 once the event is sent.
func Fatal() *zerolog.Event { l := current(); return l.Fatal() }
