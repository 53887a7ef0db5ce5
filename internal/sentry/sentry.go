// Package sentry reports unexpected failures to Sentry (or Better Stack
// Errors, which speaks the same protocol).
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/weamind-linebot-go/internal/ctxutil"
	domerrors "github.com/garyellow/weamind-linebot-go/internal/errors"
)

// Config holds the client options WeaMind exposes. An empty DSN disables reporting.
type Config struct {
	DSN              string // Better Stack Errors accepts https://$TOKEN@$HOST/1
	Environment      string
	Release          string
	SampleRate       float64 // outside (0, 1] means 1
	TracesSampleRate float64 // 0 disables tracing
}

// Initialize sets up the global client.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       rate,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
		BeforeSend:       dropExpected,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

// expected are failures caused by user input that need no alert.
var expected = []error{domerrors.ErrInvalidInput, domerrors.ErrUnauthorized}

func dropExpected(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint == nil || hint.OriginalException == nil {
		return event
	}
	for _, target := range expected {
		if errors.Is(hint.OriginalException, target) {
			return nil
		}
	}
	return event
}

// Flush waits up to timeout for queued events and reports whether all were sent.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled reports whether a client is configured.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException reports err with the LINE user and event found in ctx.
// It uses the request hub set by the gin middleware when there is one.
func CaptureException(ctx context.Context, err error) {
	if err == nil || !IsEnabled() {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	tr := ctxutil.TraceFrom(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		if tr.UserID != "" {
			scope.SetUser(sentry.User{ID: tr.UserID})
		}
		for k, v := range map[string]string{
			"line.event_id": tr.EventID,
			"line.chat_id":  tr.ChatID,
			"request_id":    tr.RequestID,
		} {
			if v != "" {
				scope.SetTag(k, v)
			}
		}
		hub.CaptureException(err)
	})
}
