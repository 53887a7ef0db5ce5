// Package ctxutil carries tracing identifiers through a context.
package ctxutil

import (
	"context"
)

// Trace identifies the LINE event or HTTP request a piece of work belongs to.
// Empty fields are unknown.
type Trace struct {
	EventID   string // webhookEventId
	UserID    string
	ChatID    string // user, group or room the reply goes to
	RequestID string
}

type traceKey struct{}

// TraceFrom returns the trace stored in ctx, or a zero Trace.
func TraceFrom(ctx context.Context) Trace {
	tr, _ := ctx.Value(traceKey{}).(Trace)
	return tr
}

// WithTrace stores tr in ctx, replacing any earlier trace.
func WithTrace(ctx context.Context, tr Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, tr)
}

func update(ctx context.Context, set func(*Trace)) context.Context {
	tr := TraceFrom(ctx)
	set(&tr)
	return WithTrace(ctx, tr)
}

// WithUserID sets the LINE user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return update(ctx, func(tr *Trace) { tr.UserID = userID })
}

// GetUserID returns the LINE user ID, or "".
func GetUserID(ctx context.Context) string {
	return TraceFrom(ctx).UserID
}

// WithChatID sets the chat (user, group or room) ID.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return update(ctx, func(tr *Trace) { tr.ChatID = chatID })
}

// GetChatID returns the chat ID, or "".
func GetChatID(ctx context.Context) string {
	return TraceFrom(ctx).ChatID
}

// WithRequestID sets the HTTP request ID used for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return update(ctx, func(tr *Trace) { tr.RequestID = requestID })
}

// GetRequestID returns the request ID and whether one is set.
func GetRequestID(ctx context.Context) (string, bool) {
	id := TraceFrom(ctx).RequestID
	return id, id != ""
}

// WithEventID sets the webhook event ID.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return update(ctx, func(tr *Trace) { tr.EventID = eventID })
}

// GetEventID returns the webhook event ID, or "".
func GetEventID(ctx context.Context) string {
	return TraceFrom(ctx).EventID
}

// PreserveTracing returns a context with ctx's trace but none of its
// cancellation or deadline. Webhook events keep being processed after the
// HTTP response has been sent.
func PreserveTracing(ctx context.Context) context.Context {
	return WithTrace(context.Background(), TraceFrom(ctx))
}
