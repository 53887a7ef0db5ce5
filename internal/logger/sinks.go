package logger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyellow/weamind-linebot-go/internal/ctxutil"
)

// Remote shipping defaults.
const (
	defaultShipQueue   = 1024
	defaultShipTimeout = 5 * time.Second
)

// traceKeys are the ctxutil trace fields copied onto every record, in output order.
var traceKeys = []struct {
	key string
	get func(ctxutil.Trace) string
}{
	{"event_id", func(tr ctxutil.Trace) string { return tr.EventID }},
	{"user_id", func(tr ctxutil.Trace) string { return tr.UserID }},
	{"chat_id", func(tr ctxutil.Trace) string { return tr.ChatID }},
	{"request_id", func(tr ctxutil.Trace) string { return tr.RequestID }},
}

// traceHandler stamps webhook and request identifiers from the context onto
// each record so one LINE event can be followed across modules.
type traceHandler struct {
	next slog.Handler
}

func (h traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	tr := ctxutil.TraceFrom(ctx)
	for _, tk := range traceKeys {
		if v := tk.get(tr); v != "" {
			r.AddAttrs(slog.String(tk.key, v))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{next: h.next.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{next: h.next.WithGroup(name)}
}

// teeHandler writes every record to stdout and, at its own level, to the remote sink.
type teeHandler struct {
	local  slog.Handler
	remote slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.local.Enabled(ctx, level) || h.remote.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var localErr, remoteErr error
	if h.local.Enabled(ctx, r.Level) {
		localErr = h.local.Handle(ctx, r.Clone())
	}
	if h.remote.Enabled(ctx, r.Level) {
		remoteErr = h.remote.Handle(ctx, r.Clone())
	}
	return errors.Join(localErr, remoteErr)
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{local: h.local.WithAttrs(attrs), remote: h.remote.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{local: h.local.WithGroup(name), remote: h.remote.WithGroup(name)}
}

// ShipOptions bounds the Better Stack queue.
type ShipOptions struct {
	QueueSize    int           // records buffered before dropping, default 1024
	DrainTimeout time.Duration // Shutdown limit when ctx has no deadline, default 5s
}

type shipment struct {
	ctx    context.Context
	record slog.Record
	sink   slog.Handler
}

// shipQueue is the single background goroutine shared by a shipper and all
// handlers derived from it through WithAttrs and WithGroup.
type shipQueue struct {
	pending chan shipment
	timeout time.Duration
	mu      sync.RWMutex // guards stopped and the close of pending
	stopped bool
	dropped atomic.Uint64
	done    sync.WaitGroup
}

// shipper sends records to a slow sink off the request path. A full queue
// drops the record instead of delaying a webhook reply.
type shipper struct {
	q    *shipQueue
	sink slog.Handler
}

func newShipper(sink slog.Handler, opts ShipOptions) *shipper {
	q := &shipQueue{
		pending: make(chan shipment, orDefault(opts.QueueSize, defaultShipQueue)),
		timeout: defaultShipTimeout,
	}
	if opts.DrainTimeout > 0 {
		q.timeout = opts.DrainTimeout
	}
	q.done.Add(1)
	go func() {
		defer q.done.Done()
		for s := range q.pending {
			_ = s.sink.Handle(s.ctx, s.record)
		}
	}()
	return &shipper{q: q, sink: sink}
}

// orDefault returns n, or def when n is not positive.
func orDefault(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}

func (s *shipper) Enabled(ctx context.Context, level slog.Level) bool {
	return s.sink.Enabled(ctx, level)
}

func (s *shipper) Handle(ctx context.Context, r slog.Record) error {
	if !s.sink.Enabled(ctx, r.Level) {
		return nil
	}
	// The request context is usually canceled before the record is shipped.
	item := shipment{ctx: context.WithoutCancel(ctx), record: r.Clone(), sink: s.sink}

	s.q.mu.RLock()
	defer s.q.mu.RUnlock()
	if s.q.stopped {
		return nil
	}
	select {
	case s.q.pending <- item:
	default:
		s.q.dropped.Add(1)
	}
	return nil
}

func (s *shipper) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &shipper{q: s.q, sink: s.sink.WithAttrs(attrs)}
}

func (s *shipper) WithGroup(name string) slog.Handler {
	return &shipper{q: s.q, sink: s.sink.WithGroup(name)}
}

func (s *shipper) droppedCount() uint64 {
	if s == nil {
		return 0
	}
	return s.q.dropped.Load()
}

// drain stops accepting records and waits for the queue to empty.
// Calling it again is a no-op.
func (s *shipper) drain(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.q.mu.Lock()
	if s.q.stopped {
		s.q.mu.Unlock()
		return nil
	}
	s.q.stopped = true
	close(s.q.pending)
	s.q.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.q.timeout)
		defer cancel()
	}

	finished := make(chan struct{})
	go func() {
		s.q.done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
