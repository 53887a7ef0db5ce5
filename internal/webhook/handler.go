// Package webhook receives LINE webhook callbacks. A batch is acknowledged
// before any of its events run, then each event is processed in the
// background and answered with its reply token.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/weamind-linebot-go/internal/bot"
	"github.com/garyellow/weamind-linebot-go/internal/config"
	"github.com/garyellow/weamind-linebot-go/internal/ctxutil"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
	"github.com/garyellow/weamind-linebot-go/internal/ratelimit"
)

// loadingSeconds must be a multiple of 5 between 5 and 60.
const loadingSeconds = 20

type Handler struct {
	secret    string
	processor *bot.Processor
	out       *outbox
	loading   func(chatID string) error // nil when replies go to a test double
	maxEvents int

	metrics  *metrics.Metrics
	logger   *logger.Logger
	inflight sync.WaitGroup
}

type HandlerConfig struct {
	ChannelSecret string
	ChannelToken  string
	BotConfig     *config.BotConfig
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
	Processor     *bot.Processor

	// Client replaces the Messaging API client built from ChannelToken.
	Client Replier
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	h := &Handler{
		secret:    cfg.ChannelSecret,
		processor: cfg.Processor,
		maxEvents: cfg.BotConfig.MaxEventsPerWebhook,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.WithModule("webhook"),
	}

	client := cfg.Client
	if client == nil {
		api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken)
		if err != nil {
			return nil, fmt.Errorf("create messaging API client: %w", err)
		}
		client = api
		h.loading = func(chatID string) error {
			_, err := api.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
				ChatId:         chatID,
				LoadingSeconds: loadingSeconds,
			})
			return err
		}
	}

	rps := cfg.BotConfig.GlobalRateLimitRPS
	h.out = &outbox{
		api:         client,
		quota:       ratelimit.New(rps, rps),
		maxMessages: cfg.BotConfig.MaxMessagesPerReply,
		metrics:     cfg.Metrics,
	}
	return h, nil
}

// Handle verifies the signature and answers 200 right away; LINE retries
// callbacks that take too long.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.secret, c.Request)
	if err != nil {
		reason := "parse_error"
		if errors.Is(err, webhook.ErrInvalidSignature) {
			reason = "invalid_signature"
			h.logger.Warn("Invalid webhook signature")
		} else {
			h.logger.WithError(err).Error("Failed to parse webhook request")
		}
		h.metrics.RecordHTTPError(reason, "webhook")
		c.Status(http.StatusBadRequest)
		return
	}
	c.Status(http.StatusOK)

	received := time.Now()
	h.metrics.RecordWebhook("batch", "received", 0)

	events := cb.Events
	if len(events) > h.maxEvents {
		h.logger.WithField("event_count", len(events)).
			WithField("limit", h.maxEvents).
			Warn("Too many events in webhook batch; truncating")
		events = events[:h.maxEvents]
	}
	events = slices.Clone(events)

	h.inflight.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).Error("Panic in async event processing")
			}
		}()
		for _, event := range events {
			h.handleEvent(context.Background(), event, received)
		}
	})
}

// envelope is what every supported event carries besides its payload.
type envelope struct {
	kind       string
	id         string
	replyToken string
	source     webhook.SourceInterface
	redelivery bool
}

func open(event webhook.EventInterface) (envelope, bool) {
	var (
		env envelope
		dc  *webhook.DeliveryContext
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		env, dc = envelope{kind: "message", id: e.WebhookEventId, replyToken: e.ReplyToken, source: e.Source}, e.DeliveryContext
	case webhook.PostbackEvent:
		env, dc = envelope{kind: "postback", id: e.WebhookEventId, replyToken: e.ReplyToken, source: e.Source}, e.DeliveryContext
	case webhook.FollowEvent:
		env, dc = envelope{kind: "follow", id: e.WebhookEventId, replyToken: e.ReplyToken, source: e.Source}, e.DeliveryContext
	case webhook.UnfollowEvent:
		env, dc = envelope{kind: "unfollow", id: e.WebhookEventId, source: e.Source}, e.DeliveryContext
	default:
		return envelope{}, false
	}
	if dc != nil {
		env.redelivery = dc.IsRedelivery
	}
	return env, true
}

func (h *Handler) handleEvent(ctx context.Context, event webhook.EventInterface, received time.Time) {
	env, ok := open(event)
	if !ok {
		h.logger.WithField("event_type", fmt.Sprintf("%T", event)).Debug("Unsupported event type")
		return
	}
	started := time.Now()

	log := h.logger.WithField("event_type", env.kind)
	if env.id != "" {
		ctx = ctxutil.WithEventID(ctx, env.id)
		log = log.WithField("event_id", env.id)
	}
	if env.redelivery {
		log = log.WithField("is_redelivery", true)
	}

	if wantsLoading(event) {
		h.startLoading(log, bot.OriginOf(env.source).ChatID)
	}

	messages, err := h.dispatch(ctx, event)
	status := "success"
	if err != nil {
		status = "error"
		log.WithError(err).Error("Failed to handle event")
	}
	h.metrics.RecordWebhook(env.kind, status, time.Since(started).Seconds())

	if err == nil && len(messages) > 0 {
		h.out.send(ctx, log, env.kind, env.replyToken, messages)
	}

	log.WithField("event_duration_ms", time.Since(started).Milliseconds()).
		WithField("batch_duration_ms", time.Since(received).Milliseconds()).
		Info("Event processed")
}

func (h *Handler) dispatch(ctx context.Context, event webhook.EventInterface) ([]messaging_api.MessageInterface, error) {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return h.processor.ProcessMessage(ctx, e)
	case webhook.PostbackEvent:
		return h.processor.ProcessPostback(ctx, e)
	case webhook.FollowEvent:
		return h.processor.ProcessFollow(ctx, e)
	case webhook.UnfollowEvent:
		return nil, h.processor.ProcessUnfollow(ctx, e)
	}
	return nil, nil
}

// wantsLoading reports whether the event will be answered. In groups only
// text that mentions the bot is.
func wantsLoading(event webhook.EventInterface) bool {
	switch e := event.(type) {
	case webhook.PostbackEvent:
		return true
	case webhook.MessageEvent:
		if bot.OriginOf(e.Source).Personal {
			return true
		}
		text, ok := e.Message.(webhook.TextMessageContent)
		return ok && bot.AddressesBot(text)
	}
	return false
}

func (h *Handler) startLoading(log *logger.Logger, chatID string) {
	if chatID == "" || h.loading == nil {
		return
	}
	if err := h.loading(chatID); err != nil {
		log.WithError(err).Debug("Failed to show loading animation")
	}
}

// Shutdown waits for accepted batches to finish, or for ctx to end.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
