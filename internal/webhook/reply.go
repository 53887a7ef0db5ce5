package webhook

import (
	"context"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/garyellow/weamind-linebot-go/internal/config"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
	"github.com/garyellow/weamind-linebot-go/internal/ratelimit"
)

// Replier is the reply half of the Messaging API.
type Replier interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

var _ Replier = (*messaging_api.MessagingApiAPI)(nil)

// outbox sends replies within the channel's Messaging API quota.
type outbox struct {
	api         Replier
	quota       *ratelimit.Limiter
	maxMessages int
	metrics     *metrics.Metrics
}

// send never fails the event: LINE has already been acknowledged, so errors
// are logged and counted.
func (o *outbox) send(ctx context.Context, log *logger.Logger, kind, replyToken string, messages []messaging_api.MessageInterface) {
	if replyToken == "" {
		log.Debug("Empty reply token, skipping reply")
		return
	}
	if len(messages) > o.maxMessages {
		log.WithField("message_count", len(messages)).
			WithField("limit", o.maxMessages).
			Warn("Message count exceeds limit; truncating")
		messages = messages[:o.maxMessages]
	}

	if err := o.awaitQuota(ctx, log); err != nil {
		log.WithError(err).Error("Gave up waiting for global rate limiter")
		o.metrics.RecordWebhook(kind, "rate_limited", 0)
		return
	}

	_, err := o.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	switch {
	case err == nil:
		return
	case tokenSpent(err):
		log.WithError(err).Debug("Reply token already used or expired")
	default:
		log.WithError(err).Error("Failed to send reply")
	}
	o.metrics.RecordWebhook(kind, "reply_error", 0)
}

func (o *outbox) awaitQuota(ctx context.Context, log *logger.Logger) error {
	if o.quota.Allow() {
		return nil
	}
	log.Warn("Global rate limit exceeded; waiting")
	o.metrics.RecordRateLimiterDrop("global")

	ctx, cancel := context.WithTimeout(ctx, config.LINEAPIRequest)
	defer cancel()
	return o.quota.Wait(ctx)
}

// Reply tokens are single use and expire; a redelivered event usually
// carries a spent one.
func tokenSpent(err error) bool {
	return strings.Contains(err.Error(), "Invalid reply token")
}
