package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/weamind-linebot-go/internal/config"
	"github.com/garyellow/weamind-linebot-go/internal/ctxutil"
	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/ratelimit"
	"github.com/garyellow/weamind-linebot-go/internal/sentry"
)

// Replies owned by the processor.
const (
	MsgUnknownAction   = "未知的操作"
	MsgMessageTooLong  = "訊息太長了，請輸入想查詢的地點名稱，例如「永和區」"
	MsgUnsupportedType = "目前只看得懂文字與位置訊息，請輸入地點名稱或分享位置來查詢天氣"
)

// Processor handles the core logic of processing LINE events.
// It applies rate limiting, prepares the context and dispatches to handlers.
type Processor struct {
	registry    *Registry
	userLimiter *ratelimit.KeyedLimiter
	sender      *messaging_api.Sender
	logger      *logger.Logger

	webhookTimeout      time.Duration
	maxMessageLength    int
	maxPostbackDataSize int
}

// ProcessorConfig holds configuration for creating a new Processor.
type ProcessorConfig struct {
	Registry    *Registry
	UserLimiter *ratelimit.KeyedLimiter // nil disables per-user limiting
	Sender      *messaging_api.Sender
	Logger      *logger.Logger
	BotConfig   *config.BotConfig
}

// NewProcessor creates a new event processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		registry:            cfg.Registry,
		userLimiter:         cfg.UserLimiter,
		sender:              cfg.Sender,
		logger:              cfg.Logger.WithModule("processor"),
		webhookTimeout:      cfg.BotConfig.WebhookTimeout,
		maxMessageLength:    cfg.BotConfig.MaxMessageLength,
		maxPostbackDataSize: cfg.BotConfig.MaxPostbackDataSize,
	}
}

// ProcessMessage handles a message event. Text and location messages are
// dispatched; other message types get a short hint in personal chats.
func (p *Processor) ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error) {
	ctx = withSource(ctx, event.Source)

	if !p.allowUser(ctx) {
		return p.throttled(event.Source), nil
	}

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), p.webhookTimeout)
	defer cancel()

	switch msg := event.Message.(type) {
	case webhook.TextMessageContent:
		return p.processText(processCtx, event.Source, msg), nil
	case webhook.LocationMessageContent:
		return p.safely(processCtx, "location", func() []messaging_api.MessageInterface {
			return p.registry.DispatchLocation(processCtx, msg.Latitude, msg.Longitude, msg.Address)
		}), nil
	default:
		if !OriginOf(event.Source).Personal {
			return nil, nil
		}
		return p.reply(MsgUnsupportedType), nil
	}
}

func (p *Processor) processText(ctx context.Context, source webhook.SourceInterface, msg webhook.TextMessageContent) []messaging_api.MessageInterface {
	text := msg.Text

	// Group chats only answer when the bot is mentioned
	if !OriginOf(source).Personal {
		var ok bool
		if text, ok = mentionQuery(msg); !ok {
			return nil
		}
	}

	if utf8.RuneCountInString(text) > p.maxMessageLength {
		p.logger.WithField("length", utf8.RuneCountInString(text)).Warn("Text message too long")
		return p.reply(MsgMessageTooLong)
	}

	text = sanitizeText(text)
	if text == "" {
		return nil
	}

	return p.safely(ctx, "message", func() []messaging_api.MessageInterface {
		return p.registry.DispatchMessage(ctx, text)
	})
}

// ProcessPostback handles a postback event.
func (p *Processor) ProcessPostback(ctx context.Context, event webhook.PostbackEvent) ([]messaging_api.MessageInterface, error) {
	ctx = withSource(ctx, event.Source)

	if event.Postback == nil {
		return nil, nil
	}
	data := event.Postback.Data
	if len(data) > p.maxPostbackDataSize {
		p.logger.WithField("bytes", len(data)).Warn("Postback data too long")
		return p.reply(MsgUnknownAction), nil
	}

	if !p.allowUser(ctx) {
		return p.throttled(event.Source), nil
	}

	pb, err := ParsePostback(data)
	if err != nil {
		p.logger.WithError(err).WithField("data", data).Warn("Invalid postback data")
		return p.reply(MsgUnknownAction), nil
	}

	p.logger.WithField("action", pb.Action).WithField("type", pb.Type).Debug("Received postback")

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), p.webhookTimeout)
	defer cancel()

	var handled bool
	msgs := p.safely(processCtx, "postback", func() []messaging_api.MessageInterface {
		var out []messaging_api.MessageInterface
		out, handled = p.registry.DispatchPostback(processCtx, pb)
		return out
	})
	if !handled && len(msgs) == 0 {
		return p.reply(MsgUnknownAction), nil
	}
	return msgs, nil
}

// ProcessFollow handles a follow event (new friend or unblock).
func (p *Processor) ProcessFollow(ctx context.Context, event webhook.FollowEvent) ([]messaging_api.MessageInterface, error) {
	ctx = withSource(ctx, event.Source)
	p.logger.Info("User followed the bot")

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), p.webhookTimeout)
	defer cancel()

	return p.safely(processCtx, "follow", func() []messaging_api.MessageInterface {
		return p.registry.DispatchFollow(processCtx)
	}), nil
}

// ProcessUnfollow handles an unfollow event (blocked). There is nothing to reply to.
func (p *Processor) ProcessUnfollow(ctx context.Context, event webhook.UnfollowEvent) error {
	ctx = withSource(ctx, event.Source)
	p.logger.Info("User unfollowed the bot")

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), p.webhookTimeout)
	defer cancel()

	p.safely(processCtx, "unfollow", func() []messaging_api.MessageInterface {
		p.registry.DispatchUnfollow(processCtx)
		return nil
	})
	return nil
}

// safely runs fn and converts a panic into the generic error reply.
func (p *Processor) safely(ctx context.Context, kind string, fn func() []messaging_api.MessageInterface) (msgs []messaging_api.MessageInterface) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("event", kind).
				WithField("panic", r).
				WithField("stack", string(debug.Stack())).
				Error("Handler panicked")
			sentry.CaptureException(ctx, fmt.Errorf("panic in %s handler: %v", kind, r))
			msgs = []messaging_api.MessageInterface{lineutil.ErrorMessageWithSender(p.sender)}
		}
	}()
	return fn()
}

// allowUser checks the per-user token bucket.
func (p *Processor) allowUser(ctx context.Context) bool {
	if p.userLimiter == nil {
		return true
	}
	userID := ctxutil.GetUserID(ctx)
	if p.userLimiter.Allow(userID) {
		return true
	}

	logID := userID
	if len(logID) > 8 {
		logID = logID[:8] + "..."
	}
	p.logger.WithField("user_id", logID).Warn("User rate limit exceeded")
	return false
}

// throttled replies in personal chats only; groups are dropped silently.
func (p *Processor) throttled(source webhook.SourceInterface) []messaging_api.MessageInterface {
	if !OriginOf(source).Personal {
		return nil
	}
	return p.reply(lineutil.MsgTooFrequent)
}

func (p *Processor) reply(text string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{lineutil.NewTextMessageWithSender(text, p.sender)}
}

func withSource(ctx context.Context, source webhook.SourceInterface) context.Context {
	origin := OriginOf(source)
	ctx = ctxutil.WithChatID(ctx, origin.ChatID)
	return ctxutil.WithUserID(ctx, origin.UserID)
}

// sanitizeText trims and collapses whitespace. Full-width spaces count as whitespace.
func sanitizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
