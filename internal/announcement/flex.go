package announcement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	domerrors "github.com/garyellow/weamind-linebot-go/internal/errors"
	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
)

// Replies for the announcements postback.
const (
	MsgNoAnnouncements = "目前沒有新公告"
	MsgLoadFailed      = "公告資料載入失敗"
	MsgDecodeFailed    = "載入公告時發生錯誤"
	altText            = "系統公告"
)

// Service builds announcement replies from the file at path.
// The file is read on every request so edits show up without a restart.
type Service struct {
	path    string
	pageURL string
	limit   int
}

// NewService creates an announcement Service. pageURL is linked from every bubble
// when non-empty.
func NewService(path, pageURL string, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{path: path, pageURL: pageURL, limit: limit}
}

// Messages returns the reply for the announcements postback. It never fails;
// errors are logged and turned into user-facing text.
func (s *Service) Messages(ctx context.Context, sender *messaging_api.Sender) []messaging_api.MessageInterface {
	items, err := Load(s.path)
	if err != nil {
		if errors.Is(err, domerrors.ErrNotFound) {
			slog.WarnContext(ctx, "announcements file not found", "path", s.path)
			return []messaging_api.MessageInterface{lineutil.NewTextMessageWithSender(MsgLoadFailed, sender)}
		}
		slog.ErrorContext(ctx, "failed to load announcements", "path", s.path, "error", err)
		return []messaging_api.MessageInterface{lineutil.NewTextMessageWithSender(MsgDecodeFailed, sender)}
	}

	latest := Latest(items, s.limit)
	if len(latest) == 0 {
		return []messaging_api.MessageInterface{lineutil.NewTextMessageWithSender(MsgNoAnnouncements, sender)}
	}

	bubbles := make([]messaging_api.FlexBubble, 0, len(latest))
	for _, it := range latest {
		bubbles = append(bubbles, *Card(it, s.pageURL).Bubble())
	}
	return lineutil.CarouselMessages(altText, bubbles, sender)
}

// Card lays out one announcement. The level picks the badge and color, and the
// body is cut to a preview.
func Card(it Item, pageURL string) lineutil.Card {
	card := lineutil.Card{
		Emoji: levelEmoji(it.Level),
		Badge: it.Level.Label(),
		Color: it.Level.Color(),
		Title: it.Title,
		Body:  SmartTruncate(it.Body),
		Rows:  []lineutil.CardRow{{Emoji: "📅", Label: "發布時間", Value: FormatDate(it.StartAt)}},
	}
	if card.Title == "" {
		card.Title = altText
	}
	if pageURL != "" {
		card.Link = lineutil.NewURIAction("前往公告頁面", pageURL)
	}
	return card
}

func levelEmoji(l Level) string {
	switch l {
	case LevelWarning:
		return "⚠️"
	case LevelMaintenance:
		return "🛠️"
	default:
		return "📢"
	}
}
