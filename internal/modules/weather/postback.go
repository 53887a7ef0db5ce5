package weather

import (
	"context"
	"errors"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/garyellow/weamind-linebot-go/internal/bot"
	"github.com/garyellow/weamind-linebot-go/internal/ctxutil"
	domerrors "github.com/garyellow/weamind-linebot-go/internal/errors"
	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
	"github.com/garyellow/weamind-linebot-go/internal/location"
	"github.com/garyellow/weamind-linebot-go/internal/lock"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// Postback actions and types sent by the rich menu.
const (
	ActionWeather       = "weather"
	ActionRecentQueries = "recent_queries"
	ActionSettings      = "settings"
	ActionOther         = "other"

	TypeHome          = "home"
	TypeOffice        = "office"
	TypeCurrent       = "current"
	TypeLocation      = "location"
	TypeMenu          = "menu"
	TypeAnnouncements = "announcements"
)

// sourceSignal labels shared-location lookups that did not resolve.
const sourceSignal location.Source = "signal"

// ChangelogURL is linked from the "other" menu.
const ChangelogURL = "https://github.com/kyomind/WeaMind/blob/main/CHANGELOG.md"

// Replies
const (
	MsgUnknownLocationType = "未知的地點類型"
	MsgUnknownSettingType  = "未知的設定類型"
	MsgUnknownAction       = "未知的操作"
	MsgQueryFailed         = "查詢時發生錯誤，請稍後再試。"
	MsgPickOnMap           = "請點擊地圖上任意位置，將為您查詢該地天氣"
	MsgNoRecentQueries     = "您還沒有查詢過其他地點的天氣\n\n試試看輸入地點名稱來查詢天氣吧！"
	MsgOtherMenu           = "請選擇想了解的資訊："
)

// HandlePostback dispatches rich menu postbacks.
func (h *Handler) HandlePostback(ctx context.Context, pb bot.Postback) []messaging_api.MessageInterface {
	log := h.logger.WithField("action", pb.Action).WithField("type", pb.Type)

	if needsLock(pb) && !h.locker.TryAcquire(ctx, lock.ActorKey(ctxutil.GetUserID(ctx))) {
		log.DebugContext(ctx, "Postback rejected by processing lock")
		return h.text(lineutil.MsgTooFrequent)
	}

	switch pb.Action {
	case ActionWeather:
		switch pb.Type {
		case TypeHome, TypeOffice:
			return h.handlePresetWeather(ctx, pb.Type)
		case TypeCurrent:
			return h.handleCurrentLocation()
		default:
			return h.text(MsgUnknownLocationType)
		}
	case ActionSettings:
		if pb.Type == TypeLocation {
			return h.handleLocationSettings()
		}
		return h.text(MsgUnknownSettingType)
	case ActionRecentQueries:
		return h.handleRecentQueries(ctx)
	case ActionOther:
		switch pb.Type {
		case TypeMenu:
			return h.handleOtherMenu()
		case TypeAnnouncements:
			return h.announcements.Messages(ctx, h.sender)
		}
	}

	log.WarnContext(ctx, "Unknown postback")
	return h.text(MsgUnknownAction)
}

// needsLock reports whether a postback queries the database on behalf of the user.
func needsLock(pb bot.Postback) bool {
	switch pb.Action {
	case ActionWeather:
		return pb.Type == TypeHome || pb.Type == TypeOffice
	case ActionRecentQueries:
		return true
	}
	return false
}

// handlePresetWeather replies with the forecast of the user's home or office.
// These lookups are not added to the query history.
func (h *Handler) handlePresetWeather(ctx context.Context, typ string) []messaging_api.MessageInterface {
	text, err := h.presetForecast(ctx, typ)
	if err != nil {
		h.logger.WithError(err).WithField("type", typ).ErrorContext(ctx, "Failed to query preset location weather")
		return h.text(domerrors.ReplyFor(err, lineutil.MsgSystemBusy))
	}
	return h.text(text)
}

func (h *Handler) presetForecast(ctx context.Context, typ string) (string, error) {
	const op = "weather.preset"

	user, err := h.getOrCreateUser(ctx)
	if err != nil {
		return "", domerrors.WithReply(op, err, MsgQueryFailed)
	}

	locationID, label := user.HomeLocationID, "住家"
	if typ == TypeOffice {
		locationID, label = user.WorkLocationID, "公司"
	}
	if locationID == nil {
		return fmt.Sprintf("請先設定%s地址，點擊下方「設定地點」按鈕即可設定。", label), nil
	}

	loc, err := h.users.GetLocationByID(ctx, *locationID)
	if err != nil {
		return "", domerrors.WithReply(op, err, MsgQueryFailed)
	}
	if loc == nil {
		return "", domerrors.WithReply(op, fmt.Errorf("location %d: %w", *locationID, domerrors.ErrNotFound), MsgQueryFailed)
	}

	text, err := h.forecasts.Describe(ctx, loc)
	if err != nil {
		return "", domerrors.WithReply(op, err, MsgQueryFailed)
	}
	return text, nil
}

func (h *Handler) handleCurrentLocation() []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(MsgPickOnMap, h.sender, lineutil.LocationPicker()),
	}
}

func (h *Handler) handleLocationSettings() []messaging_api.MessageInterface {
	return h.text("地點設定\n\n請點擊下方連結設定您的常用地點：\n" + h.liffURL +
		"\n\n設定完成後，您就可以透過快捷功能查詢住家或公司的天氣了！")
}

// handleRecentQueries offers the user's recent lookups as quick replies.
func (h *Handler) handleRecentQueries(ctx context.Context) []messaging_api.MessageInterface {
	user, err := h.getOrCreateUser(ctx)
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to load user for recent queries")
		return h.errorReply()
	}

	recent, err := h.users.GetRecentQueries(ctx, user.ID, h.recentLimit)
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to load recent queries")
		return h.errorReply()
	}
	if len(recent) == 0 {
		return h.text(MsgNoRecentQueries)
	}

	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(fmt.Sprintf("最近查過的 %d 個地點：", h.recentLimit), h.sender,
			lineutil.PlaceChoices(fullNames(recent)...)...),
	}
}

// handleOtherMenu lists announcements and the static info pages.
func (h *Handler) handleOtherMenu() []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(MsgOtherMenu, h.sender,
			lineutil.NewPostbackAction("📢 公告", "查看系統公告", bot.BuildPostback(ActionOther, TypeAnnouncements)),
			lineutil.NewURIAction("🔄 更新", ChangelogURL),
			lineutil.NewURIAction("📖 使用說明", h.baseURL+"/static/help/index.html"),
			lineutil.NewURIAction("ℹ️ 專案介紹", h.baseURL+"/static/about/index.html"),
		),
	}
}

func (h *Handler) getOrCreateUser(ctx context.Context) (*storage.User, error) {
	lineID := ctxutil.GetUserID(ctx)
	if lineID == "" {
		return nil, errors.New("postback without user id")
	}
	user, err := h.users.GetUserByLineID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return h.users.CreateOrReactivateUser(ctx, lineID, "")
}
