// Package weather implements the weather module of the LINE bot.
// It resolves typed place names and shared locations to a Taiwan division,
// replies with the cached forecast and serves the rich menu postbacks.
package weather

import (
	"context"
	"errors"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/garyellow/weamind-linebot-go/internal/announcement"
	"github.com/garyellow/weamind-linebot-go/internal/bot"
	"github.com/garyellow/weamind-linebot-go/internal/ctxutil"
	"github.com/garyellow/weamind-linebot-go/internal/forecast"
	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
	"github.com/garyellow/weamind-linebot-go/internal/location"
	"github.com/garyellow/weamind-linebot-go/internal/lock"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

// Module constants
const (
	ModuleName = "weather"
	SenderName = "天氣小幫手"
)

// Replies
const (
	MsgOutsideTaiwan = "抱歉，目前僅支援台灣地區的天氣查詢 🌏"
	MsgWelcome       = "哈囉！歡迎使用 WeaMind 天氣小幫手 🌤️\n\n" +
		"直接輸入鄉鎮市區名稱（例如「永和區」），或分享位置給我，就能查詢當地天氣。\n\n" +
		"點擊下方選單的「設定地點」設定住家與公司，之後一鍵就能查詢常用地點的天氣！"
)

// UserStore is the subset of storage used for users and query history.
type UserStore interface {
	GetUserByLineID(ctx context.Context, lineUserID string) (*storage.User, error)
	CreateOrReactivateUser(ctx context.Context, lineUserID, displayName string) (*storage.User, error)
	DeactivateUser(ctx context.Context, lineUserID string) (bool, error)
	RecordQuery(ctx context.Context, userID, locationID int64) error
	GetRecentQueries(ctx context.Context, userID int64, limit int) ([]storage.Location, error)
	GetLocationByID(ctx context.Context, id int64) (*storage.Location, error)
}

var _ UserStore = (*storage.DB)(nil)

// Config holds the dependencies of the weather handler.
type Config struct {
	Resolver      *location.Resolver
	Users         UserStore
	Forecasts     *forecast.Service
	Locker        *lock.Locker // nil disables the processing lock
	Announcements *announcement.Service
	Metrics       *metrics.Metrics // optional
	Logger        *logger.Logger
	Sender        *messaging_api.Sender

	BaseURL            string // public origin of the static pages
	LIFFLocationURL    string
	RecentQueriesLimit int
}

// Handler handles weather queries, rich menu postbacks and follow events.
type Handler struct {
	resolver      *location.Resolver
	users         UserStore
	forecasts     *forecast.Service
	locker        *lock.Locker
	announcements *announcement.Service
	metrics       *metrics.Metrics
	logger        *logger.Logger
	sender        *messaging_api.Sender

	baseURL     string
	liffURL     string
	recentLimit int
}

var (
	_ bot.Handler         = (*Handler)(nil)
	_ bot.LocationHandler = (*Handler)(nil)
	_ bot.FollowHandler   = (*Handler)(nil)
)

// NewHandler creates a new weather handler.
func NewHandler(cfg Config) *Handler {
	limit := cfg.RecentQueriesLimit
	if limit <= 0 {
		limit = 5
	}
	return &Handler{
		resolver:      cfg.Resolver,
		users:         cfg.Users,
		forecasts:     cfg.Forecasts,
		locker:        cfg.Locker,
		announcements: cfg.Announcements,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.WithModule(ModuleName),
		sender:        cfg.Sender,
		baseURL:       cfg.BaseURL,
		liffURL:       cfg.LIFFLocationURL,
		recentLimit:   limit,
	}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// PostbackActions returns the rich menu actions served by this module.
func (h *Handler) PostbackActions() []string {
	return []string{ActionWeather, ActionRecentQueries, ActionSettings, ActionOther}
}

// CanHandle accepts every text message; any text is treated as a place name.
func (h *Handler) CanHandle(text string) bool {
	return text != ""
}

// HandleMessage resolves text as a place name.
func (h *Handler) HandleMessage(ctx context.Context, text string) []messaging_api.MessageInterface {
	log := h.logger.WithField("query", text)

	result, err := h.resolver.ResolveByText(ctx, text)
	if err != nil {
		var fe *location.InputFormatError
		if errors.As(err, &fe) {
			h.recordResolution(location.SourceText, "invalid")
			return h.text(fe.Message)
		}
		log.WithError(err).ErrorContext(ctx, "Failed to resolve location text")
		h.recordResolution(location.SourceText, "error")
		return h.errorReply()
	}
	h.recordResolution(location.SourceText, string(result.Outcome))

	switch result.Outcome {
	case location.OutcomeResolved:
		loc := result.Single()
		h.recordQuery(ctx, loc)
		return h.weatherReply(ctx, loc)
	case location.OutcomeAmbiguous:
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithQuickReply(result.Message, h.sender, lineutil.PlaceChoices(fullNames(result.Locations)...)...),
		}
	default:
		return h.text(result.Message)
	}
}

// HandleLocation resolves a shared location. The address wins over the GPS fix.
func (h *Handler) HandleLocation(ctx context.Context, lat, lon float64, address string) []messaging_api.MessageInterface {
	loc, source, err := h.resolver.ResolveSignalWithSource(ctx, lat, lon, address)
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to resolve shared location")
		h.recordResolution(sourceSignal, "error")
		return h.errorReply()
	}
	if loc == nil {
		h.recordResolution(sourceSignal, string(location.OutcomeNotFound))
		return h.text(MsgOutsideTaiwan)
	}
	h.recordResolution(source, string(location.OutcomeResolved))

	h.recordQuery(ctx, loc)
	return h.weatherReply(ctx, loc)
}

// HandleFollow creates the user, or reactivates a returning one, and says hello.
func (h *Handler) HandleFollow(ctx context.Context) []messaging_api.MessageInterface {
	lineID := ctxutil.GetUserID(ctx)
	if lineID == "" {
		return h.text(MsgWelcome)
	}
	if _, err := h.users.CreateOrReactivateUser(ctx, lineID, ""); err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to register follower")
	}
	return h.text(MsgWelcome)
}

// HandleUnfollow deactivates the user. Unknown users are only logged.
func (h *Handler) HandleUnfollow(ctx context.Context) {
	lineID := ctxutil.GetUserID(ctx)
	if lineID == "" {
		return
	}
	found, err := h.users.DeactivateUser(ctx, lineID)
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to deactivate user")
		return
	}
	if !found {
		h.logger.WarnContext(ctx, "Unfollow from unknown user")
	}
}

// weatherReply renders the forecast for loc.
func (h *Handler) weatherReply(ctx context.Context, loc *storage.Location) []messaging_api.MessageInterface {
	text, err := h.forecasts.Describe(ctx, loc)
	if err != nil {
		h.logger.WithError(err).WithField("location_id", loc.ID).ErrorContext(ctx, "Failed to load forecast")
		return h.errorReply()
	}
	return h.text(text)
}

// recordQuery appends loc to the history of a known user. Failures are logged only.
func (h *Handler) recordQuery(ctx context.Context, loc *storage.Location) {
	lineID := ctxutil.GetUserID(ctx)
	if lineID == "" {
		return
	}
	user, err := h.users.GetUserByLineID(ctx, lineID)
	if err != nil || user == nil {
		if err != nil {
			h.logger.WithError(err).WarnContext(ctx, "Failed to look up user for query history")
		}
		return
	}
	if err := h.users.RecordQuery(ctx, user.ID, loc.ID); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to record query")
	}
}

func (h *Handler) recordResolution(source location.Source, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordLocationResolution(string(source), outcome)
	}
}

func (h *Handler) text(s string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{lineutil.NewTextMessageWithSender(s, h.sender)}
}

func (h *Handler) errorReply() []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{lineutil.ErrorMessageWithSender(h.sender)}
}

func fullNames(locs []storage.Location) []string {
	names := make([]string, len(locs))
	for i, loc := range locs {
		names[i] = loc.FullName
	}
	return names
}
