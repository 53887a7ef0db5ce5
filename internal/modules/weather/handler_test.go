package weather

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

const testBaseURL = "https://weather.example.com"

// busyRedis answers every SET NX as if the key were already held.
type busyRedis struct{ calls int }

func (b *busyRedis) SetNX(ctx context.Context, _ string, _ any, _ time.Duration) *redis.BoolCmd {
	b.calls++
	return redis.NewBoolResult(false, nil)
}

type fixture struct {
	db      *storage.DB
	handler *Handler
	metrics *metrics.Metrics
	yonghe  *storage.Location
	xinyi   *storage.Location
}

func seed(t *testing.T, db *storage.DB, geocode, county, district string, lat, lon float64) *storage.Location {
	t.Helper()
	loc := &storage.Location{Geocode: geocode, County: county, District: district, Latitude: &lat, Longitude: &lon}
	require.NoError(t, db.UpsertLocation(context.Background(), loc))
	return loc
}

func seedForecast(t *testing.T, db *storage.DB, loc *storage.Location) {
	t.Helper()
	pop, lo, hi := 30, 21, 26
	start := time.Now().Truncate(time.Hour)
	require.NoError(t, db.SaveForecasts(context.Background(), []storage.Forecast{{
		LocationID:               loc.ID,
		StartTime:                start,
		EndTime:                  start.Add(3 * time.Hour),
		FetchedAt:                start.Add(-time.Hour),
		WeatherCondition:         "多雲",
		WeatherEmoji:             "⛅",
		PrecipitationProbability: &pop,
		MinTemperature:           &lo,
		MaxTemperature:           &hi,
	}}))
}

func newFixture(t *testing.T, locker *lock.Locker) *fixture {
	t.Helper()
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, metrics: metrics.New(prometheus.NewRegistry())}
	f.yonghe = seed(t, db, "6500400", "新北市", "永和區", 25.0076, 121.5138)
	f.xinyi = seed(t, db, "6300200", "臺北市", "信義區", 25.0330, 121.5654)
	seed(t, db, "6300500", "臺北市", "中正區", 25.0324, 121.5199)
	seed(t, db, "1001701", "基隆市", "中正區", 25.1427, 121.7745)
	seedForecast(t, db, f.yonghe)

	log := logger.NewWithWriter("error", io.Discard)
	f.handler = NewHandler(Config{
		Resolver:           location.NewResolver(db, location.DefaultRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))),
		Users:              db,
		Forecasts:          forecast.NewService(db, 4),
		Locker:             locker,
		Announcements:      announcement.NewService(filepath.Join(t.TempDir(), "missing.json"), "", 0),
		Metrics:            f.metrics,
		Logger:             log,
		Sender:             lineutil.NewSender(SenderName, ""),
		BaseURL:            testBaseURL,
		LIFFLocationURL:    testBaseURL + "/static/liff/location/index.html",
		RecentQueriesLimit: 5,
	})
	return f
}

func userCtx(id string) context.Context {
	return ctxutil.WithUserID(context.Background(), id)
}

func single(t *testing.T, msgs []messaging_api.MessageInterface) *messaging_api.TextMessage {
	t.Helper()
	require.Len(t, msgs, 1)
	msg, ok := msgs[0].(*messaging_api.TextMessage)
	require.True(t, ok, "expected text message, got %T", msgs[0])
	return msg
}

func quickReplyLabels(t *testing.T, msg *messaging_api.TextMessage) []string {
	t.Helper()
	require.NotNil(t, msg.QuickReply)
	var labels []string
	for _, item := range msg.QuickReply.Items {
		switch a := item.Action.(type) {
		case *messaging_api.MessageAction:
			labels = append(labels, a.Label)
		case *messaging_api.PostbackAction:
			labels = append(labels, a.Label)
		case *messaging_api.UriAction:
			labels = append(labels, a.Label)
		case *messaging_api.LocationAction:
			labels = append(labels, a.Label)
		}
	}
	return labels
}

func TestHandleMessage(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name     string
		text     string
		contains string
		labels   []string
	}{
		{"single match renders forecast", "永和", "📍 新北市永和區 天氣預報", nil},
		{"variant spelling", "台北市信義區", "😕 目前沒有 臺北市信義區 的天氣資料", nil},
		{"ambiguous offers choices", "中正區", "找到多個符合的地點", []string{"基隆市中正區", "臺北市中正區"}},
		{"not found", "火星區", "找不到「火星區」", nil},
		{"invalid input", "taipei", location.MsgInputCharset, nil},
		{"too long", "新北市永和區中正路", location.MsgInputLength, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := single(t, f.handler.HandleMessage(context.Background(), tt.text))
			assert.Contains(t, msg.Text, tt.contains)
			if tt.labels != nil {
				assert.ElementsMatch(t, tt.labels, quickReplyLabels(t, msg))
			}
		})
	}

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LocationResolutionsTotal.WithLabelValues("text", "ambiguous")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.LocationResolutionsTotal.WithLabelValues("text", "invalid")), 1e-9)
}

func TestHandleLocation(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("gps", func(t *testing.T) {
		msg := single(t, f.handler.HandleLocation(context.Background(), 25.0080, 121.5140, ""))
		assert.Contains(t, msg.Text, "新北市永和區")
	})

	t.Run("address wins over gps", func(t *testing.T) {
		msg := single(t, f.handler.HandleLocation(context.Background(), 25.0080, 121.5140, "110臺北市信義區市府路1號"))
		assert.Contains(t, msg.Text, "臺北市信義區")
	})

	t.Run("outside taiwan", func(t *testing.T) {
		msg := single(t, f.handler.HandleLocation(context.Background(), 35.6762, 139.6503, "東京都新宿区"))
		assert.Equal(t, MsgOutsideTaiwan, msg.Text)
	})

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LocationResolutionsTotal.WithLabelValues("gps", "resolved")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LocationResolutionsTotal.WithLabelValues("address", "resolved")), 1e-9)
}

func TestFollowQueryAndRecent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := userCtx("U1")

	// Queries from unknown users are answered but not recorded
	f.handler.HandleMessage(ctx, "永和")

	msg := single(t, f.handler.HandleFollow(ctx))
	assert.Equal(t, MsgWelcome, msg.Text)

	user, err := f.db.GetUserByLineID(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsActive)

	recent := single(t, f.handler.HandlePostback(ctx, bot.Postback{Action: ActionRecentQueries}))
	assert.Equal(t, MsgNoRecentQueries, recent.Text)

	f.handler.HandleMessage(ctx, "永和")
	f.handler.HandleLocation(ctx, 35.6762, 139.6503, "")
	f.handler.HandleLocation(ctx, 25.0331, 121.5655, "")

	recent = single(t, f.handler.HandlePostback(ctx, bot.Postback{Action: ActionRecentQueries}))
	assert.Equal(t, "最近查過的 5 個地點：", recent.Text)
	assert.Equal(t, []string{"臺北市信義區", "新北市永和區"}, quickReplyLabels(t, recent))

	f.handler.HandleUnfollow(ctx)
	user, err = f.db.GetUserByLineID(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	// Unknown users are only logged
	f.handler.HandleUnfollow(userCtx("U404"))
}

func TestPresetWeather(t *testing.T) {
	f := newFixture(t, nil)
	ctx := userCtx("U2")

	msg := single(t, f.handler.HandlePostback(ctx, bot.Postback{Action: ActionWeather, Type: TypeHome}))
	assert.Equal(t, "請先設定住家地址，點擊下方「設定地點」按鈕即可設定。", msg.Text)

	user, err := f.db.GetUserByLineID(ctx, "U2")
	require.NoError(t, err)
	require.NotNil(t, user, "preset lookups create the user")

	require.NoError(t, f.db.SetUserLocation(ctx, "U2", storage.UserLocationHome, f.yonghe.ID))

	msg = single(t, f.handler.HandlePostback(ctx, bot.Postback{Action: ActionWeather, Type: TypeHome}))
	assert.Contains(t, msg.Text, "📍 新北市永和區 天氣預報")

	msg = single(t, f.handler.HandlePostback(ctx, bot.Postback{Action: ActionWeather, Type: TypeOffice}))
	assert.Equal(t, "請先設定公司地址，點擊下方「設定地點」按鈕即可設定。", msg.Text)

	// Preset lookups stay out of the history
	recent, err := f.db.GetRecentQueries(ctx, user.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestPresetWeather_StorageFailure(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.db.Close())

	msg := single(t, f.handler.HandlePostback(userCtx("U3"), bot.Postback{Action: ActionWeather, Type: TypeHome}))
	assert.Equal(t, MsgQueryFailed, msg.Text)
}

func TestHandlePostback_Menus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := userCtx("U3")

	tests := []struct {
		name   string
		pb     bot.Postback
		text   string
		labels []string
	}{
		{"current location", bot.Postback{Action: ActionWeather, Type: TypeCurrent}, MsgPickOnMap, []string{"開啟地圖選擇"}},
		{"unknown location type", bot.Postback{Action: ActionWeather, Type: "moon"}, MsgUnknownLocationType, nil},
		{
			"liff settings",
			bot.Postback{Action: ActionSettings, Type: TypeLocation},
			"地點設定\n\n請點擊下方連結設定您的常用地點：\n" + testBaseURL + "/static/liff/location/index.html" +
				"\n\n設定完成後，您就可以透過快捷功能查詢住家或公司的天氣了！",
			nil,
		},
		{"unknown setting", bot.Postback{Action: ActionSettings, Type: "theme"}, MsgUnknownSettingType, nil},
		{"other menu", bot.Postback{Action: ActionOther, Type: TypeMenu}, MsgOtherMenu, []string{"📢 公告", "🔄 更新", "📖 使用說明", "ℹ️ 專案介紹"}},
		{"unknown other", bot.Postback{Action: ActionOther, Type: "x"}, MsgUnknownAction, nil},
		{"announcements file missing", bot.Postback{Action: ActionOther, Type: TypeAnnouncements}, announcement.MsgLoadFailed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := single(t, f.handler.HandlePostback(ctx, tt.pb))
			assert.Equal(t, tt.text, msg.Text)
			if tt.labels != nil {
				assert.Equal(t, tt.labels, quickReplyLabels(t, msg))
			}
		})
	}
}

func TestOtherMenuLinks(t *testing.T) {
	f := newFixture(t, nil)
	msg := single(t, f.handler.HandlePostback(userCtx("U3"), bot.Postback{Action: ActionOther, Type: TypeMenu}))
	require.NotNil(t, msg.QuickReply)
	items := msg.QuickReply.Items
	require.Len(t, items, 4)

	pb := items[0].Action.(*messaging_api.PostbackAction)
	assert.Equal(t, "action=other&type=announcements", pb.Data)
	assert.Equal(t, "查看系統公告", pb.DisplayText)
	assert.Equal(t, ChangelogURL, items[1].Action.(*messaging_api.UriAction).Uri)
	assert.Equal(t, testBaseURL+"/static/help/index.html", items[2].Action.(*messaging_api.UriAction).Uri)
	assert.Equal(t, testBaseURL+"/static/about/index.html", items[3].Action.(*messaging_api.UriAction).Uri)
}

func TestHandlePostback_ProcessingLock(t *testing.T) {
	rdb := &busyRedis{}
	locker := lock.New(rdb, time.Second, logger.NewWithWriter("error", io.Discard), nil)
	f := newFixture(t, locker)
	ctx := userCtx("U4")

	for _, pb := range []bot.Postback{
		{Action: ActionWeather, Type: TypeHome},
		{Action: ActionWeather, Type: TypeOffice},
		{Action: ActionRecentQueries},
	} {
		msg := single(t, f.handler.HandlePostback(ctx, pb))
		assert.Equal(t, lineutil.MsgTooFrequent, msg.Text, pb.Action+"/"+pb.Type)
	}

	// Cheap postbacks skip the lock
	msg := single(t, f.handler.HandlePostback(ctx, bot.Postback{Action: ActionWeather, Type: TypeCurrent}))
	assert.Equal(t, MsgPickOnMap, msg.Text)
	assert.Equal(t, 3, rdb.calls)
}
