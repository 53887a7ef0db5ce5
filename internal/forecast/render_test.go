package forecast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

func intp(v int) *int { return &v }

var xinyi = &storage.Location{ID: 7, County: "臺北市", District: "信義區", FullName: "臺北市信義區"}

func TestRender_Empty(t *testing.T) {
	got := Render(xinyi, nil)
	assert.Equal(t, "😕 目前沒有 臺北市信義區 的天氣資料，請稍後再試", got)
}

func TestRender_Windows(t *testing.T) {
	tz := lineutil.Taipei()
	start := time.Date(2025, 3, 10, 21, 0, 0, 0, tz)

	forecasts := []storage.Forecast{
		{
			StartTime:                start,
			EndTime:                  start.Add(3 * time.Hour),
			WeatherCondition:         "多雲時晴",
			WeatherEmoji:             "🌤️",
			PrecipitationProbability: intp(20),
			MinTemperature:           intp(18),
			MaxTemperature:           intp(22),
		},
		{
			StartTime:        start.Add(3 * time.Hour),
			EndTime:          start.Add(6 * time.Hour),
			WeatherCondition: "陰",
			MinTemperature:   intp(17),
			MaxTemperature:   intp(17),
		},
	}

	got := Render(xinyi, forecasts)
	lines := strings.Split(got, "\n")

	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "📍 臺北市信義區 天氣預報", lines[0])
	assert.Equal(t, "03/10 21:00 - 03/11 00:00", lines[2])
	assert.Equal(t, "🌤️ 多雲時晴｜🌡️ 18-22°C｜☔ 20%", lines[3])
	assert.Equal(t, "03/11 00:00 - 03:00", lines[5])
	assert.Equal(t, defaultEmoji+" 陰｜🌡️ 17°C", lines[6])
	assert.NotContains(t, got, "資料更新於", "zero fetch time has no footer")
}

func TestRender_FetchedFooter(t *testing.T) {
	now := time.Now()
	got := Render(xinyi, []storage.Forecast{{
		StartTime:        now,
		EndTime:          now.Add(3 * time.Hour),
		FetchedAt:        now,
		WeatherCondition: "晴",
	}})

	assert.Contains(t, got, "\n\n🕐 資料更新於 今天 ")
}

func TestRender_ConvertsToTaipei(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	got := Render(xinyi, []storage.Forecast{{
		StartTime:        start,
		EndTime:          start.Add(3 * time.Hour),
		WeatherCondition: "晴",
	}})

	assert.Contains(t, got, "03/10 08:00 - 11:00")
}

type fakeStore struct {
	forecasts []storage.Forecast
	err       error
	gotLimit  int
	gotID     int64
}

func (f *fakeStore) GetUpcomingForecasts(_ context.Context, locationID int64, _ time.Time, limit int) ([]storage.Forecast, error) {
	f.gotID, f.gotLimit = locationID, limit
	return f.forecasts, f.err
}

func TestService_Describe(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, 0)

	got, err := svc.Describe(context.Background(), xinyi)
	require.NoError(t, err)
	assert.Contains(t, got, "目前沒有")
	assert.Equal(t, int64(7), store.gotID)
	assert.Equal(t, 4, store.gotLimit, "non-positive window count falls back to 4")

	store.err = errors.New("database is locked")
	_, err = svc.Describe(context.Background(), xinyi)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.err)
}

func TestService_DescribeWithDB(t *testing.T) {
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	loc := &storage.Location{Geocode: "6300200", County: "臺北市", District: "信義區"}
	require.NoError(t, db.UpsertLocation(ctx, loc))

	fetched := time.Now().Add(-time.Hour).Truncate(time.Second)
	first := time.Now().Truncate(time.Hour)
	var rows []storage.Forecast
	for i := range 6 {
		rows = append(rows, storage.Forecast{
			LocationID:       loc.ID,
			StartTime:        first.Add(time.Duration(i*3) * time.Hour),
			EndTime:          first.Add(time.Duration(i*3+3) * time.Hour),
			FetchedAt:        fetched,
			WeatherCondition: "晴",
			WeatherEmoji:     "☀️",
		})
	}
	require.NoError(t, db.SaveForecasts(ctx, rows))

	got, err := NewService(db, 2).Describe(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(got, "☀️ 晴"))
}
