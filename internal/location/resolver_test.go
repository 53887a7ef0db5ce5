package location

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/weamind-linebot-go/internal/storage"
)

func TestResolver_AddressWinsOverGPS(t *testing.T) {
	ctx := context.Background()
	catalog := new(fakeCatalog).
		add("臺北市", "信義區", 25.0330, 121.5654).
		add("新北市", "永和區", 25.0076, 121.5138)
	r := NewResolver(catalog, testRegistry(t))

	// GPS alone lands in Xinyi.
	gpsOnly, err := r.ResolveByLocationSignal(ctx, 25.0335, 121.5650, "")
	require.NoError(t, err)
	require.NotNil(t, gpsOnly)
	require.Equal(t, "臺北市信義區", gpsOnly.FullName)

	// The same fix with a Yonghe address resolves to Yonghe.
	loc, source, err := r.ResolveSignalWithSource(ctx, 25.0335, 121.5650, "234新北市永和區中正路1號")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "新北市永和區", loc.FullName)
	assert.Equal(t, SourceAddress, source)
}

func TestResolver_FallsBackToGPS(t *testing.T) {
	ctx := context.Background()
	catalog := new(fakeCatalog).add("臺北市", "信義區", 25.0330, 121.5654)
	r := NewResolver(catalog, testRegistry(t))

	for _, address := range []string{"火星市外星區太空路1號", "高雄市苓雅區四維三路2號", "   "} {
		loc, source, err := r.ResolveSignalWithSource(ctx, 25.0335, 121.5650, address)
		require.NoError(t, err)
		require.NotNil(t, loc, address)
		assert.Equal(t, "臺北市信義區", loc.FullName)
		assert.Equal(t, SourceGPS, source)
	}
}

func TestResolver_NothingResolves(t *testing.T) {
	catalog := new(fakeCatalog).add("臺北市", "信義區", 25.0330, 121.5654)
	r := NewResolver(catalog, testRegistry(t))

	loc, source, err := r.ResolveSignalWithSource(context.Background(), 35.6762, 139.6503, "東京都新宿区")
	require.NoError(t, err)
	assert.Nil(t, loc)
	assert.Empty(t, source)
}

func TestResolver_NilRegistryFailsClosed(t *testing.T) {
	catalog := new(fakeCatalog).
		add("臺北市", "信義區", 25.0330, 121.5654).
		add("新北市", "永和區", 25.0076, 121.5138)
	r := NewResolver(catalog, nil)

	assert.False(t, r.IsValidDivisionName("臺北市信義區"))

	// Address parsing is disabled, GPS still works.
	loc, err := r.ResolveByLocationSignal(context.Background(), 25.0335, 121.5650, "新北市永和區中正路1號")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "臺北市信義區", loc.FullName)
}

func TestResolver_WithMaxDistanceKm(t *testing.T) {
	catalog := new(fakeCatalog).add("臺北市", "大安區", 25.0263, 121.5436)

	loc, err := NewResolver(catalog, nil, WithMaxDistanceKm(1)).
		ResolveByLocationSignal(context.Background(), 25.0330, 121.5654, "")
	require.NoError(t, err)
	assert.Nil(t, loc)

	loc, err = NewResolver(catalog, nil, WithMaxDistanceKm(-5)).
		ResolveByLocationSignal(context.Background(), 25.0330, 121.5654, "")
	require.NoError(t, err)
	assert.NotNil(t, loc, "non-positive threshold keeps the default")
}

func TestResolver_IsValidDivisionName(t *testing.T) {
	r := NewResolver(new(fakeCatalog), testRegistry(t))

	assert.True(t, r.IsValidDivisionName("台北市信義區"))
	assert.True(t, r.IsValidDivisionName("臺北市信義區"))
	assert.False(t, r.IsValidDivisionName("臺北市永和區"))
}

func TestResolver_LookupDivision(t *testing.T) {
	ctx := context.Background()
	catalog := new(fakeCatalog).
		add("臺北市", "信義區", 25.0330, 121.5654).
		add("測試縣", "測試鄉")
	r := NewResolver(catalog, testRegistry(t))

	loc, err := r.LookupDivision(ctx, "台北市", "信義區")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "臺北市信義區", loc.FullName)

	// Catalog rows outside the registry are not addressable.
	loc, err = r.LookupDivision(ctx, "測試縣", "測試鄉")
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestResolver_WithSQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	seed := []storage.Location{
		{Geocode: "6300200", County: "臺北市", District: "信義區", Latitude: ptr(25.0330), Longitude: ptr(121.5654)},
		{Geocode: "1001701", County: "基隆市", District: "信義區", Latitude: ptr(25.1292), Longitude: ptr(121.7720)},
		{Geocode: "6500400", County: "新北市", District: "永和區", Latitude: ptr(25.0076), Longitude: ptr(121.5138)},
		{Geocode: "0902001", County: "金門縣", District: "金城鎮", Latitude: ptr(24.4340), Longitude: ptr(118.3170)},
	}
	for i := range seed {
		require.NoError(t, db.UpsertLocation(ctx, &seed[i]))
	}

	r := NewResolver(db, testRegistry(t))

	res, err := r.ResolveByText(ctx, "信義區")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAmbiguous, res.Outcome)
	require.Len(t, res.Locations, 2)
	assert.Equal(t, "基隆市信義區", res.Locations[0].FullName)

	loc, err := r.ResolveByLocationSignal(ctx, 24.45, 118.35, "")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "金門縣金城鎮", loc.FullName)

	loc, err = r.ResolveByLocationSignal(ctx, 25.0335, 121.5650, "台北市信義區信義路五段7號")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, seed[0].ID, loc.ID)
}

func ptr(v float64) *float64 { return &v }
