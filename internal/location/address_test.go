package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_MatchAddress(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name         string
		address      string
		wantCounty   string
		wantDistrict string
	}{
		{"municipality", "台北市信義區信義路五段7號", "臺北市", "信義區"},
		{"postal code prefix", "110臺北市信義區市府路1號", "臺北市", "信義區"},
		{"country prefix", "臺灣臺北市大安區羅斯福路四段1號", "臺北市", "大安區"},
		{"one character district", "臺中市中區自由路二段", "臺中市", "中區"},
		{"three character district", "高雄市那瑪夏區達卡努瓦里", "高雄市", "那瑪夏區"},
		{"provincial city", "新竹市東區光復路二段101號", "新竹市", "東區"},
		{"county city", "新竹縣竹北市光明六路10號", "新竹縣", "竹北市"},
		{"county city with street 區", "苗栗縣頭份市中正路", "苗栗縣", "頭份市"},
		{"township", "連江縣南竿鄉介壽村", "連江縣", "南竿鄉"},
		{"town", "彰化縣鹿港鎮中山路", "彰化縣", "鹿港鎮"},
		{"three character township", "嘉義縣阿里山鄉中正村", "嘉義縣", "阿里山鄉"},
		{"variant in district", "雲林縣台西鄉五港村", "雲林縣", "臺西鄉"},
		{"full width and spaces", "台北市　中正區 重慶南路一段１２２號", "臺北市", "中正區"},
		{"exclave", "金門縣金城鎮民生路", "金門縣", "金城鎮"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			county, district, ok := r.MatchAddress(tt.address)
			require.True(t, ok, "no division found in %q", tt.address)
			assert.Equal(t, tt.wantCounty, county)
			assert.Equal(t, tt.wantDistrict, district)
		})
	}
}

func TestRegistry_MatchAddress_NoDivision(t *testing.T) {
	r := testRegistry(t)

	for _, address := range []string{
		"火星市外星區太空路1號",
		"臺北市永和區中山路",
		"信義路五段7號",
		"Taipei 101",
		"",
	} {
		_, _, ok := r.MatchAddress(address)
		assert.False(t, ok, address)
	}
}

func TestAddressExtractor_Extract(t *testing.T) {
	ctx := context.Background()
	catalog := new(fakeCatalog).
		add("臺北市", "信義區", 25.0330, 121.5654).
		add("新北市", "永和區", 25.0076, 121.5138)
	extractor := NewAddressExtractor(testRegistry(t), catalog)

	t.Run("resolves to catalog row", func(t *testing.T) {
		loc, err := extractor.Extract(ctx, "台北市信義區信義路五段7號")
		require.NoError(t, err)
		require.NotNil(t, loc)
		assert.Equal(t, "臺北市信義區", loc.FullName)
	})

	t.Run("plausible but unknown division", func(t *testing.T) {
		lookups := catalog.exactLookup
		loc, err := extractor.Extract(ctx, "火星市外星區太空路1號")
		require.NoError(t, err)
		assert.Nil(t, loc)
		assert.Equal(t, lookups, catalog.exactLookup, "catalog must not be queried for illegal divisions")
	})

	t.Run("legal division missing from catalog", func(t *testing.T) {
		loc, err := extractor.Extract(ctx, "高雄市苓雅區四維三路2號")
		require.NoError(t, err)
		assert.Nil(t, loc)
	})

	t.Run("catalog error", func(t *testing.T) {
		boom := errors.New("database is locked")
		failing := NewAddressExtractor(testRegistry(t), &fakeCatalog{err: boom})
		_, err := failing.Extract(ctx, "台北市信義區信義路五段7號")
		assert.ErrorIs(t, err, boom)
	})
}
