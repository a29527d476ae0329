package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dorm-occupancy/internal/config"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{"GET": true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "test:cache",
	}
}

func cachedEcho(cfg config.CacheConfig, rdb *redis.Client, hits *int) *echo.Echo {
	e := echo.New()
	e.GET("/izba/read", func(c echo.Context) error {
		*hits++
		return c.JSON(http.StatusOK, []map[string]int{{"id_izba": 1, "pocet_ubytovanych": *hits}})
	}, NewRedisCache(cfg, rdb))
	e.GET("/broken", func(c echo.Context) error {
		*hits++
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal"})
	}, NewRedisCache(cfg, rdb))
	return e
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRedisCache_MissThenHit(t *testing.T) {
	_, rdb := newRedis(t)
	hits := 0
	e := cachedEcho(cacheConfig(), rdb, &hits)

	first := get(e, "/izba/read")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get(e, "/izba/read")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, hits)
}

func TestRedisCache_SkipsErrors(t *testing.T) {
	_, rdb := newRedis(t)
	hits := 0
	e := cachedEcho(cacheConfig(), rdb, &hits)

	get(e, "/broken")
	rec := get(e, "/broken")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, hits)
}

func TestRedisCache_DisabledWithoutClient(t *testing.T) {
	hits := 0
	e := cachedEcho(cacheConfig(), nil, &hits)

	get(e, "/izba/read")
	rec := get(e, "/izba/read")
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, hits)
}

func TestCacheInvalidator(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := cacheConfig()
	hits := 0
	e := cachedEcho(cfg, rdb, &hits)

	get(e, "/izba/read")
	get(e, "/izba/read?x=1")
	require.NoError(t, mr.Set("other:key", "keep"))
	require.Len(t, mr.Keys(), 3)

	inv := NewCacheInvalidator(cfg, rdb, nil)
	require.NoError(t, inv.Invalidate(context.Background()))
	assert.Equal(t, []string{"other:key", "test:cache.gen"}, mr.Keys())

	rec := get(e, "/izba/read")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), `"pocet_ubytovanych":3`)
}

func TestRedisCache_SkipsStoreWhenInvalidatedMidRequest(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := cacheConfig()
	inv := NewCacheInvalidator(cfg, rdb, nil)
	hits := 0
	e := echo.New()
	e.GET("/izba/read", func(c echo.Context) error {
		hits++
		if hits == 1 {
			// a mutation commits while this read is still being served
			require.NoError(t, inv.Invalidate(c.Request().Context()))
		}
		return c.JSON(http.StatusOK, map[string]int{"pocet_ubytovanych": hits})
	}, NewRedisCache(cfg, rdb))

	first := get(e, "/izba/read")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, []string{"test:cache.gen"}, mr.Keys())

	second := get(e, "/izba/read")
	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.Contains(t, second.Body.String(), `"pocet_ubytovanych":2`)

	third := get(e, "/izba/read")
	assert.Equal(t, "HIT", third.Header().Get("X-Cache"))
	assert.Equal(t, second.Body.String(), third.Body.String())
	assert.Equal(t, 2, hits)
}

func TestCacheInvalidator_NilClient(t *testing.T) {
	assert.NoError(t, NewCacheInvalidator(cacheConfig(), nil, nil).Invalidate(context.Background()))
	var inv *CacheInvalidator
	assert.NoError(t, inv.Invalidate(context.Background()))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(201, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, 201, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}
