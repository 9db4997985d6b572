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

    "github.com/iliyamo/dorm-seat-reservation/internal/config"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return mr, rdb
}

func serve(e *echo.Echo, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, nil)
    for k, v := range hdr {
        req.Header.Set(k, v)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
    _, rdb := newRedis(t)
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            time.Hour,
        KeyStrategy:    "ip",
        Prefix:         "rl",
    }
    e := echo.New()
    e.POST("/reservations", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewTokenBucket(cfg, rdb, nil))
    e.DELETE("/reservations", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

    assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/reservations", nil).Code)
    rec := serve(e, http.MethodPost, "/reservations", nil)
    assert.Equal(t, http.StatusCreated, rec.Code)
    assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

    rec = serve(e, http.MethodPost, "/reservations", nil)
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
    assert.Contains(t, rec.Body.String(), "RateLimited")

    // unthrottled route is unaffected
    assert.Equal(t, http.StatusOK, serve(e, http.MethodDelete, "/reservations", nil).Code)
}

func TestTokenBucket_DeviceKeysAreSeparate(t *testing.T) {
    _, rdb := newRedis(t)
    cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, KeyStrategy: "device", Prefix: "rl"}
    e := echo.New()
    e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, nil))

    assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/x", map[string]string{HeaderDeviceID: "a"}).Code)
    assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodPost, "/x", map[string]string{HeaderDeviceID: "a"}).Code)
    assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/x", map[string]string{HeaderDeviceID: "b"}).Code)
}

func TestTokenBucket_FailsOpen(t *testing.T) {
    mr, rdb := newRedis(t)
    mr.Close()
    cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}
    e := echo.New()
    e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, nil))
    for i := 0; i < 3; i++ {
        assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/x", nil).Code)
    }
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
    e := echo.New()
    e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil))
    assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/x", nil).Code)
    assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/x", nil).Code)
}

func TestRedisCache_HitMissAndInvalidate(t *testing.T) {
    mr, rdb := newRedis(t)
    cfg := config.CacheConfig{
        Enabled:      true,
        Methods:      map[string]bool{http.MethodGet: true},
        TTL:          time.Minute,
        KeyStrategy:  "route_query",
        Prefix:       "cache",
        MaxBodyBytes: 1 << 20,
    }
    calls := 0
    e := echo.New()
    e.GET("/reservations", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"calls": calls})
    }, NewRedisCache(cfg, rdb))

    first := serve(e, http.MethodGet, "/reservations", nil)
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
    second := serve(e, http.MethodGet, "/reservations", nil)
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.Equal(t, first.Body.String(), second.Body.String())
    assert.Equal(t, 1, calls)

    // admins always see live data
    adm := serve(e, http.MethodGet, "/reservations", map[string]string{HeaderAdminSecret: "x"})
    assert.Empty(t, adm.Header().Get("X-Cache"))
    assert.Equal(t, 2, calls)

    require.NoError(t, mr.Set("unrelated", "keep"))
    inv := NewCacheInvalidator(cfg, rdb)
    require.NotNil(t, inv)
    require.NoError(t, inv.Invalidate(context.Background()))
    assert.True(t, mr.Exists("unrelated"))

    third := serve(e, http.MethodGet, "/reservations", nil)
    assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
    assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsErrors(t *testing.T) {
    _, rdb := newRedis(t)
    cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache"}
    calls := 0
    e := echo.New()
    e.GET("/x", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "StoreFailure"})
    }, NewRedisCache(cfg, rdb))
    serve(e, http.MethodGet, "/x", nil)
    serve(e, http.MethodGet, "/x", nil)
    assert.Equal(t, 2, calls)
}

func TestCacheInvalidatorDisabled(t *testing.T) {
    assert.Nil(t, NewCacheInvalidator(config.CacheConfig{}, nil))
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
    require.NoError(t, err)
    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, hdr, got)
    assert.Equal(t, `{"a":1}`, string(body))

    _, _, _, ok = decodePayload([]byte{0, 1})
    assert.False(t, ok)
}

func TestAdminAndDeviceExtraction(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set(HeaderAdminName, " warden ")
    req.Header.Set(HeaderAdminSecret, "s")
    req.Header.Set(echo.HeaderAuthorization, "Bearer tok")
    req.Header.Set(HeaderDeviceID, "hdr-device")
    c := e.NewContext(req, httptest.NewRecorder())

    cred := Admin(c)
    assert.Equal(t, "warden", cred.Name)
    assert.Equal(t, "s", cred.Secret)
    assert.Equal(t, "tok", cred.Token)

    assert.Equal(t, "body-device", DeviceID(c, " body-device "))
    assert.Equal(t, "hdr-device", DeviceID(c, ""))

    bare := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    assert.False(t, Admin(bare).Present())
}
