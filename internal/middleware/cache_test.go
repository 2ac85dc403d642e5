package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-vault/internal/config"
)

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}, "X-Custom": {"a", "b"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"vendors":[]}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, gotHdr)
	assert.Equal(t, `{"vendors":[]}`, string(body))
}

func TestDecodePayload_Corrupt(t *testing.T) {
	for _, bs := range [][]byte{nil, {0, 0, 0}, {0, 0, 0, 200, 0, 0, 0, 50, '{'}, {0, 0, 0, 200, 0, 0, 0, 1, '!'}} {
		_, _, _, ok := decodePayload(bs)
		assert.False(t, ok, "%v", bs)
	}
}

func TestCacheKeyFrom(t *testing.T) {
	e := echo.New()
	ctx := func(target, path string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath(path)
		return c
	}
	cfg := config.CacheConfig{Prefix: "vv:cache", KeyStrategy: "route_query"}

	a := cacheKeyFrom(cfg, ctx("/api/vendors?page=1", "/api/vendors"))
	b := cacheKeyFrom(cfg, ctx("/api/vendors?page=2", "/api/vendors"))
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^vv:cache:[0-9a-f]{40}$`, a)
	assert.Equal(t, a, cacheKeyFrom(cfg, ctx("/api/vendors?page=1", "/api/vendors")))

	one := cacheKeyFrom(cfg, ctx("/api/vendors/1", "/api/vendors/:id"))
	two := cacheKeyFrom(cfg, ctx("/api/vendors/2", "/api/vendors/:id"))
	assert.NotEqual(t, one, two)

	cfg.KeyStrategy = "route"
	assert.Equal(t,
		cacheKeyFrom(cfg, ctx("/api/vendors?page=1", "/api/vendors")),
		cacheKeyFrom(cfg, ctx("/api/vendors?page=9", "/api/vendors")))
}

func TestNewRedisCache_DisabledPassesThrough(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/vendors", nil), rec)

	mw := NewRedisCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}}, nil)
	require.NoError(t, mw(func(c echo.Context) error { return c.String(http.StatusOK, "fresh") })(c))
	assert.Equal(t, "fresh", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCaptureWriter_Overflow(t *testing.T) {
	cw := &captureWriter{ResponseWriter: httptest.NewRecorder(), limit: 4}
	_, _ = cw.Write([]byte("abc"))
	assert.False(t, cw.overflowed())
	_, _ = cw.Write([]byte("defg"))
	assert.True(t, cw.overflowed())
}

// memCache implements the two redis commands the cache middleware uses.
type memCache struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memCache) SetEx(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value.([]byte)...)
	return redis.NewStatusResult("OK", nil)
}

func TestStorableHeader(t *testing.T) {
	h := http.Header{}
	h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	h.Set(echo.HeaderXRequestID, "req-1")
	h.Set(echo.HeaderContentLength, "12")
	h.Set("X-Cache", "MISS")

	got := storableHeader(h)
	assert.Equal(t, http.Header{"Content-Type": {echo.MIMEApplicationJSON}}, got)
	assert.Equal(t, "req-1", h.Get(echo.HeaderXRequestID), "source header is untouched")
}

func TestNewRedisCache_HitCarriesOnlyCurrentRequestID(t *testing.T) {
	store := &memCache{data: map[string][]byte{}}
	cfg := config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, KeyStrategy: "route_query", Prefix: "vv:cache", MaxBodyBytes: 1 << 20}

	calls := 0
	e := echo.New()
	e.Use(echomw.RequestID())
	e.GET("/api/vendors", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"vendors": []string{}})
	}, NewRedisCache(cfg, store))

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/vendors", nil))
		return rec
	}

	first := get()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get()
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	ids := second.Header().Values(echo.HeaderXRequestID)
	require.Len(t, ids, 1)
	assert.NotEqual(t, first.Header().Get(echo.HeaderXRequestID), ids[0])
}
