package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/utils"
)

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		id, _ := AdminID(c)
		return c.String(http.StatusOK, "admin "+strconv.FormatUint(id, 10))
	}, JWTAuth("k"), RequireRole(utils.RoleAdmin))
	e.GET("/other", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth("k"), RequireRole("AUDITOR"))

	admin, _ := utils.NewAccessToken("k", 7, utils.RoleAdmin, 5)
	if rec := serve(e, http.MethodGet, "/admin", admin.Token); rec.Code != http.StatusOK || rec.Body.String() != "admin 7" {
		t.Errorf("admin = %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(e, http.MethodGet, "/admin", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rec.Code)
	}
	forged, _ := utils.NewAccessToken("other-key", 7, utils.RoleAdmin, 5)
	if rec := serve(e, http.MethodGet, "/admin", forged.Token); rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token = %d, want 401", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/other", admin.Token); rec.Code != http.StatusForbidden {
		t.Errorf("wrong role = %d, want 403", rec.Code)
	}
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		if _, ok := AdminID(c); ok {
			return c.String(http.StatusOK, "admin")
		}
		return c.String(http.StatusOK, "anon")
	}, OptionalJWT("k"))

	tok, _ := utils.NewAccessToken("k", 1, utils.RoleAdmin, 5)
	if got := serve(e, http.MethodGet, "/", tok.Token).Body.String(); got != "admin" {
		t.Errorf("with token = %q", got)
	}
	if got := serve(e, http.MethodGet, "/", "junk").Body.String(); got != "anon" {
		t.Errorf("bad token = %q", got)
	}
	if got := serve(e, http.MethodGet, "/", "").Body.String(); got != "anon" {
		t.Errorf("no token = %q", got)
	}
}

func TestRequestLogSetsID(t *testing.T) {
	e := echo.New()
	e.Use(RequestLog())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, RequestID(c)) })

	rec := serve(e, http.MethodGet, "/", "")
	id := rec.Header().Get(echo.HeaderXRequestID)
	if id == "" || rec.Body.String() != id {
		t.Errorf("request id header %q, body %q", id, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "upstream-1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Body.String() != "upstream-1" {
		t.Errorf("inbound id not kept: %q", rec.Body.String())
	}
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")

	cfg := config.RateLimitConfig{Prefix: "turf:rl", KeyBy: "ip_route"}
	if got := rateKey(cfg, c); got != "turf:rl:ip:203.0.113.9:POST /v1/bookings" {
		t.Errorf("ip_route key = %q", got)
	}
	cfg.KeyBy = "ip"
	if got := rateKey(cfg, c); got != "turf:rl:ip:203.0.113.9" {
		t.Errorf("ip key = %q", got)
	}
	c.Set(CtxAdminID, uint64(3))
	if got := rateKey(cfg, c); got != "turf:rl:admin:3" {
		t.Errorf("admin key = %q", got)
	}
}

func TestCacheKeyVariesByParamAndQuery(t *testing.T) {
	e := echo.New()
	key := func(path, query string, params ...string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, path+"?"+query, nil), httptest.NewRecorder())
		c.SetPath("/v1/admin/users/:phone")
		if len(params) > 0 {
			c.SetParamNames("phone")
			c.SetParamValues(params...)
		}
		return cacheKey("turf:reports", c)
	}
	a := key("/v1/admin/users/1", "", "1")
	b := key("/v1/admin/users/2", "", "2")
	q := key("/v1/admin/users/1", "x=1", "1")
	if a == b || a == q {
		t.Errorf("keys collide: %s %s %s", a, b, q)
	}
	if !strings.HasPrefix(a, "turf:reports:") {
		t.Errorf("key %q lacks prefix", a)
	}
	if a != key("/v1/admin/users/1", "", "1") {
		t.Error("key not stable")
	}
}

func TestRecorderLimit(t *testing.T) {
	rec := &recorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK, limit: 8}
	_, _ = rec.Write([]byte("12345"))
	if rec.overflow || rec.buf.String() != "12345" {
		t.Fatalf("under limit: overflow=%v buf=%q", rec.overflow, rec.buf.String())
	}
	_, _ = rec.Write([]byte("6789"))
	if !rec.overflow || rec.buf.Len() != 0 {
		t.Errorf("over limit: overflow=%v buf=%q", rec.overflow, rec.buf.String())
	}
}

func TestRedisFeaturesOffWithoutClient(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Burst: 1}, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil))

	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/", "")
		if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
			t.Fatalf("request %d = %d cache=%q", i, rec.Code, rec.Header().Get("X-Cache"))
		}
	}
	var inv *CacheInvalidator = NewCacheInvalidator(config.CacheConfig{Enabled: true}, nil)
	if inv != nil {
		t.Fatal("invalidator built without a client")
	}
	inv.Invalidate(context.Background())
}
