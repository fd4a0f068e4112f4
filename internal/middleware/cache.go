package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/logger"
)

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

// recorder tees the response body into buf while it is under limit.
type recorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// cacheKey hashes the matched route, its path parameters and the raw
// query, so /users/:phone is cached per phone.
func cacheKey(prefix string, c echo.Context) string {
	h := sha256.New()
	h.Write([]byte(c.Path()))
	for _, v := range c.ParamValues() {
		h.Write([]byte{0})
		h.Write([]byte(v))
	}
	h.Write([]byte{0})
	h.Write([]byte(c.Request().URL.RawQuery))
	return prefix + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

// NewRedisCache serves repeated report GETs from Redis.  It is mounted on
// the admin report routes only; slot availability never goes through it.
// Redis failures degrade to uncached responses.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg.Prefix, c)

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil {
					return replay(c, hit)
				}
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}

			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			hdr.Del(echo.HeaderXRequestID)
			raw, err := json.Marshal(cachedResponse{Status: rec.status, Header: hdr, Body: rec.buf.Bytes()})
			if err != nil {
				return nil
			}
			// the request context may already be done once the body is out
			if err := rdb.Set(context.WithoutCancel(ctx), key, raw, cfg.TTL).Err(); err != nil {
				logger.Debug("cache store failed", "key", key, "err", err)
			}
			return nil
		}
	}
}

func replay(c echo.Context, r cachedResponse) error {
	h := c.Response().Header()
	for k, vals := range r.Header {
		if strings.EqualFold(k, echo.HeaderContentLength) {
			continue
		}
		h[k] = vals
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(r.Status)
	_, err := c.Response().Write(r.Body)
	return err
}

// CacheInvalidator drops every cached report.  Bookings, maintenance and
// user changes call it so admins do not wait out the TTL.
type CacheInvalidator struct {
	rdb    *redis.Client
	prefix string
}

// NewCacheInvalidator returns nil when caching is off; a nil invalidator
// is safe to call.
func NewCacheInvalidator(cfg config.CacheConfig, rdb *redis.Client) *CacheInvalidator {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &CacheInvalidator{rdb: rdb, prefix: cfg.Prefix}
}

// Invalidate deletes the cached entries.  Errors are logged and swallowed.
func (ci *CacheInvalidator) Invalidate(ctx context.Context) {
	if ci == nil {
		return
	}
	iter := ci.rdb.Scan(ctx, 0, ci.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn("cache invalidation scan failed", "prefix", ci.prefix, "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := ci.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("cache invalidation failed", "prefix", ci.prefix, "err", err)
	}
}
