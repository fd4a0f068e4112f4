package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/logger"
)

// bucketScript refills continuously at one token per ARGV[3] ms, capped at
// the burst, then spends one token if a whole one is available.
// Returns {allowed, tokens_left, wait_ms}.
var bucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local per = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - ts) / per)

local allowed, wait = 0, 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * per)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return { allowed, math.floor(tokens), wait }
`)

// decision is one verdict from the bucket.
type decision struct {
	Allowed   bool
	Remaining int64
	Wait      time.Duration
}

type bucket struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
}

func (b *bucket) take(ctx context.Context, key string) (decision, error) {
	res, err := bucketScript.Run(ctx, b.rdb, []string{key},
		time.Now().UnixMilli(),
		b.cfg.Burst,
		b.cfg.Per.Milliseconds(),
		b.cfg.IdleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return decision{}, err
	}
	if len(res) != 3 {
		return decision{}, fmt.Errorf("unexpected limiter reply %v", res)
	}
	return decision{
		Allowed:   res[0] == 1,
		Remaining: res[1],
		Wait:      time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per client with a Redis token bucket.
// With the limiter disabled or no Redis client every request passes, and
// Redis errors fail open so an outage never blocks bookings.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	b := &bucket{rdb: rdb, cfg: cfg}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			d, err := b.take(c.Request().Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable", "key", key, "err", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if d.Allowed {
				return next(c)
			}

			secs := int64((d.Wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			logger.Debug("rate limited", "key", key, "wait", d.Wait)
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"code":        "too_many_requests",
				"retry_after": secs,
			})
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// rateKey identifies the caller.  Customers never authenticate, so the
// client IP is the identity; admins are keyed by their token subject.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	who := actorID(c)
	if who == "anon" {
		who = "ip:" + c.RealIP()
	}
	if cfg.KeyBy == "ip" {
		return cfg.Prefix + ":" + who
	}
	return cfg.Prefix + ":" + who + ":" + c.Request().Method + " " + c.Path()
}
