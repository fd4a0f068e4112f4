package config

import "time"

// RateLimitConfig tunes the token bucket in front of the public write
// endpoints (registration, rename, booking).  Burst requests may arrive
// back to back; after that one request is admitted every Per.
type RateLimitConfig struct {
	Enabled bool
	Burst   int
	Per     time.Duration
	KeyBy   string // "ip" or "ip_route"
	Prefix  string
}

func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Burst:   envInt("RATE_LIMIT_BURST", 20),
		Per:     envDur("RATE_LIMIT_PER", 3*time.Second),
		KeyBy:   envStr("RATE_LIMIT_KEY_BY", "ip_route"),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "turf:rl"),
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.Per <= 0 {
		cfg.Per = time.Second
	}
	if cfg.KeyBy != "ip" {
		cfg.KeyBy = "ip_route"
	}
	return cfg
}

// IdleTTL is how long an untouched bucket is kept: long enough to refill
// completely, after which a fresh bucket is equivalent.
func (c RateLimitConfig) IdleTTL() time.Duration {
	return time.Duration(c.Burst+1) * c.Per
}
