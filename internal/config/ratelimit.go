package config

import "time"

// RateLimit configures the Redis token bucket applied to seat endpoints.
// Burst and RefillEvery are shorthands: Burst overrides Capacity and
// RefillEvery means one token per interval.
type RateLimit struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" env-default:"60"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" env-default:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" env-default:"1s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" env-default:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" env-default:"ip_session_route"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX" env-default:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG" env-default:"false"`
	Burst          int           `env:"RATE_LIMIT_BURST" env-default:"-1"`
	RefillEvery    time.Duration `env:"RATE_LIMIT_REFILL_EVERY" env-default:"0s"`
}

func (r RateLimit) normalize() RateLimit {
	if r.Burst > 0 {
		r.Capacity = r.Burst
	}
	if r.RefillEvery > 0 {
		r.RefillTokens = 1
		r.RefillInterval = r.RefillEvery
	}
	if r.Capacity < 1 {
		r.Capacity = 1
	}
	if r.RefillTokens < 1 {
		r.RefillTokens = 1
	}
	if r.RefillInterval <= 0 {
		r.RefillInterval = time.Second
	}
	if minTTL := 5 * r.RefillInterval; r.TTL < minTTL {
		r.TTL = minTTL
	}
	if r.Prefix == "" {
		r.Prefix = "rl"
	}
	return r
}
