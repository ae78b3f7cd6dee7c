package config

import (
	"strings"
	"time"
)

// Cache configures the response cache in front of the catalog endpoints.
// Caching is disabled when Enabled is false or Redis is unreachable.
type Cache struct {
	Enabled      bool          `env:"CACHE_ENABLED" env-default:"true"`
	MethodList   string        `env:"CACHE_METHODS" env-default:"GET"`
	TTL          time.Duration `env:"CACHE_TTL" env-default:"30s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" env-default:"route_query"`
	Prefix       string        `env:"CACHE_PREFIX" env-default:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" env-default:"1048576"`
}

// Methods returns the upper-cased set of cacheable HTTP methods.
func (c Cache) Methods() map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(c.MethodList, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
