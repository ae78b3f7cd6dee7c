package config

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis locates the Redis server used for broadcast, rate limiting and
// response caching.  Host and Port take precedence over Addr when both
// are set.
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	TLS      bool   `env:"REDIS_TLS" env-default:"false"`
}

// Address resolves the host:port to dial.
func (r Redis) Address() string {
	if r.Host != "" && r.Port != "" {
		return r.Host + ":" + r.Port
	}
	if r.Addr != "" {
		return r.Addr
	}
	return "localhost:6379"
}

// NewRedisClient connects to Redis and pings it with a short timeout.  It
// returns nil when the server cannot be reached; callers degrade by
// disabling the features that need Redis.
func NewRedisClient(cfg Redis) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Address(),
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
