package redis

import (
	"time"

	"github.com/Alijeyrad/simorq_settlement/config"
)

// Config holds Redis connection settings used by the rate cache, the
// settlement lock and the HTTP rate limiter.
type Config struct {
	Addr     string
	DB       int
	Username string
	Password string

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// FromCentralConfig converts central config.RedisConfig to package Config,
// falling back to DefaultConfig for every unset value.
func FromCentralConfig(c config.RedisConfig) Config {
	d := DefaultConfig()
	cfg := Config{
		Addr:         c.Addr,
		DB:           c.DB,
		Username:     c.Username,
		Password:     c.Password,
		PoolSize:     positiveOr(c.PoolSize, d.PoolSize),
		MinIdleConns: positiveOr(c.MinIdleConns, d.MinIdleConns),
		DialTimeout:  secondsOr(c.DialTimeoutSeconds, d.DialTimeout),
		ReadTimeout:  secondsOr(c.ReadTimeoutSeconds, d.ReadTimeout),
		WriteTimeout: secondsOr(c.WriteTimeoutSeconds, d.WriteTimeout),
	}
	return cfg
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func secondsOr(v int, def time.Duration) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Second
	}
	return def
}
