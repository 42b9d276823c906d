package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/simorq_settlement/config"
)

// NewLimiter rate-limits per client IP. Counters live in Redis when a client
// is given so every instance shares them; otherwise they are per process.
func NewLimiter(rdb *redis.Client, cfg config.RateLimitConfig) fiber.Handler {
	limit := cfg.RequestsPerMinute
	if limit <= 0 {
		limit = 120
	}

	lc := limiter.Config{
		Max:               limit,
		Expiration:        time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
	}
	if rdb != nil {
		lc.Storage = fiberredis.NewFromConnection(rdb)
	}
	return limiter.New(lc)
}
