package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
)

// HttpCacheInMemory caches GET responses for ttl seconds. Session and log
// endpoints are excluded so pairing QR codes and fresh log queries are never
// served stale.
func HttpCacheInMemory(ttl int) fiber.Handler {
	if ttl <= 0 {
		ttl = 5
	}
	return cache.New(cache.Config{
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != fiber.MethodGet {
				return true
			}
			path := c.Path()
			return strings.Contains(path, "/session") || strings.Contains(path, "/logs")
		},
		Expiration: time.Duration(ttl) * time.Second,
	})
}
