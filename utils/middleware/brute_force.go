package middleware

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/utils/cache"
	"github.com/sahilchouksey/course-storefront/utils/request"
	"github.com/sahilchouksey/course-storefront/utils/response"
)

// BruteForceProtection throttles password and auto-login attempts per client IP.
// A nil cache disables it, so the API still runs without Redis.
type BruteForceProtection struct {
	redisCache *cache.RedisCache
}

func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{
		redisCache: redisCache,
	}
}

// attemptWindow is how long failed attempts are remembered.
const attemptWindow = 15 * time.Minute

func attemptKey(ip string) string { return fmt.Sprintf("brute_force:attempts:%s", ip) }
func lockKey(ip string) string    { return fmt.Sprintf("brute_force:lock:%s", ip) }

// Guard rejects requests from locked out IPs.
func (b *BruteForceProtection) Guard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if b == nil || b.redisCache == nil {
			return c.Next()
		}

		ip := request.ClientIP(c)
		locked, ttl, err := b.redisCache.FlagTTL(c.UserContext(), lockKey(ip))
		if err != nil {
			// Redis outages must not lock everyone out
			return c.Next()
		}

		if locked {
			retryAfter := int(ttl.Seconds())
			if retryAfter <= 0 {
				retryAfter = 60
			}

			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", retryAfter))
			return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
		}

		return c.Next()
	}
}

// RecordFailure counts a failed attempt and applies progressive lockouts.
func (b *BruteForceProtection) RecordFailure(ctx context.Context, ip string) {
	if b == nil || b.redisCache == nil {
		return
	}

	attempts, err := b.redisCache.CountInWindow(ctx, attemptKey(ip), attemptWindow)
	if err != nil {
		log.Printf("[AUTH] Failed to count attempt for %s: %v", ip, err)
		return
	}

	var lockDuration time.Duration
	switch {
	case attempts >= 25:
		lockDuration = 24 * time.Hour
	case attempts >= 10:
		lockDuration = time.Hour
	case attempts >= 5:
		lockDuration = 2 * time.Minute
	default:
		return
	}

	if err := b.redisCache.SetFlag(ctx, lockKey(ip), lockDuration); err != nil {
		log.Printf("[AUTH] Failed to lock %s: %v", ip, err)
	}
}

// RecordSuccess clears the counters for ip.
func (b *BruteForceProtection) RecordSuccess(ctx context.Context, ip string) {
	if b == nil || b.redisCache == nil {
		return
	}
	b.redisCache.Delete(ctx, attemptKey(ip), lockKey(ip))
}
