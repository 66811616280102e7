package middleware

import (
	"context"
	"fmt"
	"time"

	"alchemy/internal/common/cache"
	pkgerrors "alchemy/pkg/errors"
	"alchemy/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const rateKeyPrefix = "alchemy:rate:"

// RateLimitPolicy limits requests per client IP and per authenticated
// subject within a fixed window. Zero disables a limit.
type RateLimitPolicy struct {
	Window     time.Duration `yaml:"window"`
	IPMax      int           `yaml:"ipMax"`
	SubjectMax int           `yaml:"subjectMax"`
}

// RateLimiter enforces fixed-window limits using Redis counters.
type RateLimiter struct {
	cache        cache.BasicOps
	redisTimeout time.Duration
}

func NewRateLimiter(cacheClient cache.BasicOps, redisTimeout time.Duration) *RateLimiter {
	if redisTimeout <= 0 {
		redisTimeout = time.Second
	}
	return &RateLimiter{cache: cacheClient, redisTimeout: redisTimeout}
}

// Allow counts one hit on key and fails with TooManyRequests above max.
func (l *RateLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if l.cache == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 || window <= 0 {
		return nil
	}

	ctxCache, cancel := context.WithTimeout(ctx, l.redisTimeout)
	defer cancel()

	acquired, err := l.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	count := int64(1)
	if !acquired {
		count, err = l.cache.Incr(ctxCache, key)
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
		}
		// Counter left without expiry.
		if ttl, ttlErr := l.cache.TTL(ctxCache, key); ttlErr == nil && ttl < 0 {
			_ = l.cache.Expire(ctxCache, key, window)
		}
	}
	if int(count) > max {
		return pkgerrors.New(pkgerrors.TooManyRequests).WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
	}
	return nil
}

type rateCheck struct {
	key string
	max int
}

// RateLimitMiddleware applies policy to a route group. Cache failures let the
// request through.
func RateLimitMiddleware(limiter *RateLimiter, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || policy.Window <= 0 {
			c.Next()
			return
		}
		checks := make([]rateCheck, 0, 2)
		if policy.IPMax > 0 {
			checks = append(checks, rateCheck{fmt.Sprintf("%sip:%s:%s", rateKeyPrefix, c.ClientIP(), routeKey), policy.IPMax})
		}
		if subject := c.GetString(subjectContextKey); subject != "" && policy.SubjectMax > 0 {
			checks = append(checks, rateCheck{fmt.Sprintf("%ssubject:%s:%s", rateKeyPrefix, subject, routeKey), policy.SubjectMax})
		}
		for _, check := range checks {
			err := limiter.Allow(c.Request.Context(), check.key, check.max, policy.Window)
			if err == nil {
				continue
			}
			if pkgerrors.Is(err, pkgerrors.TooManyRequests) {
				response.AbortWithError(c, err)
				return
			}
			break
		}
		c.Next()
	}
}
