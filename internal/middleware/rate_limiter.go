package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"storefront/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a fixed-window limiter keyed by the authenticated user when
// there is one, else by client IP. With a Redis client the window is shared
// by every API instance; without one each process counts on its own.
func RateLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	local := newLocalWindows()
	return func(c *gin.Context) {
		key := rateKey(c, scope)
		now := time.Now()
		bucket := now.Truncate(window)

		var count int64
		if rdb != nil {
			redisKey := fmt.Sprintf("%s:%d", key, bucket.Unix())
			pipe := rdb.TxPipeline()
			incr := pipe.Incr(c.Request.Context(), redisKey)
			pipe.Expire(c.Request.Context(), redisKey, window)
			if _, err := pipe.Exec(c.Request.Context()); err != nil {
				// Fail open: the limiter must not take the API down with Redis.
				log.Warn().Err(err).Str("scope", scope).Msg("rate limiter: redis unavailable")
				c.Next()
				return
			}
			count = incr.Val()
		} else {
			count = local.incr(key, bucket, window)
		}

		if count > int64(limit) {
			retry := bucket.Add(window).Sub(now)
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				apierror.WithCode(apierror.CodeRateLimited, "Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

func rateKey(c *gin.Context, scope string) string {
	if claims := GetClaims(c); claims != nil && claims.UserID != "" {
		return "ratelimit:" + scope + ":u:" + claims.UserID
	}
	return "ratelimit:" + scope + ":ip:" + c.ClientIP()
}

// localWindows is the in-process fallback.
type localWindows struct {
	mu        sync.Mutex
	counts    map[string]int64
	buckets   map[string]time.Time
	lastPurge time.Time
}

func newLocalWindows() *localWindows {
	return &localWindows{counts: make(map[string]int64), buckets: make(map[string]time.Time)}
}

func (w *localWindows) incr(key string, bucket time.Time, window time.Duration) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if bucket.Sub(w.lastPurge) >= window {
		for k, b := range w.buckets {
			if b.Before(bucket) {
				delete(w.buckets, k)
				delete(w.counts, k)
			}
		}
		w.lastPurge = bucket
	}
	if !w.buckets[key].Equal(bucket) {
		w.buckets[key] = bucket
		w.counts[key] = 0
	}
	w.counts[key]++
	return w.counts[key]
}
