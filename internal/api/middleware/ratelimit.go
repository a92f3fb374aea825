package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit throttles the public chat endpoint per client IP. Buckets idle
// for an hour are dropped to keep the map bounded.
func RateLimit(perMinute int) gin.HandlerFunc {
	type bucket struct {
		lim  *rate.Limiter
		seen time.Time
	}

	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if b, ok := buckets[ip]; ok {
			b.seen = now
			return b.lim
		}
		for ip, b := range buckets {
			if now.Sub(b.seen) > time.Hour {
				delete(buckets, ip)
			}
		}
		b := &bucket{
			lim:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
			seen: now,
		}
		buckets[ip] = b
		return b.lim
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiError{
				Code:    utils.CodeUnavailable,
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}
