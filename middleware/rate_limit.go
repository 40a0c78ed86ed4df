package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/cppla/bravesteps/utils"
)

const limiterTableSize = 4096

type rateLimiter struct {
	limiter *rate.Limiter
	mu      sync.Mutex
}

// RateLimitMiddleware applies an IP based token bucket. The least recently seen
// IPs are evicted once limiterTableSize clients are tracked.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	r := rate.Every(time.Minute / time.Duration(max(perMinute, 1)))
	burst := max(perMinute/2, 1)

	table, err := lru.New(limiterTableSize)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	var mu sync.Mutex

	return func(ctx *gin.Context) {
		ip := utils.ClientIP(ctx.Request)

		mu.Lock()
		var limiter *rateLimiter
		if v, ok := table.Get(ip); ok {
			limiter = v.(*rateLimiter)
		} else {
			limiter = &rateLimiter{limiter: rate.NewLimiter(r, burst)}
			table.Add(ip, limiter)
		}
		mu.Unlock()

		limiter.mu.Lock()
		allowed := limiter.limiter.Allow()
		limiter.mu.Unlock()

		if !allowed {
			utils.Abort(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			return
		}

		ctx.Next()
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
