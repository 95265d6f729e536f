package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewTransportRateLimitMiddleware creates the stricter limit applied to the
// transport ingress: 30 requests per minute per IP address.
func NewTransportRateLimitMiddleware() gin.HandlerFunc {
	return NewRateLimitMiddleware(30, time.Minute)
}

// NewRateLimitMiddleware creates an in-memory per-IP rate limiting middleware
func NewRateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance)
}
