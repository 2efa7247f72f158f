package middleware

import (
	"strconv"
	"sync"
	"time"

	"rewardnet/config"
	"rewardnet/internal/delivery/api/response"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiter returns nil when the configured rate is zero.
func NewRateLimiter(cfg *config.Config) *RateLimiter {
	rl := cfg.HTTP.RateLimit
	if rl.RequestsPerSecond <= 0 {
		return nil
	}

	burst := rl.Burst
	if burst <= 0 {
		burst = max(1, int(rl.RequestsPerSecond))
	}

	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rl.RequestsPerSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// Handle rejects requests beyond the client's budget with 429.
func (r *RateLimiter) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		limiter := r.limiterFor(c.RealIP())
		if !limiter.AllowN(r.now(), 1) {
			retryAfter := time.Duration(float64(time.Second) / float64(r.limit))
			c.Response().Header().Set("Retry-After", strconv.Itoa(max(1, int(retryAfter.Seconds()))))

			return response.TooManyRequests(c, "RATE_LIMITED", "Too many requests")
		}

		return next(c)
	}
}

func (r *RateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	client, ok := r.clients[ip]
	if !ok {
		r.evictIdle(now)
		client = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[ip] = client
	}
	client.lastSeen = now

	return client.limiter
}

// evictIdle drops clients unseen for limiterIdleTTL; caller holds mu.
func (r *RateLimiter) evictIdle(now time.Time) {
	for ip, client := range r.clients {
		if now.Sub(client.lastSeen) > limiterIdleTTL {
			delete(r.clients, ip)
		}
	}
}
