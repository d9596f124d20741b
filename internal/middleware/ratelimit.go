package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/config"
)

const maxTrackedClients = 10000

type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    time.Duration
	burst    int
}

func (s *clientLimiters) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[key]
	if !ok {
		if len(s.limiters) >= maxTrackedClients {
			s.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Every(s.every), s.burst)
		s.limiters[key] = limiter
	}
	return limiter
}

// RateLimiter applies a token bucket per client IP. name labels the 429 message and logs.
func RateLimiter(name string, cfg config.RateLimitConfig, logger *zap.Logger) echo.MiddlewareFunc {
	if cfg.Requests <= 0 || cfg.Interval <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return next(c)
			}
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	perRequest := cfg.Interval / time.Duration(cfg.Requests)
	if perRequest <= 0 {
		perRequest = time.Second
	}
	store := &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		every:    perRequest,
		burst:    cfg.Requests,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !store.get(ip).Allow() {
				logger.Warn("rate limit exceeded", zap.String("limiter", name), zap.String("ip", ip))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": name + " rate limit exceeded"})
			}
			return next(c)
		}
	}
}
