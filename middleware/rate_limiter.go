package middleware

import (
	"net/http"
	"sync"
	"time"

	"lessonhub/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiterEntry pairs a limiter with its last use so idle callers can be
// evicted.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimiterStore maps a caller key to its limiter. Keys are principal IDs
// when a principal has been resolved, client IPs otherwise, so one busy NAT
// does not starve every user behind it.
type callerLimiterStore struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func newCallerLimiterStore() *callerLimiterStore {
	s := &callerLimiterStore{entries: make(map[string]*limiterEntry)}
	go s.sweep()
	return s
}

func (s *callerLimiterStore) get(key string, perMinute int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		}
		s.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// sweep drops limiters idle for more than ten minutes.
func (s *callerLimiterStore) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		s.mu.Lock()
		for key, e := range s.entries {
			if e.lastSeen.Before(cutoff) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

var limiterStore = newCallerLimiterStore()

// RateLimitMiddleware throttles requests per caller.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		perMinute := config.AppConfig.RateLimitPerMinute
		if perMinute <= 0 {
			c.Next()
			return
		}
		key := getClientIP(c)
		if p, ok := GetPrincipal(c); ok {
			key = p.PrincipalID()
		}
		if !limiterStore.get(key, perMinute).Allow() {
			zap.L().Warn("rate limit exceeded", zap.String("caller", key))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
			return
		}
		c.Next()
	}
}
