package router

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterSet holds one golang.org/x/time/rate.Limiter per scope+identity
// key (spec.md §4.7: global, per_user:<id>, per_ip:<ip>, per_api_key:<key>),
// created lazily and kept for the process lifetime.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{limiters: make(map[string]*rate.Limiter)}
}

func (s *limiterSet) allow(key string, rl RateLimit) bool {
	s.mu.Lock()
	lim, ok := s.limiters[key]
	if !ok {
		perSecond := float64(rl.RequestsPerMinute) / 60.0
		burst := rl.BurstLimit
		if burst <= 0 {
			burst = rl.RequestsPerMinute
		}
		lim = rate.NewLimiter(rate.Limit(perSecond), burst)
		s.limiters[key] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}

// identityKey builds the per-scope limiter key for a request (spec.md
// §4.7's rate-limit scopes).
func identityKey(scope RateLimitScope, req Request) string {
	switch scope {
	case ScopePerUser:
		if req.User != nil {
			return "per_user:" + req.User.UserID
		}
		return "per_user:anonymous"
	case ScopePerIP:
		return "per_ip:" + req.ClientIP
	case ScopePerAPIKey:
		return "per_api_key:" + req.APIKey
	default:
		return "global"
	}
}
