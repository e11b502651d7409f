package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the usage table; idle clients are evicted once
// it is exceeded.
const maxTrackedClients = 10000

// RateLimiter enforces a per-client request rate and a daily upload quota.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	burst             int
	maxDataPerDay     int64 // bytes

	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	limiter   *rate.Limiter
	day       time.Time
	dataToday int64
	lastSeen  time.Time
}

// NewRateLimiter creates a limiter. burst defaults to requestsPerMinute.
func NewRateLimiter(requestsPerMinute, burst int, maxDataPerDay int64) *RateLimiter {
	if burst <= 0 {
		burst = max(requestsPerMinute, 1)
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit reports whether clientID may send a request carrying
// dataSize bytes and records it when allowed.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.usage(clientID, now)

	if day := startOfDay(now); !day.Equal(usage.day) {
		usage.day = day
		usage.dataToday = 0
	}
	if rl.maxDataPerDay > 0 && usage.dataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.dataToday,
			Resets: usage.day.AddDate(0, 0, 1),
		}
	}
	if rl.requestsPerMinute > 0 && !usage.limiter.AllowN(now, 1) {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute / time.Duration(rl.requestsPerMinute),
		}
	}

	usage.dataToday += dataSize
	usage.lastSeen = now
	return nil
}

// DataUsed returns the bytes clientID uploaded today.
func (rl *RateLimiter) DataUsed(clientID string) int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[clientID]; ok && u.day.Equal(startOfDay(rl.now())) {
		return u.dataToday
	}
	return 0
}

func (rl *RateLimiter) usage(clientID string, now time.Time) *clientUsage {
	if u, ok := rl.clients[clientID]; ok {
		return u
	}
	if len(rl.clients) >= maxTrackedClients {
		rl.evictIdle(now)
	}
	limit := rate.Inf
	if rl.requestsPerMinute > 0 {
		limit = rate.Limit(float64(rl.requestsPerMinute) / 60)
	}
	u := &clientUsage{
		limiter:  rate.NewLimiter(limit, rl.burst),
		day:      startOfDay(now),
		lastSeen: now,
	}
	rl.clients[clientID] = u
	return u
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	for id, u := range rl.clients {
		if now.Sub(u.lastSeen) > time.Hour {
			delete(rl.clients, id)
		}
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
