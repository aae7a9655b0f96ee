package restapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"linfer.allora.network/internal/app"
	"linfer.allora.network/internal/models"
)

// noKey buckets requests that carry no API key.
const noKey = "__no_key__"

// RateLimitMiddleware provides per-API-key rate limiting
type RateLimitMiddleware struct {
	limiters  map[string]*limiterEntry
	mu        sync.Mutex
	rateLimit rate.Limit
	burstSize int
	idleTTL   time.Duration
	knownKey  func(string) bool

	stopOnce sync.Once
	stop     chan struct{}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitMiddleware allows ratePerSecond requests per interval per API
// key, with bursts of the same size. A non-positive rate disables limiting.
func NewRateLimitMiddleware(ratePerSecond int, interval time.Duration) *RateLimitMiddleware {
	rl := &RateLimitMiddleware{
		limiters: make(map[string]*limiterEntry),
		idleTTL:  5 * time.Minute,
		stop:     make(chan struct{}),
	}

	if ratePerSecond <= 0 {
		rl.rateLimit = rate.Inf
		return rl
	}

	rl.rateLimit = rate.Every(interval / time.Duration(ratePerSecond))
	rl.burstSize = ratePerSecond
	go rl.cleanup(time.Minute)
	return rl
}

// WithKeyFilter makes requests whose key fails known share the anonymous
// bucket, so callers cannot mint fresh buckets by rotating made up keys.
func (rl *RateLimitMiddleware) WithKeyFilter(known func(string) bool) *RateLimitMiddleware {
	rl.knownKey = known
	return rl
}

// getLimiter gets or creates a rate limiter for the given API key
func (rl *RateLimitMiddleware) getLimiter(apiKey string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[apiKey]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rateLimit, rl.burstSize)}
		rl.limiters[apiKey] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Handler wraps next with the limit.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	if rl.rateLimit == rate.Inf {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := app.APIKeyFromRequest(r)
		if apiKey == "" || (rl.knownKey != nil && !rl.knownKey(apiKey)) {
			apiKey = noKey
		}

		if !rl.getLimiter(apiKey, time.Now()).Allow() {
			rl.sendRateLimitExceeded(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sendRateLimitExceeded sends a 429 Too Many Requests response
func (rl *RateLimitMiddleware) sendRateLimitExceeded(w http.ResponseWriter) {
	retryAfter := int(math.Ceil(1 / float64(rl.rateLimit)))
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burstSize))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(models.ResponseModel{
		Code:        http.StatusTooManyRequests,
		CurrentTime: models.ResponseCurrentTime(),
		Text:        "Rate limit exceeded. Please try again later.",
		Version:     models.ResponseVersion,
	})
}

// cleanup drops limiters idle for longer than idleTTL until Stop is called.
func (rl *RateLimitMiddleware) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimitMiddleware) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
