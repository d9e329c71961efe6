package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long a client's bucket survives without requests.
const idleTTL = time.Hour

// TokenBucketRateLimiter gives every client a bucket of limit tokens that
// refills completely once per window.
type TokenBucketRateLimiter struct {
	sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewTokenBucketLimiter(limit int, window time.Duration) *TokenBucketRateLimiter {
	if limit < 1 {
		limit = 1
	}
	rl := &TokenBucketRateLimiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *TokenBucketRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 12)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evict(rl.now().Add(-idleTTL))
		case <-rl.stop:
			return
		}
	}
}

func (rl *TokenBucketRateLimiter) evict(before time.Time) {
	rl.Lock()
	defer rl.Unlock()
	for ip, c := range rl.clients {
		if c.lastSeen.Before(before) {
			delete(rl.clients, ip)
		}
	}
}

// Allow spends one token for ip. When the bucket is empty it reports how long
// until the next token is available.
func (rl *TokenBucketRateLimiter) Allow(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.Lock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	limiter := c.limiter
	rl.Unlock()

	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, rl.window
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *TokenBucketRateLimiter) Stop() {
	close(rl.stop)
}
