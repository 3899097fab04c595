package utils

import (
	"sync"
	"time"
)

// TokenBucket limits inbound websocket frames per connection. Viewers only
// receive, so anything beyond keepalive traffic is suspicious.
type TokenBucket struct {
	mutex sync.Mutex

	capacity int
	interval time.Duration // time to earn one token
	tokens   int
	last     time.Time
}

// NewTokenBucket allows burst frames at once and refills the bucket over period.
func NewTokenBucket(burst int, period time.Duration) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		capacity: burst,
		interval: period / time.Duration(burst),
		tokens:   burst,
		last:     time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	return tb.AllowAt(time.Now())
}

// AllowAt takes one token if available at now.
func (tb *TokenBucket) AllowAt(now time.Time) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	if tb.interval > 0 && now.After(tb.last) {
		earned := int(now.Sub(tb.last) / tb.interval)
		if earned > 0 {
			tb.tokens += earned
			// Keep the remainder so slow trickles still earn tokens.
			tb.last = tb.last.Add(time.Duration(earned) * tb.interval)
			if tb.tokens >= tb.capacity {
				tb.tokens = tb.capacity
				tb.last = now
			}
		}
	}

	if tb.tokens == 0 {
		return false
	}
	tb.tokens--
	return true
}

func (tb *TokenBucket) Remaining() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return tb.tokens
}
