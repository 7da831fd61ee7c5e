package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// idleAfter is how long an untouched bucket is kept before it is evicted.
const idleAfter = 10 * time.Minute

// SimpleTokenBucket is an in-memory rate limiter keyed per caller. Tokens refill
// continuously at perMinute/60 per second up to capacity.
type SimpleTokenBucket struct {
	capacity  float64
	perSecond float64
	now       func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewSimpleTokenBucket creates a limiter holding capacity tokens per key, refilled at perMinute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity:  float64(capacity),
		perSecond: float64(perMinute) / 60,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ClientIP charges requests to the client address.
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// GinMiddleware rejects requests over the limit with 429. A nil key func means per-IP.
func (l *SimpleTokenBucket) GinMiddleware(key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIP
	}
	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			k = "unknown"
		}
		ok, wait := l.take(k)
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *SimpleTokenBucket) allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take spends one token for key. When none is left it reports how long until one is.
func (l *SimpleTokenBucket) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, seen: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.perSecond)
	}
	b.seen = now

	if b.tokens < 1 {
		if l.perSecond <= 0 {
			return false, time.Minute
		}
		return false, time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second))
	}
	b.tokens--
	return true, 0
}

// sweep drops idle buckets at most once per idleAfter. Caller holds mu.
func (l *SimpleTokenBucket) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleAfter {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= idleAfter {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}
