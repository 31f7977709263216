package httpmiddleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"conductpoints/internal/auth"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// SimpleTokenBucket is an in-memory rate limiter for a single instance.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// Allow takes one token from key's bucket.
func (l *SimpleTokenBucket) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := l.now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// RedisWindow is a fixed one-minute window limiter shared by all instances.
// It fails open when Redis is unreachable.
type RedisWindow struct {
	client    *redis.Client
	perMinute int
	prefix    string
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewRedisWindow creates a limiter allowing perMinute requests per key.
func NewRedisWindow(client *redis.Client, perMinute int, log logrus.FieldLogger) *RedisWindow {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisWindow{client: client, perMinute: perMinute, prefix: "conduct:ratelimit:", now: time.Now, log: log}
}

// Allow increments key's counter for the current minute.
func (l *RedisWindow) Allow(ctx context.Context, key string) bool {
	window := l.now().Unix() / 60
	k := l.prefix + key + ":" + strconv.FormatInt(window, 10)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.WithError(err).Warn("rate limit check failed, allowing request")
		return true
	}
	return incr.Val() <= int64(l.perMinute)
}

// RateLimit enforces l per authenticated subject, falling back to client IP.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if claimant, ok := auth.ClaimantFrom(c); ok {
			key = "user:" + claimant.UserID
		}
		if !l.Allow(c.Request.Context(), key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}
