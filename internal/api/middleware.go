package api

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/rituo/internal/auth"
	"github.com/mesh-intelligence/rituo/pkg/types"
)

// userIDKey is the gin context key holding the authenticated user ID.
const userIDKey = "user_id"

const (
	authBurst       = 10
	limiterIdleTTL  = 10 * time.Minute
	limiterSweepGap = time.Minute
)

// requestLogger writes one access log line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		s.logger.Info("http request", attrs...)
	}
}

// recovery turns a handler panic into a 500 and logs the stack.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("panic recovered",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"stack", string(debug.Stack()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// metricsMiddleware counts requests and observes latency per route.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	m := s.deps.Metrics
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// authenticate requires a valid bearer token and stores its subject
// under userIDKey.
func (s *Server) authenticate() gin.HandlerFunc {
	tokens := s.deps.Auth.Tokens()
	return func(c *gin.Context) {
		raw, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			s.fail(c, types.Errorf(types.ErrUnauthorized, "authenticate", "%v", err))
			return
		}
		userID, err := tokens.Validate(raw)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUserID returns the subject set by authenticate.
func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterStore keeps one token bucket per client key and drops buckets
// idle for longer than limiterIdleTTL.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(rps float64, burst int) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *limiterStore) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterSweepGap {
		for k, e := range l.limiters {
			if now.Sub(e.lastAccess) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = e
	}
	e.lastAccess = now
	return e.limiter
}

// rateLimit rejects clients that exceed their bucket with 429.
func rateLimit(store *limiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.get("ip:" + c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
