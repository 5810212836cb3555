// Request guards for the mutating API routes.
// A request passes with the static API key or a valid operator bearer token.
// When no API key is configured the guard is open.

package routes

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"smart-stay/internal/jwt"
)

const (
	API_KEY_HEADER = "X-API-Key"
	API_KEY_QUERY  = "apiKey"

	operatorContextKey = "operator"

	// Limiters idle for longer than this are dropped.
	limiterIdle = 10 * time.Minute
)

var (
	ErrOperatorNotFound  = errors.New("operator not found in context")
	ErrOperatorNotString = errors.New("operator in context is not a string")
)

// Guard checks credentials and applies the per client rate limit.
type Guard struct {
	apiKey string
	secret string

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewGuard builds a guard. perMinute <= 0 disables rate limiting.
func NewGuard(apiKey string, secret string, perMinute int, burst int) *Guard {
	g := &Guard{
		apiKey:   apiKey,
		secret:   secret,
		limiters: make(map[string]*clientLimiter),
		now:      time.Now,
	}
	if perMinute > 0 {
		g.limit = rate.Every(time.Minute / time.Duration(perMinute))
		g.burst = max(burst, 1)
	}
	return g
}

func GetOperator(c *gin.Context) (string, error) {
	op, exists := c.Get(operatorContextKey)
	if !exists {
		return "", ErrOperatorNotFound
	}
	opStr, ok := op.(string)
	if !ok {
		slog.Warn("GetOperator: Operator in context is not a string")
		return "", ErrOperatorNotString
	}
	return opStr, nil
}

func (g *Guard) keyMatches(key string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(key)), []byte(g.apiKey)) == 1
}

// operator returns the subject of a valid bearer token, if any.
func (g *Guard) operator(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	bearer, found := strings.CutPrefix(header, "Bearer ")
	if !found || g.secret == "" {
		return "", false
	}
	claims, err := jwt.DecodeOperatorToken(g.secret, strings.TrimSpace(bearer))
	if err != nil {
		slog.Warn("Guard: Invalid operator token", "error", err, "ip", c.ClientIP())
		return "", false
	}
	return claims.Subject, true
}

// RequireKey creates middleware that requires the API key or an operator token.
func (g *Guard) RequireKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if subject, ok := g.operator(c); ok {
			c.Set(operatorContextKey, subject)
			c.Next()
			return
		}

		if g.apiKey == "" {
			c.Next()
			return
		}

		key := c.GetHeader(API_KEY_HEADER)
		if key == "" {
			key = c.Query(API_KEY_QUERY)
		}
		if key == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !g.keyMatches(key) {
			slog.Warn("Guard: Invalid API key", "ip", c.ClientIP(), "path", c.Request.URL.Path)
			AbortWithError(c, ErrInvalidAPIKey)
			return
		}
		c.Set(operatorContextKey, "api-key")
		c.Next()
	}
}

// RateLimit creates middleware applying a token bucket per client IP.
func (g *Guard) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.limit == 0 {
			c.Next()
			return
		}
		if !g.allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func (g *Guard) allow(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, l := range g.limiters {
		if now.Sub(l.lastSeen) > limiterIdle {
			delete(g.limiters, key)
		}
	}

	l, ok := g.limiters[ip]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(g.limit, g.burst)}
		g.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}
