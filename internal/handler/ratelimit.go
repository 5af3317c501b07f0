package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"leadmatch/internal/model"
)

const msgTooManyRequests = "Слишком много сообщений. Пожалуйста, подождите немного."

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client id
type ClientRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewClientRateLimiter allows requests per window for every client
func NewClientRateLimiter(requests int, window time.Duration) *ClientRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &ClientRateLimiter{
		clients: make(map[string]*clientLimiter),
		every:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		idle:    10 * window,
		now:     time.Now,
	}
}

// Allow reports whether the client may send one more request
func (l *ClientRateLimiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	cl, ok := l.clients[clientID]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[clientID] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// sweep forgets clients idle for a while
func (l *ClientRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for id, cl := range l.clients {
		if now.Sub(cl.lastSeen) > l.idle {
			delete(l.clients, id)
		}
	}
}

// Middleware rejects requests over the limit, keyed by the :id path param
func (l *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.Param("id")) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ConversationResponse{
				Replies: []string{msgTooManyRequests},
			})
			return
		}
		c.Next()
	}
}
