package server

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"impractical.co/reach"
)

// ErrRateLimited is reported to clients that ran out of submissions.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter limits how often each client can ask for a prediction, using a
// token bucket per client IP.
//
// A nil *RateLimiter allows everything.
type RateLimiter struct {
	perMinute int
	burst     int
	every     rate.Limit
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*rateClient
}

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns a RateLimiter allowing perMinute requests a minute
// per client, with bursts of up to burst requests. It returns nil, allowing
// everything, when perMinute is zero or less.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perMinute: perMinute,
		burst:     burst,
		every:     rate.Every(time.Minute / time.Duration(perMinute)),
		now:       time.Now,
		clients:   map[string]*rateClient{},
	}
}

// allow takes a token from key's bucket. When there's none left it reports
// how long until there will be.
func (rl *RateLimiter) allow(key string) (remaining int, retryAfter time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, found := rl.clients[key]
	if !found {
		client = &rateClient{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = now

	reservation := client.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return 0, delay, false
	}
	return int(math.Floor(client.limiter.TokensAt(now))), 0, true
}

// Limit returns middleware that passes requests within the limit to the next
// handler and everything else to denied. It always sets the X-RateLimit-Limit
// and X-RateLimit-Remaining headers, and Retry-After on denied requests.
func (rl *RateLimiter) Limit(denied http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, retryAfter, ok := rl.allow(clientKey(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				reach.Logger(r.Context()).InfoContext(r.Context(), "rate limited", "client", clientKey(r))
				denied.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sweep forgets clients that haven't been seen for idle. A forgotten client
// starts over with a full bucket.
func (rl *RateLimiter) Sweep(idle time.Duration) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// Run sweeps idle clients every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	if rl == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a client idle for a whole refill is indistinguishable
			// from a new one
			rl.Sweep(time.Duration(rl.burst) * time.Minute / time.Duration(rl.perMinute))
		}
	}
}

// clientKey identifies the client a request came from. RealIP has already
// replaced RemoteAddr with the forwarded address when there is one.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
