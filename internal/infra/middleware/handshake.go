// Package middleware holds HTTP wrappers for the signaling endpoints served
// by this module.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HandshakeLimit configures per-client admission of WebSocket upgrades.
type HandshakeLimit struct {
	PerMinute int // sustained upgrades allowed per client
	Burst     int
	// IdleAfter is how long a client may stay silent before its bucket is
	// forgotten. Zero means three minutes.
	IdleAfter time.Duration
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimitHandshakes rejects upgrade requests from a client that exceeds its
// token bucket with 429. Buckets are keyed by the TCP peer address; proxy
// headers are ignored. The sweeper goroutine stops when ctx is done.
func LimitHandshakes(ctx context.Context, cfg HandshakeLimit, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = 3 * time.Minute
	}

	var mu sync.Mutex
	clients := make(map[string]*clientBucket)

	go func() {
		ticker := time.NewTicker(cfg.IdleAfter / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				for ip, c := range clients {
					if time.Since(c.lastSeen) > cfg.IdleAfter {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := peerIP(r)

			mu.Lock()
			c, ok := clients[ip]
			if !ok {
				c = &clientBucket{limiter: rate.NewLimiter(rate.Limit(cfg.PerMinute)/60.0, cfg.Burst)}
				clients[ip] = c
			}
			c.lastSeen = time.Now()
			mu.Unlock()

			if !c.limiter.Allow() {
				logger.Warn("handshake rejected", "client", ip)
				http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
