// Package ratelimit paces outbound HTTP requests per upstream host so the
// docs monitor does not hammer a single server across many tracked pages.
package ratelimit

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter lazily creates and caches one token-bucket limiter per host.
type HostLimiter struct {
	requestsPerSecond float64
	burst             int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a HostLimiter with the given steady-state rate and burst size,
// applied independently to each host a caller waits on.
func New(requestsPerSecond float64, burst int) *HostLimiter {
	return &HostLimiter{
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
		limiters:          make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to rawURL's host is permitted to proceed, or
// until ctx is cancelled.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	return h.limiterFor(rawURL).Wait(ctx)
}

func (h *HostLimiter) limiterFor(rawURL string) *rate.Limiter {
	host := hostOf(rawURL)

	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.requestsPerSecond), h.burst)
		h.limiters[host] = l
	}
	return l
}

// hostOf extracts the host component of rawURL, falling back to the whole
// string if it does not parse as a URL (e.g. a bare hostname).
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
