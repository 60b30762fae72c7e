// Package ratelimit paces the crawl so it does not hammer the source site.
package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer is the politeness contract the crawl controller depends on: Wait
// blocks until the next request for the given URL may proceed.
type Pacer interface {
	Wait(ctx context.Context, urlStr string) error
	Allow(urlStr string) bool
}

// HostPacer enforces a minimum spacing between requests per host using a
// token bucket. Detail pages and their file URLs may live on different
// hosts, so the spacing is tracked per host rather than globally.
type HostPacer struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
	burst    int
}

// NewHostPacer creates a pacer allowing requestsPerSecond per host.
func NewHostPacer(requestsPerSecond float64, burst int) *HostPacer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2.0
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostPacer{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Every creates a pacer that spaces requests to a host at least minInterval
// apart, with no burst allowance. This is the politeness-delay form used by
// the crawl run.
func Every(minInterval time.Duration) *HostPacer {
	if minInterval <= 0 {
		return NewHostPacer(0, 1)
	}
	return NewHostPacer(1/minInterval.Seconds(), 1)
}

// Wait blocks until a request for urlStr may proceed, or the context ends.
func (p *HostPacer) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	host := extractHost(urlStr)
	if host == "" {
		// Invalid URL; let it proceed and fail downstream.
		return nil
	}
	return p.limiter(host).Wait(ctx)
}

// Allow reports whether a request for urlStr may proceed immediately.
func (p *HostPacer) Allow(urlStr string) bool {
	host := extractHost(urlStr)
	if host == "" {
		return true
	}
	return p.limiter(host).Allow()
}

func (p *HostPacer) limiter(host string) *rate.Limiter {
	p.mu.RLock()
	lim, ok := p.limiters[host]
	p.mu.RUnlock()
	if ok {
		return lim
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if lim, ok := p.limiters[host]; ok {
		return lim
	}
	lim = rate.NewLimiter(p.perHost, p.burst)
	p.limiters[host] = lim
	return lim
}

func extractHost(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
