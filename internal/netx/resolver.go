// Package netx supplies target name resolution. The scanner itself never
// queries the OS for network state; everything it needs arrives through
// the Resolver interface so callers control lookup policy.
package netx

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Resolver turns a hostname into one or more addresses.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// SystemResolver delegates to the process resolver. Literal IP
// addresses skip the lookup entirely.
type SystemResolver struct{}

func (SystemResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	return addrs, nil
}

// CachingResolver wraps another Resolver and remembers successful
// lookups for a fixed TTL. Failures are not cached; a flaky resolver
// gets retried on the next call.
type CachingResolver struct {
	inner Resolver
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	addrs   []string
	expires time.Time
}

// NewCachingResolver wraps inner with a TTL cache. A non-positive ttl
// defaults to one minute.
func NewCachingResolver(inner Resolver, ttl time.Duration) *CachingResolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingResolver{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

func (r *CachingResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	// Literal addresses never enter the cache
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	r.mu.Lock()
	entry, ok := r.cache[host]
	if ok && r.now().Before(entry.expires) {
		addrs := append([]string(nil), entry.addrs...)
		r.mu.Unlock()
		return addrs, nil
	}
	r.mu.Unlock()

	addrs, err := r.inner.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[host] = cacheEntry{
		addrs:   append([]string(nil), addrs...),
		expires: r.now().Add(r.ttl),
	}
	r.mu.Unlock()

	return append([]string(nil), addrs...), nil
}
