package upstream

import (
	"context"
	"net"
	"time"

	"github.com/libsdf/socks5relay/lru"
)

// resolver fronts net.DefaultResolver with a short-TTL cache, avoiding a
// repeat LookupIP for hot domains under sustained proxy load. A cache
// miss always falls through to the resolver; entries are best-effort and
// never block a request.
type resolver struct {
	cache *lru.TSCache
}

func newResolver() *resolver {
	return &resolver{cache: lru.NewTSCache(5 * time.Minute)}
}

func (r *resolver) lookup(ctx context.Context, host string) ([]net.IP, error) {
	if v, found := r.cache.Get(host); found {
		if ips, ok := v.([]net.IP); ok {
			return ips, nil
		}
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	r.cache.Put(host, ips)
	return ips, nil
}

// startCacheWorker runs the cache's periodic sweep until ctx is
// cancelled, exactly as the teacher's CacheWorker drove its package-level
// cache.
func (r *resolver) startCacheWorker(ctx context.Context) {
	r.cache.Worker(ctx)
}
