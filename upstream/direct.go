package upstream

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/libsdf/socks5relay/address"
	"github.com/libsdf/socks5relay/transport"
)

// DirectUpstream reaches a requested target by dialing it itself: IPv4
// and IPv6 targets are dialed as-is, and a domain-name target is
// resolved (through a short-TTL cache) and each returned address is
// tried in turn until one connects.
type DirectUpstream struct {
	dial     func(ctx context.Context, addr string) (transport.Transport, error)
	resolver *resolver
}

// NewDirectUpstream builds a DirectUpstream that dials through factory.
func NewDirectUpstream(factory transport.Factory) *DirectUpstream {
	return &DirectUpstream{dial: factory.Connect, resolver: newResolver()}
}

// StartCacheWorker runs the DNS cache's periodic eviction sweep until ctx
// is cancelled. Each DirectUpstream has its own cache, so callers should
// run this once per DirectUpstream in its own goroutine.
func (d *DirectUpstream) StartCacheWorker(ctx context.Context) {
	d.resolver.startCacheWorker(ctx)
}

func (d *DirectUpstream) Request(ctx context.Context, target address.Address) (transport.Transport, error) {
	if target.Type != address.DomainName {
		host, port := target.HostPort()
		return d.dial(ctx, net.JoinHostPort(host, port))
	}

	host := string(target.Host)
	ips, err := d.resolver.lookup(ctx, host)
	if err != nil {
		return nil, err
	}

	port := strconv.Itoa(int(target.Port))
	var lastErr error
	for _, ip := range ips {
		t, err := d.dial(ctx, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("upstream: no addresses resolved for %s", host)
	}
	return nil, lastErr
}
