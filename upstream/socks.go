package upstream

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/libsdf/socks5relay/address"
	"github.com/libsdf/socks5relay/rerror"
	"github.com/libsdf/socks5relay/socks5"
	"github.com/libsdf/socks5relay/transport"
)

// SocksUpstream reaches a requested target by forwarding the CONNECT
// request to another SOCKS5 server. The upstream server's host is
// resolved lazily: the first Request call resolves it and tries each
// returned address in turn until one connects, and every later call
// dials the remembered, already-working endpoint directly. If no
// address connects, nothing is remembered and the next Request
// resolves again —
// mirroring the original's resolver.resolve + TryConnect +
// cached upstream_endpoint_ flow.
type SocksUpstream struct {
	factory  transport.Factory
	host     string
	port     string
	resolver *resolver

	mu       sync.Mutex
	resolved bool
	endpoint string
}

// NewSocksUpstream builds a SocksUpstream that reaches the chained SOCKS5
// server at host:port through factory (typically a transport.TCPDialer,
// or a transport.TLSDialer if the link to the upstream server is itself
// TLS-wrapped).
func NewSocksUpstream(factory transport.Factory, host string, port uint16) *SocksUpstream {
	return &SocksUpstream{
		factory:  factory,
		host:     host,
		port:     fmt.Sprintf("%d", port),
		resolver: newResolver(),
	}
}

// StartCacheWorker runs the resolver's DNS cache eviction sweep until
// ctx is cancelled.
func (s *SocksUpstream) StartCacheWorker(ctx context.Context) {
	s.resolver.startCacheWorker(ctx)
}

// connect reaches the upstream server, resolving it and trying every
// address it maps to until one connection has succeeded; after that it
// only dials the remembered endpoint. Using the double-checked-locking
// pattern the original used for the same reason: a plain sync.Once
// cannot distinguish "resolution failed, retry on next request" from
// "resolution already succeeded", and resolution only counts as
// succeeded once a connection to one of its results actually lands.
func (s *SocksUpstream) connect(ctx context.Context) (transport.Transport, error) {
	s.mu.Lock()
	resolved, endpoint := s.resolved, s.endpoint
	s.mu.Unlock()
	if resolved {
		return s.factory.Connect(ctx, endpoint)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.factory.Connect(ctx, s.endpoint)
	}

	ips, err := s.resolver.lookup(ctx, s.host)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, ip := range ips {
		candidate := net.JoinHostPort(ip.String(), s.port)
		t, err := s.factory.Connect(ctx, candidate)
		if err == nil {
			s.endpoint = candidate
			s.resolved = true
			return t, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("upstream: no addresses resolved for %s", s.host)
	}
	return nil, lastErr
}

func (s *SocksUpstream) Request(ctx context.Context, target address.Address) (transport.Transport, error) {
	t, err := s.connect(ctx)
	if err != nil {
		return nil, rerror.New(rerror.KindTransport, err)
	}

	if err := s.handshake(ctx, t, target); err != nil {
		t.Close()
		return nil, err
	}

	bound, err := s.sendRequest(ctx, t, target)
	if err != nil {
		t.Close()
		return nil, err
	}

	return &wrappedTransport{Transport: t, bound: bound}, nil
}

// handshake performs the SOCKS5 greeting against the chained server,
// offering only NoAuth — this relay never authenticates to an upstream.
func (s *SocksUpstream) handshake(ctx context.Context, t transport.Transport, target address.Address) error {
	greeting := socks5.AuthMethodList{Methods: []socks5.Method{socks5.NoAuth}}
	if _, err := writeFull(ctx, t, greeting.Bytes()); err != nil {
		return rerror.New(rerror.KindTransport, err)
	}

	sel, err := readAuthMethodSelect(ctx, t)
	if err != nil {
		return rerror.New(rerror.KindProtocol, err)
	}
	if sel.Method != socks5.NoAuth {
		return rerror.New(rerror.KindProtocol,
			fmt.Errorf("upstream selected unsupported auth method %s", sel.Method))
	}
	return nil
}

// sendRequest sends the CONNECT request and returns the bound address
// the upstream server reported.
func (s *SocksUpstream) sendRequest(ctx context.Context, t transport.Transport, target address.Address) (address.Address, error) {
	req := socks5.RequestPacket{
		Header: socks5.RequestHeader{Cmd: socks5.Connect},
		Target: target,
	}
	if _, err := writeFull(ctx, t, req.Bytes()); err != nil {
		return address.Address{}, rerror.New(rerror.KindTransport, err)
	}

	resp, err := readResponsePacket(ctx, t)
	if err != nil {
		return address.Address{}, rerror.New(rerror.KindProtocol, err)
	}
	if resp.Header.Reply != socks5.Success {
		return address.Address{}, rerror.FromUpstreamResponse(resp.Header.Reply)
	}
	return resp.Bound, nil
}

// wrappedTransport reports the bound address the chained server declared
// as its LocalAddr, instead of the local endpoint of the raw TCP/TLS link
// to that server. A downstream server asks its UpstreamFactory's
// Transport for "the address this connection is bound to" to echo back
// to its own client (spec §4.6 S4); for a chained upstream that is
// meaningful only as whatever address the far SOCKS5 server declared.
type wrappedTransport struct {
	transport.Transport
	bound address.Address
}

func (w *wrappedTransport) LocalAddr() net.Addr {
	return socksAddr{w.bound}
}

// socksAddr adapts an address.Address to net.Addr for reporting purposes
// only; it is never dialed.
type socksAddr struct{ a address.Address }

func (s socksAddr) Network() string { return "socks5" }
func (s socksAddr) String() string  { return s.a.String() }
