package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"sync"
)

// tlsTransport is a Transport backed by a *tls.Conn. Its Close performs an
// SSL-level shutdown (CloseWrite, which sends a close_notify alert) before
// releasing the underlying socket, matching the original's
// async_shutdown-before-close ordering: a peer mid-read sees an orderly
// alert instead of a reset.
type tlsTransport struct {
	conn *tls.Conn
	id   uint64

	closeOnce sync.Once
}

func newTLSTransport(conn *tls.Conn) *tlsTransport {
	return &tlsTransport{conn: conn, id: newID()}
}

func (t *tlsTransport) Read(ctx context.Context, buf []byte, allowShort bool) (int, error) {
	stop := watchContext(ctx, t)
	defer stop()

	if allowShort {
		return t.conn.Read(buf)
	}
	total := 0
	for total < len(buf) {
		n, err := t.conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (t *tlsTransport) Write(ctx context.Context, buf []byte) (int, error) {
	stop := watchContext(ctx, t)
	defer stop()

	return t.conn.Write(buf)
}

func (t *tlsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.conn.CloseWrite()
		err = t.conn.Close()
	})
	return err
}

func (t *tlsTransport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *tlsTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
func (t *tlsTransport) ID() uint64           { return t.id }

// TLSContext is the immutable, already-validated TLS configuration
// produced by TLSContextBuilder.Build. It is safe to share across many
// Factories and goroutines.
type TLSContext struct {
	config *tls.Config
}

// TLSContextBuilder assembles a TLSContext. It is a single-shot builder:
// like the original's SslTransportFactoryBuilder, a builder can produce
// at most one TLSContext, after which further calls to Build fail. This
// mirrors boost::asio::ssl::context's model of being configured once and
// then handed off to the sockets that use it.
type TLSContextBuilder struct {
	config *tls.Config
	pool   *x509.CertPool
	used   bool
	err    error
}

// NewTLSContextBuilder starts a builder with the baseline hardening the
// original always applied: no SSLv2/SSLv3/TLSv1.0 (MinVersion TLS 1.1),
// and no static Diffie-Hellman parameters (single_dh_use has no
// equivalent knob in crypto/tls — ephemeral key exchange is the only mode
// it supports).
func NewTLSContextBuilder() *TLSContextBuilder {
	return &TLSContextBuilder{
		config: &tls.Config{MinVersion: tls.VersionTLS11},
	}
}

// LoadCertChain loads the certificate chain served to peers.
func (b *TLSContextBuilder) LoadCertChain(certFile string) *TLSContextBuilder {
	cert, err := loadCert(certFile, certFile)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.config.Certificates = append(b.config.Certificates, cert)
	return b
}

// LoadCert loads a certificate and its private key from separate PEM
// files, as the original's LoadCert/LoadPrivateKey pair did.
func (b *TLSContextBuilder) LoadCert(certFile, keyFile string) *TLSContextBuilder {
	cert, err := loadCert(certFile, keyFile)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.config.Certificates = append(b.config.Certificates, cert)
	return b
}

// LoadCaFile adds trust anchors read from pemFile to the verification
// pool used both for verifying peers (server role) and the remote server
// (client role).
func (b *TLSContextBuilder) LoadCaFile(pemFile string) *TLSContextBuilder {
	if b.pool == nil {
		b.pool = x509.NewCertPool()
	}
	pem, err := os.ReadFile(pemFile)
	if err != nil {
		b.setErr(fmt.Errorf("transport: reading CA file %s: %w", pemFile, err))
		return b
	}
	if !b.pool.AppendCertsFromPEM(pem) {
		b.setErr(fmt.Errorf("transport: no certificates found in CA file %s", pemFile))
		return b
	}
	b.config.RootCAs = b.pool
	b.config.ClientCAs = b.pool
	return b
}

// setErr records the first failure seen while assembling the builder.
// Later LoadX calls still run but Build will refuse to produce a
// TLSContext once any of them has failed.
func (b *TLSContextBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// SetVerifyPeer toggles client-certificate verification on the server
// role. VerifyDepth has no direct crypto/tls knob; x509 chain
// verification in Go always walks the full chain it is given.
func (b *TLSContextBuilder) SetVerifyPeer(verify bool) *TLSContextBuilder {
	if verify {
		b.config.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		b.config.ClientAuth = tls.NoClientCert
	}
	return b
}

// SetVerifyHost pins the hostname the client role checks the server
// certificate against, mirroring rfc2818_verification(host).
func (b *TLSContextBuilder) SetVerifyHost(host string) *TLSContextBuilder {
	b.config.ServerName = host
	return b
}

// Build finalizes the TLSContext. It may be called at most once per
// builder; subsequent calls return an error. It also surfaces the first
// error encountered by any earlier LoadCertChain/LoadCert/LoadCaFile
// call, so a bad or missing TLS material path fails the caller instead
// of producing a TLSContext that silently handshakes with no
// certificate or an incomplete trust pool.
func (b *TLSContextBuilder) Build() (*TLSContext, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.used {
		return nil, fmt.Errorf("transport: TLSContextBuilder already used")
	}
	b.used = true
	return &TLSContext{config: b.config.Clone()}, nil
}

func loadCert(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("transport: loading certificate %s: %w", certFile, err)
	}
	return cert, nil
}

// TLSFactory is a Factory that performs a TLS handshake over TCP on
// Accept and Connect, using a shared, already-built TLSContext.
type TLSFactory struct {
	tcp *TCPFactory
	ctx *TLSContext
}

// ListenTLS binds addr with plain TCP and wraps every accepted connection
// in a server-role TLS handshake using ctx.
func ListenTLS(addr string, ctx *TLSContext) (*TLSFactory, error) {
	tcp, err := ListenTCP(addr)
	if err != nil {
		return nil, err
	}
	return &TLSFactory{tcp: tcp, ctx: ctx}, nil
}

// Accept accepts TCP connections and performs a server-role handshake on
// each, retrying on any connection whose handshake fails rather than
// surfacing that failure to the caller: one bad client (wrong protocol,
// closed mid-handshake, untrusted cert) must never stop the whole
// listener from accepting further connections. Only a failure of the
// underlying TCP accept itself is returned, or the handshake error when
// ctx is cancelled during a handshake.
func (f *TLSFactory) Accept(ctx context.Context) (Transport, error) {
	for {
		raw, err := f.tcp.Accept(ctx)
		if err != nil {
			return nil, err
		}
		rawTCP := raw.(*tcpTransport)
		conn := tls.Server(rawTCP.conn, f.ctx.config)
		if err := conn.HandshakeContext(ctx); err != nil {
			rawTCP.Close()
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		t := newTLSTransport(conn)
		t.id = rawTCP.id
		return t, nil
	}
}

func (f *TLSFactory) Connect(ctx context.Context, addr string) (Transport, error) {
	raw, err := f.tcp.Connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	rawTCP := raw.(*tcpTransport)
	conn := tls.Client(rawTCP.conn, f.ctx.config)
	if err := conn.HandshakeContext(ctx); err != nil {
		rawTCP.Close()
		return nil, err
	}
	t := newTLSTransport(conn)
	t.id = rawTCP.id
	return t, nil
}

func (f *TLSFactory) Close() error {
	return f.tcp.Close()
}

// Addr returns the address the underlying TCP listener is bound to.
func (f *TLSFactory) Addr() net.Addr {
	return f.tcp.Addr()
}

// TLSDialer is a Factory that can only Connect, performing a client-role
// TLS handshake over a freshly dialed TCP connection. Used as the dialing
// side of an upstream link that is itself TLS-wrapped.
type TLSDialer struct {
	ctx *TLSContext
}

// NewTLSDialer builds a TLSDialer using ctx for every handshake.
func NewTLSDialer(ctx *TLSContext) *TLSDialer {
	return &TLSDialer{ctx: ctx}
}

func (d *TLSDialer) Accept(ctx context.Context) (Transport, error) {
	return nil, fmt.Errorf("transport: TLSDialer does not accept connections")
}

func (d *TLSDialer) Connect(ctx context.Context, addr string) (Transport, error) {
	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	conn := tls.Client(raw, d.ctx.config)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return newTLSTransport(conn), nil
}

func (d *TLSDialer) Close() error { return nil }
