package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
)

// tcpTransport is a Transport backed by a plain *net.TCPConn.
type tcpTransport struct {
	conn net.Conn
	id   uint64

	closeOnce sync.Once
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return &tcpTransport{conn: conn, id: newID()}
}

func (t *tcpTransport) Read(ctx context.Context, buf []byte, allowShort bool) (int, error) {
	stop := watchContext(ctx, t)
	defer stop()

	if allowShort {
		return t.conn.Read(buf)
	}
	return io.ReadFull(t.conn, buf)
}

func (t *tcpTransport) Write(ctx context.Context, buf []byte) (int, error) {
	stop := watchContext(ctx, t)
	defer stop()

	return t.conn.Write(buf)
}

// Close shuts down both halves of the connection before releasing it, so
// a peer mid-read observes an orderly FIN rather than a reset. Close is
// idempotent: calls after the first return nil.
func (t *tcpTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if tc, ok := t.conn.(*net.TCPConn); ok {
			tc.CloseWrite()
			tc.CloseRead()
		}
		err = t.conn.Close()
	})
	return err
}

func (t *tcpTransport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *tcpTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
func (t *tcpTransport) ID() uint64           { return t.id }

// watchContext closes c when ctx is cancelled, unblocking any in-flight
// Read/Write with a "use of closed network connection" error. It returns
// a stop function that must be called once the blocking operation
// returns, so the watcher goroutine does not outlive its caller.
func watchContext(ctx context.Context, c Transport) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// TCPFactory is a Factory over plain TCP, grounded on the no-delay /
// reuse-address accept-and-connect semantics of a stock TCP listener.
type TCPFactory struct {
	ln net.Listener
}

// ListenTCP binds addr and returns a Factory that accepts plain TCP
// connections on it.
func ListenTCP(addr string) (*TCPFactory, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPFactory{ln: ln}, nil
}

func (f *TCPFactory) Accept(ctx context.Context) (Transport, error) {
	stop := watchListenerContext(ctx, f.ln)
	defer stop()

	conn, err := f.ln.Accept()
	if err != nil {
		return nil, err
	}
	return newTCPTransport(conn), nil
}

func (f *TCPFactory) Connect(ctx context.Context, addr string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newTCPTransport(conn), nil
}

func (f *TCPFactory) Close() error {
	return f.ln.Close()
}

func (f *TCPFactory) Addr() net.Addr {
	return f.ln.Addr()
}

func watchListenerContext(ctx context.Context, ln net.Listener) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// TCPDialer is a Factory that can only Connect, for use as the dialing
// side of an upstream with nothing to listen on.
type TCPDialer struct{}

func (TCPDialer) Accept(ctx context.Context) (Transport, error) {
	return nil, fmt.Errorf("transport: TCPDialer does not accept connections")
}

func (TCPDialer) Connect(ctx context.Context, addr string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newTCPTransport(conn), nil
}

func (TCPDialer) Close() error { return nil }
