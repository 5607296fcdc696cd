/*
Package server drives the downstream (client-facing) SOCKS5 handshake
state machine over an accepted Transport and, once a request succeeds,
hands the pair of transports to package relay.
*/
package server

import (
	"context"
	"net"
	"strconv"

	"github.com/libsdf/socks5relay/address"
	"github.com/libsdf/socks5relay/log"
	"github.com/libsdf/socks5relay/relay"
	"github.com/libsdf/socks5relay/rerror"
	"github.com/libsdf/socks5relay/socks5"
	"github.com/libsdf/socks5relay/transport"
	"github.com/libsdf/socks5relay/upstream"
)

var logger = log.GetLogger("server")

// Server accepts downstream connections on a Factory and, for each,
// drives the SOCKS5 server state machine described in spec.md §4.6
// before handing off to the relay loop.
type Server struct {
	Listener transport.Factory
	Upstream upstream.Factory
}

// New builds a Server that accepts on listener and reaches targets
// through up.
func New(listener transport.Factory, up upstream.Factory) *Server {
	return &Server{Listener: listener, Upstream: up}
}

// Serve accepts connections until ctx is cancelled or the listener
// fails irrecoverably. Each accepted connection is handled on its own
// goroutine; a single failed handshake never stops the accept loop —
// this implements the "continue accepting" callback behavior of §4.6.
func (s *Server) Serve(ctx context.Context) error {
	for {
		t, err := s.Listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handle(ctx, t)
	}
}

// handle drives one connection's state machine (S0 through S5) end to
// end, always closing t before returning.
func (s *Server) handle(ctx context.Context, t transport.Transport) {
	defer t.Close()

	logger.Debugf("[%x] accepted from %s", t.ID(), t.RemoteAddr())

	// S0 -> S1: read AuthMethodList.
	greeting, err := socks5.ReadAuthMethodList(transport.Reader(ctx, t))
	if err != nil {
		logger.Debugf("[%x] greeting failed: %v", t.ID(), err)
		return
	}

	// S1 -> S2: pick NoAuth if offered, else refuse and close.
	method := socks5.NoAcceptableMethods
	if greeting.Contains(socks5.NoAuth) {
		method = socks5.NoAuth
	}
	sel := socks5.AuthMethodSelect{Method: method}
	if _, err := sel.WriteTo(transport.Writer(ctx, t)); err != nil {
		logger.Debugf("[%x] failed writing method-select: %v", t.ID(), err)
		return
	}
	if method != socks5.NoAuth {
		logger.Debugf("[%x] no acceptable auth method offered", t.ID())
		return
	}

	// S2 -> S3: read RequestPacket.
	req, err := socks5.ReadRequestPacket(transport.Reader(ctx, t))
	if err != nil {
		code := rerror.ToResponseCode(err)
		logger.Debugf("[%x] request parse failed: %v", t.ID(), err)
		s.respond(ctx, t, code, address.Zero)
		return
	}

	// S3 -> S4: only Connect is supported.
	if req.Header.Cmd != socks5.Connect {
		code := rerror.ToResponseCode(rerror.ErrCommandNotSupported)
		logger.Debugf("[%x] unsupported command %s", t.ID(), req.Header.Cmd)
		s.respond(ctx, t, code, address.Zero)
		return
	}

	up, err := s.Upstream.Request(ctx, req.Target)
	if err != nil {
		code := rerror.ToResponseCode(err)
		logger.Debugf("[%x] upstream request to %s failed: %v", t.ID(), req.Target, err)
		s.respond(ctx, t, code, address.Zero)
		return
	}
	defer up.Close()

	bound := addrFromNetAddr(up.LocalAddr())
	if err := s.respond(ctx, t, socks5.Success, bound); err != nil {
		logger.Debugf("[%x] failed writing success response: %v", t.ID(), err)
		return
	}

	logger.Infof("[%x] relaying %s <-> %s", t.ID(), t.RemoteAddr(), req.Target)
	relay.Run(ctx, t, up)
}

func (s *Server) respond(ctx context.Context, t transport.Transport, code socks5.ResponseCode, bound address.Address) error {
	resp := socks5.ResponsePacket{
		Header: socks5.ResponseHeader{Reply: code},
		Bound:  bound,
	}
	_, err := resp.WriteTo(transport.Writer(ctx, t))
	return err
}

// addrFromNetAddr converts a net.Addr (as reported by a Transport) into
// an address.Address suitable for the bound-address field of a success
// response.
func addrFromNetAddr(a net.Addr) address.Address {
	host, portStr, err := net.SplitHostPort(a.String())
	if err != nil {
		return address.Zero
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return address.Zero
	}
	if ip := net.ParseIP(host); ip != nil {
		return address.NewIP(ip, uint16(port))
	}
	return address.NewDomain(host, uint16(port))
}
