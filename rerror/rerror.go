/*
Package rerror classifies the errors the relay core can produce, and
implements the spec §7 mapping from a failure cause to the SOCKS5
response code a downstream server must send back.
*/
package rerror

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/libsdf/socks5relay/address"
	"github.com/libsdf/socks5relay/socks5"
)

// Kind groups errors by the categories spec §7 names.
type Kind int

const (
	KindTransport Kind = iota
	KindProtocol
	KindTLS
	KindResolution
	KindUpstreamResponse
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindTLS:
		return "tls"
	case KindResolution:
		return "resolution"
	case KindUpstreamResponse:
		return "upstream-response"
	default:
		return "unknown"
	}
}

// Error wraps a cause with the Kind it belongs to, and — for
// KindUpstreamResponse — the response code a chained SOCKS5 server
// returned, pass-through per §7.
type Error struct {
	Kind  Kind
	Code  socks5.ResponseCode
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause as an Error of the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// FromUpstreamResponse wraps a non-success SOCKS5 response code received
// from a chained upstream server (spec §4.8, §7 "pass-through").
func FromUpstreamResponse(code socks5.ResponseCode) *Error {
	return &Error{Kind: KindUpstreamResponse, Code: code,
		Cause: fmt.Errorf("upstream responded %s", code)}
}

// ErrAddressTypeNotSupported is returned when a request or upstream
// reports an ATYP value outside {IPv4, DomainName, IPv6}.
var ErrAddressTypeNotSupported = New(KindProtocol, fmt.Errorf("address type not supported"))

// ErrCommandNotSupported is returned when a client requests a command
// other than CONNECT.
var ErrCommandNotSupported = New(KindProtocol, fmt.Errorf("command not supported"))

// ToResponseCode implements the spec §7 mapping table: a failure cause on
// the downstream server's request-handling path is translated into the
// SOCKS5 response code to send back to the client.
func ToResponseCode(err error) socks5.ResponseCode {
	if err == nil {
		return socks5.Success
	}

	var addrTypeErr *address.ErrUnsupportedType
	if errors.As(err, &addrTypeErr) {
		return socks5.AddressTypeNotSupported
	}

	var rerr *Error
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case KindUpstreamResponse:
			return rerr.Code // pass-through
		case KindProtocol:
			switch {
			case errors.Is(rerr, ErrCommandNotSupported):
				return socks5.CommandNotSupported
			case errors.Is(rerr, ErrAddressTypeNotSupported):
				return socks5.AddressTypeNotSupported
			}
		case KindResolution:
			return socks5.HostUnreachable
		}
	}

	if errors.Is(err, net.ErrClosed) {
		return socks5.GeneralFailure
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case opErr.Timeout():
			return socks5.HostUnreachable
		case isRefused(opErr):
			return socks5.ConnectionRefused
		case isNetUnreachable(opErr):
			return socks5.NetworkUnreachable
		case isHostUnreachable(opErr):
			return socks5.HostUnreachable
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return socks5.HostUnreachable
	}

	if errors.Is(err, io.EOF) {
		return socks5.GeneralFailure
	}

	return socks5.GeneralFailure
}

func isRefused(opErr *net.OpError) bool {
	return errors.Is(opErr.Err, syscall.ECONNREFUSED)
}

func isNetUnreachable(opErr *net.OpError) bool {
	return errors.Is(opErr.Err, syscall.ENETUNREACH)
}

func isHostUnreachable(opErr *net.OpError) bool {
	return errors.Is(opErr.Err, syscall.EHOSTUNREACH)
}
