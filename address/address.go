/*
Package address implements the SOCKS5 address codec: the ATYP-tagged
host/port triple carried in request and response bodies (RFC 1928 §5, §6).
*/
package address

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Type is the wire tag of an address. Values are RFC 1928 wire bytes and
// must be preserved bit-exact.
type Type byte

const (
	IPv4       Type = 0x01
	DomainName Type = 0x03
	IPv6       Type = 0x04
)

func (t Type) String() string {
	switch t {
	case IPv4:
		return "ipv4"
	case DomainName:
		return "domain"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("Type(%#x)", byte(t))
	}
}

// MaxDomainLen is the largest domain name the wire format can carry: the
// length prefix is a single byte.
const MaxDomainLen = 255

// Address is a SOCKS5 target/bound address: an ATYP-tagged host paired
// with a port. Host is exactly 4 bytes for IPv4, exactly 16 bytes for
// IPv6, or 1..=255 ASCII bytes for a domain name.
type Address struct {
	Type Type
	Host []byte
	Port uint16
}

// NewIP builds an Address from a net.IP, choosing IPv4 or IPv6 by the
// length of the 4-in-16 form.
func NewIP(ip net.IP, port uint16) Address {
	if v4 := ip.To4(); v4 != nil {
		return Address{Type: IPv4, Host: append([]byte(nil), v4...), Port: port}
	}
	v6 := ip.To16()
	if v6 == nil {
		v6 = make(net.IP, 16)
	}
	return Address{Type: IPv6, Host: append([]byte(nil), v6...), Port: port}
}

// NewDomain builds a domain-name Address. It does not validate length;
// callers that read untrusted domains should use ReadAddress instead.
func NewDomain(host string, port uint16) Address {
	return Address{Type: DomainName, Host: []byte(host), Port: port}
}

// Zero is the "unspecified" bound address (0.0.0.0:0), used when a SOCKS5
// server responds to a failed request.
var Zero = Address{Type: IPv4, Host: []byte{0, 0, 0, 0}, Port: 0}

// String renders the address as "a.b.c.d:port", "[ipv6]:port" or
// "domain:port".
func (a Address) String() string {
	switch a.Type {
	case IPv4:
		return net.JoinHostPort(net.IP(a.Host).String(), strconv.Itoa(int(a.Port)))
	case IPv6:
		return net.JoinHostPort(net.IP(a.Host).String(), strconv.Itoa(int(a.Port)))
	case DomainName:
		return net.JoinHostPort(string(a.Host), strconv.Itoa(int(a.Port)))
	default:
		return fmt.Sprintf("<invalid address type %s>", a.Type)
	}
}

// HostPort splits the address into a (host, port) pair suitable for
// net.Dial / net.Resolver calls.
func (a Address) HostPort() (string, string) {
	switch a.Type {
	case DomainName:
		return string(a.Host), strconv.Itoa(int(a.Port))
	default:
		return net.IP(a.Host).String(), strconv.Itoa(int(a.Port))
	}
}

// ErrUnsupportedType is returned by ReadAddress when the ATYP byte is not
// one of IPv4, DomainName or IPv6.
type ErrUnsupportedType struct{ Got byte }

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("address: unsupported address type %#x", e.Got)
}

// ErrEmptyDomain is returned by ReadAddress when a domain-name address
// carries a zero-length name.
var ErrEmptyDomain = fmt.Errorf("address: domain name length is zero")

// ReadAddress performs the two-phase parse described in spec §4.1: read
// ATYP, then the fixed-or-length-prefixed host, then the big-endian port.
func ReadAddress(r io.Reader) (Address, error) {
	var typBuf [1]byte
	if _, err := io.ReadFull(r, typBuf[:]); err != nil {
		return Address{}, err
	}
	typ := Type(typBuf[0])

	var host []byte
	switch typ {
	case IPv4:
		host = make([]byte, 4)
		if _, err := io.ReadFull(r, host); err != nil {
			return Address{}, err
		}
	case IPv6:
		host = make([]byte, 16)
		if _, err := io.ReadFull(r, host); err != nil {
			return Address{}, err
		}
	case DomainName:
		var lenBuf [1]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return Address{}, err
		}
		if lenBuf[0] == 0 {
			return Address{}, ErrEmptyDomain
		}
		host = make([]byte, int(lenBuf[0]))
		if _, err := io.ReadFull(r, host); err != nil {
			return Address{}, err
		}
	default:
		return Address{}, &ErrUnsupportedType{Got: typBuf[0]}
	}

	var portBuf [2]byte
	if _, err := io.ReadFull(r, portBuf[:]); err != nil {
		return Address{}, err
	}

	return Address{Type: typ, Host: host, Port: binary.BigEndian.Uint16(portBuf[:])}, nil
}

// Bytes serializes the address to its wire form: ATYP, host, big-endian
// port. For DomainName it prepends the length byte.
func (a Address) Bytes() []byte {
	var buf []byte
	switch a.Type {
	case DomainName:
		buf = make([]byte, 1+1+len(a.Host)+2)
		buf[0] = byte(a.Type)
		buf[1] = byte(len(a.Host))
		copy(buf[2:], a.Host)
	default:
		buf = make([]byte, 1+len(a.Host)+2)
		buf[0] = byte(a.Type)
		copy(buf[1:], a.Host)
	}
	binary.BigEndian.PutUint16(buf[len(buf)-2:], a.Port)
	return buf
}

// WriteTo writes the wire form to w, satisfying io.WriterTo.
func (a Address) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.Bytes())
	return int64(n), err
}

// Equal reports whether two addresses have the same type, host bytes and
// port — used by the round-trip tests in spec §8.
func (a Address) Equal(b Address) bool {
	if a.Type != b.Type || a.Port != b.Port || len(a.Host) != len(b.Host) {
		return false
	}
	for i := range a.Host {
		if a.Host[i] != b.Host[i] {
			return false
		}
	}
	return true
}
