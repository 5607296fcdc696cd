package socks5

import (
	"fmt"
	"io"

	"github.com/libsdf/socks5relay/address"
)

// ErrBadVersion is returned when a packet's VER byte is not Version (0x05).
type ErrBadVersion struct{ Got byte }

func (e *ErrBadVersion) Error() string {
	return fmt.Sprintf("socks5: unsupported version %#x", e.Got)
}

// ErrNoMethods is returned by ReadAuthMethodList when NMETHODS is zero.
var ErrNoMethods = fmt.Errorf("socks5: greeting lists zero authentication methods")

// AuthMethodList is the client's greeting: VER, NMETHODS, METHODS.
type AuthMethodList struct {
	Methods []Method
}

// ReadAuthMethodList reads and validates a client greeting. A version
// mismatch or NMETHODS=0 is reported without any further lookahead: only
// the bytes actually needed to reach the failure are consumed.
func ReadAuthMethodList(r io.Reader) (AuthMethodList, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:1]); err != nil {
		return AuthMethodList{}, err
	}
	if head[0] != Version {
		return AuthMethodList{}, &ErrBadVersion{Got: head[0]}
	}
	if _, err := io.ReadFull(r, head[1:]); err != nil {
		return AuthMethodList{}, err
	}
	n := int(head[1])
	if n == 0 {
		return AuthMethodList{}, ErrNoMethods
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return AuthMethodList{}, err
	}
	methods := make([]Method, n)
	for i, b := range buf {
		methods[i] = Method(b)
	}
	return AuthMethodList{Methods: methods}, nil
}

// Contains reports whether m is among the offered methods.
func (p AuthMethodList) Contains(m Method) bool {
	for _, got := range p.Methods {
		if got == m {
			return true
		}
	}
	return false
}

// Bytes serializes the greeting to wire form.
func (p AuthMethodList) Bytes() []byte {
	buf := make([]byte, 2+len(p.Methods))
	buf[0] = Version
	buf[1] = byte(len(p.Methods))
	for i, m := range p.Methods {
		buf[2+i] = byte(m)
	}
	return buf
}

// WriteTo writes the greeting, satisfying io.WriterTo.
func (p AuthMethodList) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// AuthMethodSelect is the server's reply to the greeting: VER, METHOD.
type AuthMethodSelect struct {
	Method Method
}

// ReadAuthMethodSelect reads the server's method-select reply.
func ReadAuthMethodSelect(r io.Reader) (AuthMethodSelect, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return AuthMethodSelect{}, err
	}
	if buf[0] != Version {
		return AuthMethodSelect{}, &ErrBadVersion{Got: buf[0]}
	}
	return AuthMethodSelect{Method: Method(buf[1])}, nil
}

func (p AuthMethodSelect) Bytes() []byte {
	return []byte{Version, byte(p.Method)}
}

func (p AuthMethodSelect) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// RequestHeader is the fixed-size prefix of a client request: VER, CMD, RSV.
type RequestHeader struct {
	Cmd Command
}

func readRequestHeader(r io.Reader) (RequestHeader, error) {
	var buf [3]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return RequestHeader{}, err
	}
	if buf[0] != Version {
		return RequestHeader{}, &ErrBadVersion{Got: buf[0]}
	}
	return RequestHeader{Cmd: Command(buf[1])}, nil
}

func (h RequestHeader) bytes() []byte {
	return []byte{Version, byte(h.Cmd), 0x00}
}

// RequestPacket is a client request: RequestHeader followed by the target
// Address.
type RequestPacket struct {
	Header RequestHeader
	Target address.Address
}

// ReadRequestPacket implements the "header, then body captured by header"
// pattern of spec §4.5/§9: the header is read first and, only if it is
// valid, the body (here: a plain Address) is read next.
func ReadRequestPacket(r io.Reader) (RequestPacket, error) {
	header, err := readRequestHeader(r)
	if err != nil {
		return RequestPacket{}, err
	}
	target, err := address.ReadAddress(r)
	if err != nil {
		return RequestPacket{}, err
	}
	return RequestPacket{Header: header, Target: target}, nil
}

func (p RequestPacket) Bytes() []byte {
	return append(p.Header.bytes(), p.Target.Bytes()...)
}

func (p RequestPacket) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// ResponseHeader is the fixed-size prefix of a server response: VER, REP, RSV.
type ResponseHeader struct {
	Reply ResponseCode
}

func readResponseHeader(r io.Reader) (ResponseHeader, error) {
	var buf [3]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ResponseHeader{}, err
	}
	if buf[0] != Version {
		return ResponseHeader{}, &ErrBadVersion{Got: buf[0]}
	}
	return ResponseHeader{Reply: ResponseCode(buf[1])}, nil
}

func (h ResponseHeader) bytes() []byte {
	return []byte{Version, byte(h.Reply), 0x00}
}

// ResponsePacket is a server response: ResponseHeader followed by the
// bound Address.
type ResponsePacket struct {
	Header ResponseHeader
	Bound  address.Address
}

// ReadResponsePacket reads a server response using the same
// header-then-body pattern as ReadRequestPacket.
func ReadResponsePacket(r io.Reader) (ResponsePacket, error) {
	header, err := readResponseHeader(r)
	if err != nil {
		return ResponsePacket{}, err
	}
	bound, err := address.ReadAddress(r)
	if err != nil {
		return ResponsePacket{}, err
	}
	return ResponsePacket{Header: header, Bound: bound}, nil
}

func (p ResponsePacket) Bytes() []byte {
	return append(p.Header.bytes(), p.Bound.Bytes()...)
}

func (p ResponsePacket) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}
