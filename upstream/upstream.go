/*
Package upstream implements the two ways a downstream request's target
can be reached: DirectUpstream dials the target itself, and SocksUpstream
forwards the request through another SOCKS5 server.
*/
package upstream

import (
	"context"

	"github.com/libsdf/socks5relay/address"
	"github.com/libsdf/socks5relay/transport"
)

// Factory turns a requested target address into an established
// Transport to that target (or, for a chained upstream, into the
// upstream server's side of the conversation). One Factory instance is
// shared by every downstream connection a server accepts.
type Factory interface {
	Request(ctx context.Context, target address.Address) (transport.Transport, error)
}
