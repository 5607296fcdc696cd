package upstream

import (
	"context"

	"github.com/libsdf/socks5relay/socks5"
	"github.com/libsdf/socks5relay/transport"
)

func writeFull(ctx context.Context, t transport.Transport, buf []byte) (int, error) {
	return t.Write(ctx, buf)
}

func readAuthMethodSelect(ctx context.Context, t transport.Transport) (socks5.AuthMethodSelect, error) {
	return socks5.ReadAuthMethodSelect(transport.Reader(ctx, t))
}

func readResponsePacket(ctx context.Context, t transport.Transport) (socks5.ResponsePacket, error) {
	return socks5.ReadResponsePacket(transport.Reader(ctx, t))
}
