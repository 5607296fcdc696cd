package transport

import (
	"context"
	"io"
)

// Reader adapts a Transport to io.Reader, bound to ctx, for use with
// stdlib helpers like io.ReadFull. Each call allows a short read, so
// io.ReadFull's own looping reproduces the non-short-read semantics of
// Transport.Read(ctx, buf, false).
func Reader(ctx context.Context, t Transport) io.Reader {
	return &reader{ctx: ctx, t: t}
}

type reader struct {
	ctx context.Context
	t   Transport
}

func (r *reader) Read(p []byte) (int, error) {
	return r.t.Read(r.ctx, p, true)
}

// Writer adapts a Transport to io.Writer, bound to ctx.
func Writer(ctx context.Context, t Transport) io.Writer {
	return &writer{ctx: ctx, t: t}
}

type writer struct {
	ctx context.Context
	t   Transport
}

func (w *writer) Write(p []byte) (int, error) {
	return w.t.Write(w.ctx, p)
}
