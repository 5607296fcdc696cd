/*
Package relay implements the full-duplex byte pump between a downstream
and an upstream Transport once a SOCKS5 request has succeeded.
*/
package relay

import (
	"context"
	"sync"

	"github.com/libsdf/socks5relay/transport"
)

// BufferSize is the chunk size used for each Read/Write pair, matching
// the teacher's DEFAULT_BUFFER_SIZE-sized relay buffers.
const BufferSize = 32 * 1024

// Run pumps bytes in both directions between a and b until both
// directions have finished. Each direction is its own goroutine with at
// most one in-flight Read and one in-flight Write. As soon as either
// direction finishes — on error or a clean EOF — Run closes both a and
// b, so the other direction's blocked Read/Write unblocks with an error
// and also returns. Run returns once both goroutines have exited; the
// caller may still call Close on a and b afterward, since Transport's
// Close is idempotent.
func Run(ctx context.Context, a, b transport.Transport) {
	var wg sync.WaitGroup
	wg.Add(2)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			a.Close()
			b.Close()
		})
	}

	go func() {
		defer wg.Done()
		pump(ctx, b, a)
		closeBoth()
	}()
	go func() {
		defer wg.Done()
		pump(ctx, a, b)
		closeBoth()
	}()

	wg.Wait()
}

// pump copies from src to dst until src.Read errors (including a clean
// EOF) or dst.Write errors, then stops. It never closes either side itself — Run does that
// once either direction finishes.
func pump(ctx context.Context, dst, src transport.Transport) {
	buf := make([]byte, BufferSize)
	for {
		n, err := src.Read(ctx, buf, true)
		if n > 0 {
			if _, werr := dst.Write(ctx, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
