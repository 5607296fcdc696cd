package relay

import (
	"context"
	"testing"
	"time"

	"github.com/libsdf/socks5relay/transport"
)

func TestRunPumpsBothDirections(t *testing.T) {
	aFactory, err := transport.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP a: %v", err)
	}
	defer aFactory.Close()
	bFactory, err := transport.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP b: %v", err)
	}
	defer bFactory.Close()

	ctx := context.Background()

	aSrvCh := make(chan transport.Transport, 1)
	go func() {
		c, err := aFactory.Accept(ctx)
		if err == nil {
			aSrvCh <- c
		}
	}()
	aCli, err := aFactory.Connect(ctx, aFactory.Addr().String())
	if err != nil {
		t.Fatalf("connect a: %v", err)
	}
	defer aCli.Close()
	aSrv := <-aSrvCh
	defer aSrv.Close()

	bSrvCh := make(chan transport.Transport, 1)
	go func() {
		c, err := bFactory.Accept(ctx)
		if err == nil {
			bSrvCh <- c
		}
	}()
	bCli, err := bFactory.Connect(ctx, bFactory.Addr().String())
	if err != nil {
		t.Fatalf("connect b: %v", err)
	}
	defer bCli.Close()
	bSrv := <-bSrvCh
	defer bSrv.Close()

	relayDone := make(chan struct{})
	go func() {
		Run(ctx, aSrv, bSrv)
		close(relayDone)
	}()

	if _, err := aCli.Write(ctx, []byte("ping")); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := bCli.Read(ctx, buf, false); err != nil {
		t.Fatalf("read ping on b: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("got %q, want ping", buf)
	}

	if _, err := bCli.Write(ctx, []byte("pong")); err != nil {
		t.Fatalf("write pong: %v", err)
	}
	if _, err := aCli.Read(ctx, buf, false); err != nil {
		t.Fatalf("read pong on a: %v", err)
	}
	if string(buf) != "pong" {
		t.Fatalf("got %q, want pong", buf)
	}

	aCli.Close()
	bCli.Close()

	select {
	case <-relayDone:
	case <-time.After(2 * time.Second):
		t.Fatal("relay.Run did not return after both sides closed")
	}
}

// TestRunClosesBothOnOneSidedEOF closes only the "a" side's peer and
// checks that Run still returns: pump(b, a) sees EOF from aSrv.Read,
// which must close bSrv too so pump(a, b)'s blocked Read on bSrv
// unblocks instead of hanging forever.
func TestRunClosesBothOnOneSidedEOF(t *testing.T) {
	aFactory, err := transport.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP a: %v", err)
	}
	defer aFactory.Close()
	bFactory, err := transport.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP b: %v", err)
	}
	defer bFactory.Close()

	ctx := context.Background()

	aSrvCh := make(chan transport.Transport, 1)
	go func() {
		c, err := aFactory.Accept(ctx)
		if err == nil {
			aSrvCh <- c
		}
	}()
	aCli, err := aFactory.Connect(ctx, aFactory.Addr().String())
	if err != nil {
		t.Fatalf("connect a: %v", err)
	}
	aSrv := <-aSrvCh

	bSrvCh := make(chan transport.Transport, 1)
	go func() {
		c, err := bFactory.Accept(ctx)
		if err == nil {
			bSrvCh <- c
		}
	}()
	bCli, err := bFactory.Connect(ctx, bFactory.Addr().String())
	if err != nil {
		t.Fatalf("connect b: %v", err)
	}
	defer bCli.Close()
	bSrv := <-bSrvCh

	relayDone := make(chan struct{})
	go func() {
		Run(ctx, aSrv, bSrv)
		close(relayDone)
	}()

	// Close only the client peered with aSrv. Run must notice the EOF
	// on aSrv's Read, close bSrv too, and unblock bCli's pending Read.
	aCli.Close()

	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := bCli.Read(ctx, buf, false)
		readErr <- err
	}()

	select {
	case err := <-readErr:
		if err == nil {
			t.Fatal("expected bCli.Read to observe EOF once the peer side closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bCli.Read did not unblock after the peer side closed; relay.Run failed to propagate the close")
	}

	select {
	case <-relayDone:
	case <-time.After(2 * time.Second):
		t.Fatal("relay.Run did not return after one-sided EOF")
	}
}
