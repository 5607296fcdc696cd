package transport

import (
	"context"
	"testing"
	"time"
)

func TestTCPRoundTrip(t *testing.T) {
	factory, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer factory.Close()

	addr := factory.Addr().String()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		srv, err := factory.Accept(ctx)
		if err != nil {
			done <- err
			return
		}
		defer srv.Close()
		buf := make([]byte, 5)
		if _, err := srv.Read(ctx, buf, false); err != nil {
			done <- err
			return
		}
		if string(buf) != "hello" {
			done <- errMismatch
			return
		}
		done <- nil
	}()

	cli, err := factory.Connect(ctx, addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cli.Close()

	if _, err := cli.Write(ctx, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server goroutine: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server goroutine")
	}
}

func TestTCPCloseIsIdempotent(t *testing.T) {
	factory, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer factory.Close()

	ctx := context.Background()
	acceptDone := make(chan struct{})
	go func() {
		c, err := factory.Accept(ctx)
		if err == nil {
			c.Close()
		}
		close(acceptDone)
	}()

	cli, err := factory.Connect(ctx, factory.Addr().String())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	<-acceptDone

	if err := cli.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := cli.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestReadAfterContextCancelFails(t *testing.T) {
	factory, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer factory.Close()

	acceptDone := make(chan Transport, 1)
	go func() {
		c, err := factory.Accept(context.Background())
		if err == nil {
			acceptDone <- c
		}
	}()

	cli, err := factory.Connect(context.Background(), factory.Addr().String())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cli.Close()
	srv := <-acceptDone
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := srv.Read(ctx, buf, false)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected an error after context cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancelled Read to return")
	}
}

func TestReadWriteAfterCloseFail(t *testing.T) {
	factory, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer factory.Close()

	acceptDone := make(chan Transport, 1)
	go func() {
		c, err := factory.Accept(context.Background())
		if err == nil {
			acceptDone <- c
		}
	}()

	cli, err := factory.Connect(context.Background(), factory.Addr().String())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	srv := <-acceptDone
	defer srv.Close()

	if err := cli.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	if _, err := cli.Write(ctx, []byte("x")); err == nil {
		t.Fatal("expected an error writing to a closed transport")
	}
	buf := make([]byte, 1)
	if _, err := cli.Read(ctx, buf, true); err == nil {
		t.Fatal("expected an error reading from a closed transport")
	}
}

var errMismatch = fatalError("unexpected payload")

type fatalError string

func (e fatalError) Error() string { return string(e) }
