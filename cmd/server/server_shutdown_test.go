package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"
)

// freeAddr reserves a local port and releases it for the server to bind.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

// TestServer_GracefulShutdown verifies that Run serves requests and returns
// without error once its context is cancelled.
func TestServer_GracefulShutdown(t *testing.T) {
	env := setupTestServer(t)
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx, addr) }()

	// Wait for the listener to come up
	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shutdown gracefully within the expected time")
	}
}

// TestServer_RunFailsOnBusyAddress verifies that a bind error is returned
// instead of waiting for the context.
func TestServer_RunFailsOnBusyAddress(t *testing.T) {
	env := setupTestServer(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := env.server.Run(ctx, l.Addr().String()); err == nil {
		t.Fatal("expected bind error")
	}
}
