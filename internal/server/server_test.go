package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*Server, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(h, Options{ShutdownTimeout: 2 * time.Second}, logger), ln
}

func TestServe_GracefulShutdown(t *testing.T) {
	srv, ln := testServer(t)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	srv.OnShutdown("first", record("first"))
	srv.OnShutdown("second", record("second"))

	bgStopped := make(chan struct{})
	srv.Background("ticker", func(ctx context.Context) error {
		<-ctx.Done()
		close(bgStopped)
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}

	<-bgStopped
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestServe_BackgroundFailureStopsServer(t *testing.T) {
	srv, ln := testServer(t)
	boom := errors.New("consumer group missing")
	srv.Background("worker", func(context.Context) error { return boom })

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(context.Background(), ln) }()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "worker")
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_ShutdownErrorIsReturned(t *testing.T) {
	srv, ln := testServer(t)
	srv.OnShutdown("cache", func(context.Context) error { return errors.New("close failed") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Serve(ctx, ln)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
}
