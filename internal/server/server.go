// Package server runs the API's HTTP listener alongside its background
// components and stops them together on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc stops a component within the deadline carried by ctx.
type ShutdownFunc func(ctx context.Context) error

// BackgroundFunc runs until ctx is cancelled. A non-nil return other than
// context.Canceled stops the whole server.
type BackgroundFunc func(ctx context.Context) error

// Options configures the HTTP listener.
type Options struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

type namedBackground struct {
	name string
	fn   BackgroundFunc
}

// Server owns the HTTP listener and the components that live with it.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu         sync.Mutex
	shutdowns  []namedShutdown
	background []namedBackground
}

// New creates a Server for handler.
func New(handler http.Handler, opts Options, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          logger.With("component", "server"),
	}
}

// OnShutdown registers fn to run after the HTTP server stops. Functions run
// in reverse registration order.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns = append(s.shutdowns, namedShutdown{name: name, fn: fn})
}

// Background registers fn to start with the server. Its context is
// cancelled once the HTTP server has stopped.
func (s *Server) Background(name string, fn BackgroundFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = append(s.background, namedBackground{name: name, fn: fn})
}

// Run serves until a shutdown signal arrives or a component fails.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or a component fails, then shuts
// everything down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	bgCtx, cancelBG := context.WithCancel(context.Background())
	defer cancelBG()

	failed := make(chan error, 1)
	report := func(err error) {
		select {
		case failed <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	s.mu.Lock()
	background := append([]namedBackground(nil), s.background...)
	s.mu.Unlock()

	for _, bg := range background {
		wg.Add(1)
		go func(bg namedBackground) {
			defer wg.Done()
			s.logger.Info("component starting", "name", bg.name)
			if err := bg.fn(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				report(fmt.Errorf("%s: %w", bg.name, err))
			}
		}(bg)
	}

	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			report(fmt.Errorf("http: %w", err))
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case runErr = <-failed:
		s.logger.Error("component failed", "error", runErr)
	}

	shutdownErr := s.shutdown(cancelBG, &wg)
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

// shutdown stops the listener, then background components, then the
// registered shutdown functions newest first.
func (s *Server) shutdown(cancelBG context.CancelFunc, wg *sync.WaitGroup) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.httpServer.SetKeepAlivesEnabled(false)
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown error", "error", err)
		errs = append(errs, err)
	}
	s.logger.Info("http server stopped")

	s.mu.Lock()
	shutdowns := append([]namedShutdown(nil), s.shutdowns...)
	s.mu.Unlock()

	for i := len(shutdowns) - 1; i >= 0; i-- {
		sd := shutdowns[i]
		s.logger.Info("shutting down component", "name", sd.name)
		if err := sd.fn(ctx); err != nil {
			s.logger.Error("component shutdown error", "name", sd.name, "error", err)
			errs = append(errs, err)
		}
	}

	cancelBG()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("background components: %w", ctx.Err()))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
