// Copyright 2026 The Kotori Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpserver runs an HTTP listener with graceful shutdown,
// used by the daemon's local command API. The caller provides the
// handler; the server owns listener lifecycle.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server serves HTTP on a TCP listener. Serve(ctx) blocks until the
// context is cancelled and active requests drain.
type Server struct {
	address         string
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration

	// ready is closed after the listener is bound and the server is
	// accepting connections.
	ready chan struct{}

	// addr is the resolved listen address, available after ready is
	// closed. Carries the actual port when the address asked for :0.
	addr net.Addr
}

// Config configures a Server.
type Config struct {
	// Address is the TCP listen address, e.g. "127.0.0.1:8750".
	// Required.
	Address string

	// Handler receives incoming requests. Required.
	Handler http.Handler

	// ShutdownTimeout bounds the wait for in-flight requests during
	// graceful shutdown. Defaults to 10 seconds.
	ShutdownTimeout time.Duration

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// New creates a Server. Call Serve to start accepting connections.
func New(cfg Config) *Server {
	if cfg.Address == "" {
		panic("httpserver: Address is required")
	}
	if cfg.Handler == nil {
		panic("httpserver: Handler is required")
	}
	if cfg.Logger == nil {
		panic("httpserver: Logger is required")
	}

	timeout := cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Server{
		address:         cfg.Address,
		handler:         cfg.Handler,
		logger:          cfg.Logger,
		shutdownTimeout: timeout,
		ready:           make(chan struct{}),
	}
}

// Ready returns a channel closed once the server is bound and
// accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully: no new connections, in-flight requests get up to
// ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("httpserver: listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler: s.handler,

		// Command payloads are tiny; the timeouts just keep slow
		// clients from pinning connections.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("command api listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("command api shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	s.logger.Info("command api stopped")
	return nil
}
