// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingService runs until its context is canceled.
type blockingService struct {
	started atomic.Bool
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeStartsAndStopsServices(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), DefaultTreeConfig())
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	dispatch := &blockingService{}
	api := &blockingService{}
	tree.AddDispatchService(dispatch)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !dispatch.started.Load() || !api.started.Load() {
		if time.Now().After(deadline) {
			t.Fatal("services never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTreeConfigDefaults(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", tree.config.ShutdownTimeout)
	}
}

// fakeServer fails ListenAndServe immediately.
type fakeServer struct {
	err      error
	shutdown atomic.Bool
}

func (f *fakeServer) ListenAndServe() error { return f.err }

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdown.Store(true)
	return nil
}

func TestHTTPServiceReportsStartupFailure(t *testing.T) {
	boom := errors.New("port in use")
	svc := NewHTTPServerService(&fakeServer{err: boom}, time.Second)
	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, boom) {
		t.Errorf("Serve() error = %v, want wrapped %v", err, boom)
	}
}

// hangingServer blocks until Shutdown.
type hangingServer struct {
	fakeServer
	release chan struct{}
}

func (h *hangingServer) ListenAndServe() error {
	<-h.release
	return nil
}

func (h *hangingServer) Shutdown(ctx context.Context) error {
	h.shutdown.Store(true)
	close(h.release)
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := &hangingServer{release: make(chan struct{})}
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	if !srv.shutdown.Load() {
		t.Error("Shutdown never called")
	}
}
