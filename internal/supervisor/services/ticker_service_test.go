// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockRunnable is a test double for the Runnable interface.
type mockRunnable struct {
	runErr      error
	runCount    atomic.Int32
	runDuration time.Duration
}

func (m *mockRunnable) Serve(ctx context.Context) error {
	m.runCount.Add(1)
	if m.runErr != nil {
		return m.runErr
	}
	if m.runDuration > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.runDuration):
			return nil
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockRunnable) RunCount() int {
	return int(m.runCount.Load())
}

func TestTickerService_Interface(t *testing.T) {
	var _ suture.Service = (*TickerService)(nil)
}

func TestNewTickerService(t *testing.T) {
	runnable := &mockRunnable{}
	svc := NewTickerService(runnable, "snapshot-publisher")

	if svc == nil {
		t.Fatal("NewTickerService returned nil")
	}
	if svc.runnable != runnable {
		t.Error("runnable not assigned correctly")
	}
	if svc.name != "snapshot-publisher" {
		t.Errorf("expected name 'snapshot-publisher', got %q", svc.name)
	}
}

func TestTickerService_Serve(t *testing.T) {
	t.Run("returns context error on cancellation", func(t *testing.T) {
		runnable := &mockRunnable{}
		svc := NewTickerService(runnable, "snapshot-publisher")

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return after context cancellation")
		}

		if runnable.RunCount() != 1 {
			t.Errorf("expected 1 run, got %d", runnable.RunCount())
		}
	})

	t.Run("returns context error on deadline", func(t *testing.T) {
		runnable := &mockRunnable{}
		svc := NewTickerService(runnable, "snapshot-publisher")

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := svc.Serve(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	})

	t.Run("propagates runnable errors", func(t *testing.T) {
		expectedErr := errors.New("publisher startup error")
		runnable := &mockRunnable{runErr: expectedErr}
		svc := NewTickerService(runnable, "snapshot-publisher")

		ctx := context.Background()
		err := svc.Serve(ctx)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected %v, got %v", expectedErr, err)
		}
	})
}

func TestTickerService_String(t *testing.T) {
	runnable := &mockRunnable{}
	svc := NewTickerService(runnable, "snapshot-publisher")

	if svc.String() != "snapshot-publisher" {
		t.Errorf("expected 'snapshot-publisher', got %q", svc.String())
	}
}

func TestTickerService_WithSupervisor(t *testing.T) {
	runnable := &mockRunnable{}
	svc := NewTickerService(runnable, "snapshot-publisher")

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
	})
	sup.Add(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errCh := sup.ServeBackground(ctx)

	var started bool
	for i := 0; i < 10; i++ {
		time.Sleep(20 * time.Millisecond)
		if runnable.RunCount() >= 1 {
			started = true
			break
		}
	}

	if !started {
		t.Error("runnable Serve was not called")
	}

	cancel()
	<-errCh
}
