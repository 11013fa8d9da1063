// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// mockService runs until cancelled, optionally failing its first runs.
type mockService struct {
	name      string
	starts    atomic.Int32
	failFirst int32
}

func (m *mockService) Serve(ctx context.Context) error {
	if n := m.starts.Add(1); n <= m.failFirst {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tree := NewSupervisorTree(quietLogger(), TreeConfig{})
	if tree.Root() == nil {
		t.Fatal("root supervisor should not be nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", tree.config)
	}
}

func TestSupervisorTree_RunsAllLayers(t *testing.T) {
	tree := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	data := &mockService{name: "data"}
	maint := &mockService{name: "maintenance"}
	api := &mockService{name: "api"}
	tree.AddDataService(data)
	tree.AddMaintenanceService(maint)
	tree.AddAPIService(api)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := <-tree.ServeBackground(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error: %v", err)
	}
	for _, svc := range []*mockService{data, maint, api} {
		if svc.starts.Load() < 1 {
			t.Errorf("%s never started", svc.name)
		}
	}
}

func TestSupervisorTree_RestartsFailedService(t *testing.T) {
	tree := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	flaky := &mockService{name: "flaky", failFirst: 2}
	tree.AddMaintenanceService(flaky)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for flaky.starts.Load() < 3 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("service started %d times, want 3", flaky.starts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
