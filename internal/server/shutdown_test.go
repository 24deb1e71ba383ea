package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auth-platform/platform/request-guard/internal/testutil"
)

func TestShutdownWithNoInFlight(t *testing.T) {
	m := NewDrainManager()
	testutil.AssertNoError(t, m.ShutdownWithTimeout(time.Second))
	testutil.AssertEqual(t, m.IsShuttingDown(), true)
}

func TestExecutionRefusedAfterShutdown(t *testing.T) {
	m := NewDrainManager()
	testutil.AssertNoError(t, m.ShutdownWithTimeout(time.Second))

	if m.ExecutionStarted() {
		t.Fatal("executions must be refused after shutdown")
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	m := NewDrainManager()

	if !m.ExecutionStarted() {
		t.Fatal("execution must be admitted before shutdown")
	}
	testutil.AssertEqual(t, m.InFlightCount(), 1)

	done := make(chan error, 1)
	go func() {
		done <- m.ShutdownWithTimeout(time.Second)
	}()

	// Shutdown must block while the execution is in flight.
	select {
	case <-done:
		t.Fatal("shutdown returned before the execution finished")
	case <-time.After(20 * time.Millisecond):
	}

	m.ExecutionFinished()

	select {
	case err := <-done:
		testutil.AssertNoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not complete after drain")
	}
}

func TestShutdownTimesOut(t *testing.T) {
	m := NewDrainManager()
	m.ExecutionStarted()

	err := m.ShutdownWithTimeout(20 * time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestInFlightCount(t *testing.T) {
	m := NewDrainManager()

	m.ExecutionStarted()
	m.ExecutionStarted()
	testutil.AssertEqual(t, m.InFlightCount(), 2)

	m.ExecutionFinished()
	testutil.AssertEqual(t, m.InFlightCount(), 1)
}
