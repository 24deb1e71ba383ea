// Package server provides graceful shutdown with execution draining.
package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DrainManager tracks in-flight guarded executions and lets the process
// drain them before exiting.
type DrainManager struct {
	mu           sync.Mutex
	inFlight     int64
	shuttingDown int32
	done         chan struct{}
}

// NewDrainManager creates a new drain manager.
func NewDrainManager() *DrainManager {
	return &DrainManager{
		done: make(chan struct{}),
	}
}

// ExecutionStarted should be called before a guarded execution begins.
// Returns false if shutdown has been initiated and the execution should be
// refused.
func (m *DrainManager) ExecutionStarted() bool {
	if atomic.LoadInt32(&m.shuttingDown) == 1 {
		return false
	}
	atomic.AddInt64(&m.inFlight, 1)
	return true
}

// ExecutionFinished should be called when a guarded execution completes.
func (m *DrainManager) ExecutionFinished() {
	count := atomic.AddInt64(&m.inFlight, -1)
	if count == 0 && atomic.LoadInt32(&m.shuttingDown) == 1 {
		m.closeDone()
	}
}

// Shutdown initiates draining and waits for in-flight executions to finish.
// Returns the context error if the deadline passes first.
func (m *DrainManager) Shutdown(ctx context.Context) error {
	atomic.StoreInt32(&m.shuttingDown, 1)

	if atomic.LoadInt64(&m.inFlight) == 0 {
		m.closeDone()
		return nil
	}

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShutdownWithTimeout initiates draining with a deadline.
func (m *DrainManager) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return m.Shutdown(ctx)
}

// IsShuttingDown returns true once shutdown has been initiated.
func (m *DrainManager) IsShuttingDown() bool {
	return atomic.LoadInt32(&m.shuttingDown) == 1
}

// InFlightCount returns the number of in-flight executions.
func (m *DrainManager) InFlightCount() int64 {
	return atomic.LoadInt64(&m.inFlight)
}

func (m *DrainManager) closeDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}
