// Package lifecycle coordinates startup hooks, tracked background work and
// shutdown hooks for a running service.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator manages the application lifecycle.
//
// Shutdown proceeds in two phases: the work context is cancelled and tracked
// work started with Go is drained, then the hook context is cancelled and
// shutdown hooks run. Hooks such as closing the database therefore never race
// with work that still needs them.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	workCtx    context.Context
	workCancel context.CancelFunc

	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup
	workWg     sync.WaitGroup

	workMu  sync.Mutex
	closing bool

	readyMu sync.RWMutex
	ready   bool
}

// New creates a Coordinator.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	workCtx, workCancel := context.WithCancel(ctx)
	return &Coordinator{
		ctx:        ctx,
		cancel:     cancel,
		workCtx:    workCtx,
		workCancel: workCancel,
	}
}

// Context returns the hook context, cancelled once tracked work has drained.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// WorkContext returns the context handed to tracked work. It is cancelled
// first when shutdown begins.
func (c *Coordinator) WorkContext() context.Context {
	return c.workCtx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// Go runs fn as tracked background work. Shutdown waits for it before
// releasing shutdown hooks. Work submitted after shutdown began is dropped.
func (c *Coordinator) Go(fn func(ctx context.Context)) {
	c.TryGo(fn)
}

// TryGo is Go, reporting whether fn was accepted. It returns false once
// Shutdown has started, in which case fn never runs.
func (c *Coordinator) TryGo(fn func(ctx context.Context)) bool {
	c.workMu.Lock()
	defer c.workMu.Unlock()
	if c.closing {
		return false
	}
	c.workWg.Go(func() {
		fn(c.workCtx)
	})
	return true
}

// Ready returns true after all startup hooks have completed and before
// shutdown begins.
func (c *Coordinator) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until all startup hooks have completed and sets the ready flag.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.setReady(true)
}

// Shutdown drains tracked work, then runs shutdown hooks. Both phases share
// the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.setReady(false)
	deadline := time.After(timeout)

	c.workMu.Lock()
	c.closing = true
	c.workMu.Unlock()

	c.workCancel()
	if !wait(&c.workWg, deadline) {
		c.cancel()
		return fmt.Errorf("shutdown timeout after %v: background work still running", timeout)
	}

	c.cancel()
	if !wait(&c.shutdownWg, deadline) {
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
	return nil
}

func (c *Coordinator) setReady(v bool) {
	c.readyMu.Lock()
	c.ready = v
	c.readyMu.Unlock()
}

func wait(wg *sync.WaitGroup, deadline <-chan time.Time) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-deadline:
		return false
	}
}
