// Package workerpool gives SEAP's worker-mode CMD dispatch an observable
// stand-in for the detached pthreads the original C source spawns, per
// spec.md §9: "a redesign SHOULD offer the same semantics via a
// task/worker pool abstraction with explicit completion (so tests can
// observe termination)".
package workerpool

import "sync"

// Pool tracks detached goroutines so callers (in particular tests) can
// wait for every dispatched job to finish without the caller needing to
// know how many were spawned.
type Pool struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	running int
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{}
}

// Dispatch runs job on a new goroutine and returns immediately; the
// receive loop calling Dispatch is never blocked by the job itself.
func (p *Pool) Dispatch(job func()) {
	p.mu.Lock()
	p.running++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			p.running--
			p.mu.Unlock()
		}()
		job()
	}()
}

// Wait blocks until every job dispatched so far has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Running reports how many dispatched jobs have not yet returned.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
