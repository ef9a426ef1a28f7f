package ingest

// limiter.go bounds how many ingestion jobs run at once.
//
// The limiter uses a semaphore pattern sized to the connection pool, so a
// batch of thousands of files never piles up more in-flight work than the
// pool can serve. Jobs wait for a slot rather than failing; only context
// cancellation interrupts the wait.

import (
	"context"
	"sync"
)

// DefaultMaxConcurrentJobs is the default bound on parallel file jobs,
// matching the default pool size.
const DefaultMaxConcurrentJobs = 16

// jobLimiter controls concurrent job execution.
type jobLimiter struct {
	semaphore chan struct{}

	mu     sync.RWMutex
	active int
}

// newJobLimiter creates a limiter allowing at most maxConcurrent
// simultaneous jobs.
func newJobLimiter(maxConcurrent int) *jobLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	return &jobLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
	}
}

// acquire blocks until a job slot frees or ctx is cancelled. The caller
// must call release exactly once after a successful acquire (use defer).
func (l *jobLimiter) acquire(ctx context.Context) error {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release returns a previously acquired slot.
func (l *jobLimiter) release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// activeCount returns the number of jobs currently holding a slot.
func (l *jobLimiter) activeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// maxConcurrent returns the slot capacity.
func (l *jobLimiter) maxConcurrent() int {
	return cap(l.semaphore)
}
