package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a pool of workers that execute jobs concurrently. The
// pool context derives from the caller's, so cancelling the caller stops
// workers between jobs. Workers append results to an internal collector
// rather than a channel, so a caller that submits every job before
// calling Wait can never deadlock on a full results buffer.
type Pool struct {
	workers  int
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	results []Result

	closeOnce sync.Once
}

// NewPool creates a worker pool with the specified number of workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:  workers,
		jobQueue: make(chan Job, workers*2),
		ctx:      poolCtx,
		cancel:   cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker processes jobs until the queue closes or the context ends
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.collect(job.Execute(p.ctx))
		}
	}
}

// collect appends one result (thread-safe)
func (p *Pool) collect(result Result) {
	p.mu.Lock()
	p.results = append(p.results, result)
	p.mu.Unlock()
}

// Submit submits a job to the pool for execution
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait waits for all submitted jobs to complete and returns their
// results in completion order. Jobs still queued when the context is
// cancelled produce no result; callers that need positional output
// should carry an index on the job.
func (p *Pool) Wait() []Result {
	// Close job queue to signal workers to exit when done
	p.closeOnce.Do(func() {
		close(p.jobQueue)
	})
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results
}

// Shutdown stops the worker pool immediately. Results completed before
// the stop remain readable through Wait.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
