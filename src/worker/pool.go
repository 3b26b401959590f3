// Package worker runs blocking jobs off the event loop goroutine.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"pkt.systems/pslog"
)

// Job is a unit of work. It must honour ctx.
type Job func(ctx context.Context)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs      chan job
	wg        sync.WaitGroup
	log       pslog.Logger
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type job struct {
	ctx  context.Context
	name string
	fn   Job
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int, logger pslog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	p := &Pool{jobs: make(chan job, 1), log: logger.With("component", "worker")}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.run(j)
			}
		}()
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked", "job", j.name, "panic", fmt.Sprint(r))
		}
	}()
	if err := j.ctx.Err(); err != nil {
		p.log.Debug("job skipped", "job", j.name, "err", err)
		return
	}
	p.log.Debug("job started", "job", j.name)
	j.fn(j.ctx)
	p.log.Debug("job finished", "job", j.name)
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, name string, fn Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, name: name, fn: fn}:
		return true
	default:
		p.log.Debug("job dropped", "job", name)
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
