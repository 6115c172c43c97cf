package job

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"automark/logger"
)

// ErrPoolStopped is returned by Submit after Stop has been called
var ErrPoolStopped = errors.New("worker pool stopped")

// HandlerFunc runs one job end to end
type HandlerFunc func(ctx context.Context, jobID string) error

// Pool is a fixed set of workers draining a FIFO of job ids. Submit never
// blocks; at most Size jobs run at once.
type Pool struct {
	size    int
	handler HandlerFunc

	mu      sync.Mutex
	cond    *sync.Cond
	pending []string
	active  int
	stopped bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool with size workers
func NewPool(size int, handler HandlerFunc) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size, handler: handler}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the workers. Handlers receive a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(fmt.Sprintf("worker-%d", i+1))
	}
	logger.Infof("Worker pool started with %d workers", p.size)
}

// Submit queues a job id for execution
func (p *Pool) Submit(jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	p.pending = append(p.pending, jobID)
	p.cond.Signal()
	return nil
}

// Stop stops accepting work and waits for running jobs to finish. Queued jobs
// that never started are abandoned. If ctx expires first, running jobs are
// cancelled and ctx's error is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	abandoned := len(p.pending)
	p.pending = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	if abandoned > 0 {
		logger.Warnf("Worker pool stopping with %d queued jobs abandoned", abandoned)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		<-done
		return ctx.Err()
	}
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// Size returns the number of workers
func (p *Pool) Size() int { return p.size }

// Pending returns how many submitted jobs are waiting for a worker
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Active returns how many jobs are currently running
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Pool) next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.pending) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped {
		return "", false
	}
	id := p.pending[0]
	p.pending = p.pending[1:]
	p.active++
	return id, true
}

func (p *Pool) worker(name string) {
	defer p.wg.Done()
	logger.Debugf("%s started", name)

	for {
		id, ok := p.next()
		if !ok {
			logger.Debugf("%s stopped", name)
			return
		}
		p.run(name, id)
	}
}

// run executes one job. A panicking handler costs the job, never the worker.
func (p *Pool) run(name, id string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("%s recovered from panic in job %s: %v\n%s", name, id, r, debug.Stack())
		}
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	logger.Debugf("%s picked up job %s", name, id)
	if err := p.handler(p.ctx, id); err != nil {
		logger.Errorf("%s: job %s failed: %v", name, id, err)
		return
	}
	logger.Debugf("%s finished job %s", name, id)
}
