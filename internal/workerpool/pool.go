package workerpool

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a unit of work run by the pool.
type Task func()

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	size   int
	queue  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New starts a pool. workers and queueSize fall back to 1 and 0 when negative.
func New(workers int, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		size:   workers,
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}

	p.logger.Info("Worker pool started", "workers", workers, "queueSize", queueSize)
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			p.drain(id)
			return
		case task := <-p.queue:
			p.run(id, task)
		}
	}
}

// drain runs whatever is still queued at shutdown.
func (p *Pool) drain(id int) {
	for {
		select {
		case task := <-p.queue:
			p.run(id, task)
		default:
			return
		}
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panic recovered", "workerId", id, "panic", r)
		}
	}()
	task()
}

// Submit queues task, blocking while the queue is full. It returns false once the
// pool is shut down.
func (p *Pool) Submit(task Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- task:
		return true
	}
}

// TrySubmit queues task without blocking and reports whether it was accepted.
func (p *Pool) TrySubmit(task Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.queue <- task:
		return true
	default:
		return false
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Pending returns the number of queued tasks.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Shutdown stops accepting tasks, runs the queued ones and waits for the workers.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Worker pool stopped", "workers", p.size)
}
