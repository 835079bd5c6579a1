package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPoolStopped is returned by Stop when called twice.
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is a detached unit of best-effort work.
type Task struct {
	Name     string
	TicketID string
	Run      func(ctx context.Context) error
}

// TaskError reports a failed or panicking task.
type TaskError struct {
	Name     string
	TicketID string
	Err      error
	At       time.Time
}

func (e TaskError) Error() string {
	return fmt.Sprintf("%s (ticket %s): %v", e.Name, e.TicketID, e.Err)
}

// Pool runs tasks outside the request path. Task failures never reach the
// submitter; they are published on Errors instead.
type Pool struct {
	queue   chan Task
	errs    chan TaskError
	timeout time.Duration
	logger  *zap.Logger

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewPool starts workers goroutines consuming a queue of queueSize tasks.
// Each task runs with its own timeout, independent of the submitter's context.
func NewPool(workers, queueSize int, timeout time.Duration, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		queue:   make(chan Task, queueSize),
		errs:    make(chan TaskError, queueSize),
		timeout: timeout,
		logger:  logger,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// Submit enqueues a task without blocking. It returns false when the queue
// is full or the pool is stopped; the task is then dropped.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.queue <- task:
		return true
	default:
		p.logger.Warn("task queue full; dropping task",
			zap.String("task", task.Name),
			zap.String("ticket_id", task.TicketID))
		return false
	}
}

// Errors exposes task failures. The channel is closed after Stop drains.
func (p *Pool) Errors() <-chan TaskError {
	return p.errs
}

// MonitorErrors logs task failures until ctx is done or the pool stops.
// onError, when set, is called for every failure.
func (p *Pool) MonitorErrors(ctx context.Context, onError func(TaskError)) {
	for {
		select {
		case <-ctx.Done():
			return
		case taskErr, ok := <-p.errs:
			if !ok {
				return
			}
			p.logger.Warn("background task failed",
				zap.String("task", taskErr.Name),
				zap.String("ticket_id", taskErr.TicketID),
				zap.Error(taskErr.Err))
			if onError != nil {
				onError(taskErr)
			}
		}
	}
}

// Stop stops accepting tasks and waits for queued ones to finish or ctx to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(p.errs)
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.queue {
		if err := p.run(task); err != nil {
			p.report(TaskError{Name: task.Name, TicketID: task.TicketID, Err: err, At: time.Now()})
		}
	}
}

func (p *Pool) run(task Task) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if task.Run == nil {
		return nil
	}
	return task.Run(ctx)
}

func (p *Pool) report(taskErr TaskError) {
	select {
	case p.errs <- taskErr:
	default:
		p.logger.Error("task error channel full",
			zap.String("task", taskErr.Name),
			zap.Error(taskErr.Err))
	}
}
