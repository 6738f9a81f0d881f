// Package worker runs a fixed pool of goroutines draining a taskq.Queue, dispatching each
// popped task to the handler registered for its kind. Grounded on the teacher's
// internal/service/common/listener.Manager: one goroutine per slot, ctx-cancellation shutdown
// via sync.WaitGroup, and backoff-on-error instead of busy-looping.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kuberos-io/kuberos/internal/taskq"
)

// ErrNoHandler is returned by Dispatch when a task's kind has no registered Handler.
var ErrNoHandler = errors.New("worker: no handler registered for task kind")

// Handler processes one task's payload. Returning an error causes the task to be rescheduled
// rather than completed.
type Handler func(ctx context.Context, task *taskq.Task) error

// Pool drains a Queue with a fixed number of goroutines, dispatching tasks by kind.
type Pool struct {
	queue       *taskq.Queue
	logger      *slog.Logger
	concurrency int
	pollEvery   time.Duration
	backoff     time.Duration

	mu       sync.Mutex
	handlers map[string]Handler

	wg sync.WaitGroup
}

// NewPool builds a worker pool of the given concurrency, polling the queue every pollEvery
// when idle and rescheduling failed tasks after backoff.
func NewPool(queue *taskq.Queue, logger *slog.Logger, concurrency int, pollEvery, backoff time.Duration) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:       queue,
		logger:      logger,
		concurrency: concurrency,
		pollEvery:   pollEvery,
		backoff:     backoff,
		handlers:    make(map[string]Handler),
	}
}

// Register binds a Handler to a task kind. Must be called before Start.
func (p *Pool) Register(kind string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

// Start launches the fixed pool of worker goroutines. It returns immediately; call Wait to
// block until ctx is cancelled and every in-flight task has drained.
func (p *Pool) Start(ctx context.Context, workerID string) {
	kinds := p.registeredKinds()
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		slot := fmt.Sprintf("%s-%d", workerID, i)
		go p.run(ctx, slot, kinds)
	}
}

// Wait blocks until every worker goroutine has returned (i.e. ctx was cancelled).
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) registeredKinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, 0, len(p.handlers))
	for k := range p.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

func (p *Pool) handlerFor(kind string) (Handler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handlers[kind]
	return h, ok
}

func (p *Pool) run(ctx context.Context, slot string, kinds []string) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.queue.Pop(ctx, slot, kinds...)
		if err != nil {
			p.logger.Error("popping task", "worker", slot, "error", err)
			p.sleep(ctx, p.backoff)
			continue
		}
		if task == nil {
			p.sleep(ctx, p.pollEvery)
			continue
		}

		p.dispatch(ctx, task)
	}
}

func (p *Pool) dispatch(ctx context.Context, task *taskq.Task) {
	handler, ok := p.handlerFor(task.Kind)
	if !ok {
		p.logger.Error("no handler for task kind", "kind", task.Kind, "task_id", task.ID)
		if err := p.queue.Reschedule(ctx, task.ID, p.backoff, ErrNoHandler); err != nil {
			p.logger.Error("rescheduling unhandled task", "task_id", task.ID, "error", err)
		}
		return
	}

	if err := handler(ctx, task); err != nil {
		p.logger.Warn("task failed, rescheduling", "kind", task.Kind, "task_id", task.ID, "error", err)
		if rerr := p.queue.Reschedule(ctx, task.ID, p.backoff, err); rerr != nil {
			p.logger.Error("rescheduling failed task", "task_id", task.ID, "error", rerr)
		}
		return
	}

	if err := p.queue.Complete(ctx, task.ID); err != nil {
		p.logger.Error("completing task", "task_id", task.ID, "error", err)
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
