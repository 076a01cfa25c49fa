// Package serial runs submitted work one task at a time, in submission order,
// on a single dedicated goroutine.
//
// The backlog is unbounded so Submit never blocks the caller. Each component
// that needs single-writer semantics owns its own Queue.
package serial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"vidtrace/internal/logging"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("serial queue closed")

// Queue is an unbounded FIFO drained by one worker goroutine.
type Queue struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	wake    *sync.Cond
	backlog []func()
	closed  bool
	done    chan struct{}
}

// New starts a queue whose worker logs under name.
func New(name string, logger *slog.Logger) *Queue {
	q := &Queue{
		name:   name,
		logger: logging.NewComponentLogger(logger, name),
		done:   make(chan struct{}),
	}
	q.wake = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Submit appends fn to the backlog and returns immediately.
func (q *Queue) Submit(fn func()) error {
	if fn == nil {
		return errors.New("nil task")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.backlog = append(q.backlog, fn)
	q.wake.Signal()
	return nil
}

// Len reports the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Drain blocks until every task submitted before the call has finished or
// ctx is done. Draining a closed queue waits for the worker to exit.
func (q *Queue) Drain(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	marker := make(chan struct{})
	if err := q.Submit(func() { close(marker) }); err != nil {
		if !errors.Is(err, ErrClosed) {
			return err
		}
		marker = q.done
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, runs what is already queued, and waits for the
// worker to exit. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.wake.Broadcast()
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.backlog) == 0 && !q.closed {
			q.wake.Wait()
		}
		if len(q.backlog) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.backlog[0]
		q.backlog[0] = nil
		q.backlog = q.backlog[1:]
		q.mu.Unlock()

		q.runTask(task)
	}
}

func (q *Queue) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(q.logger, "task panicked", "task_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "task abandoned; queue continues"),
			)
		}
	}()
	task()
}
