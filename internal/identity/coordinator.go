package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"vidtrace/internal/logging"
	"vidtrace/internal/serial"
)

// Coordinator serializes identity resolution. Batches run FIFO, one at a time,
// on a worker owned by the coordinator.
type Coordinator struct {
	resolver *Resolver
	queue    *serial.Queue
	logger   *slog.Logger

	mu     sync.Mutex
	totals BatchResult
}

// NewCoordinator starts the single identity writer for resolver.
func NewCoordinator(resolver *Resolver, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		resolver: resolver,
		queue:    serial.New("index-coordinator", logger),
		logger:   logging.NewComponentLogger(logger, "index-coordinator"),
	}
}

// Enqueue schedules batch for resolution and returns immediately. The batch is
// copied, so the caller may reuse its slice.
func (c *Coordinator) Enqueue(batch []Observation) error {
	return c.EnqueueNotify(batch, nil)
}

// EnqueueNotify is Enqueue with a callback that receives the batch result on
// the worker goroutine.
func (c *Coordinator) EnqueueNotify(batch []Observation, done func(BatchResult)) error {
	if len(batch) == 0 {
		if done != nil {
			done(BatchResult{})
		}
		return nil
	}
	items := make([]Observation, len(batch))
	copy(items, batch)

	err := c.queue.Submit(func() {
		result := c.resolver.ResolveBatch(context.Background(), items)
		c.mu.Lock()
		c.totals.Exact += result.Exact
		c.totals.Probable += result.Probable
		c.totals.Created += result.Created
		c.totals.Skipped += result.Skipped
		c.mu.Unlock()
		if done != nil {
			done(result)
		}
	})
	if err != nil {
		return c.closedErr(err)
	}
	c.logger.Debug("batch enqueued", logging.Int("items", len(items)))
	return nil
}

// Do runs fn on the identity writer after everything already enqueued.
func (c *Coordinator) Do(fn func(ctx context.Context)) error {
	if fn == nil {
		return errors.New("nil task")
	}
	if err := c.queue.Submit(func() { fn(context.Background()) }); err != nil {
		return c.closedErr(err)
	}
	return nil
}

// Pending returns the number of tasks waiting behind the current one.
func (c *Coordinator) Pending() int {
	return c.queue.Len()
}

// Totals returns counts accumulated across every batch resolved so far.
func (c *Coordinator) Totals() BatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BatchResult{
		Exact:    c.totals.Exact,
		Probable: c.totals.Probable,
		Created:  c.totals.Created,
		Skipped:  c.totals.Skipped,
	}
}

// Drain waits until every batch enqueued before the call has been resolved.
func (c *Coordinator) Drain(ctx context.Context) error {
	return c.queue.Drain(ctx)
}

// Close resolves what is queued and stops the worker.
func (c *Coordinator) Close() {
	c.queue.Close()
}

func (c *Coordinator) closedErr(err error) error {
	if errors.Is(err, serial.ErrClosed) {
		return ErrCoordinatorClosed
	}
	return err
}

// ErrCoordinatorClosed is returned when work arrives after Close.
var ErrCoordinatorClosed = errors.New("index coordinator closed")
