package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// ProcessorQueue runs a fixed set of workers over a buffered job channel.
type ProcessorQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration
	base    context.Context

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithBaseContext makes every job context a child of ctx, so cancelling it
// aborts in-flight work.
func WithBaseContext(ctx context.Context) Option {
	return func(q *ProcessorQueue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

func NewProcessorQueue(handler Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		base:    context.Background(),
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	start := time.Now()
	err := q.handler.Handle(ctx, job)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "error", err)
		return
	}
	q.logger.Debug("processed file", "worker_id", workerID, "path", job.Path, "elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue blocks while the buffer is full and fails once Shutdown started.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Debug("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Debug("queue drained, shutdown complete")
	}
}
