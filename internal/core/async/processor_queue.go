package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/joseph-ayodele/envelope-ocr/internal/async"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
)

// Handler is the part of *core.Processor the queue needs.
type Handler interface {
	Process(ctx context.Context, inv core.Invocation) core.Result
}

// ProcessorQueue feeds invocations to a fixed set of workers. One worker (the
// default) serializes report writes within the process.
type ProcessorQueue struct {
	proc    Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch       chan async.Job
	wg       sync.WaitGroup
	once     sync.Once
	quit     chan struct{} // closed first on Shutdown, releases blocked senders
	quitOnce sync.Once

	// senders hold the read lock while sending so close(ch) never races a send
	mu     sync.RWMutex
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
			q.ch = make(chan async.Job, n)
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

func NewProcessorQueue(proc Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 1,
		timeout: 3 * time.Minute,
		ch:      make(chan async.Job, 64),
		quit:    make(chan struct{}),
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
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job async.Job) {
	ctx, cancel := common.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	res := q.proc.Process(ctx, job.Invocation)
	if res.Err != nil {
		q.logger.Error("processing failed",
			"worker_id", workerID,
			"filename", job.Invocation.Filename,
			"status_code", res.StatusCode,
			"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
			"error", res.Err)
	} else {
		q.logger.Info("processed file successfully",
			"worker_id", workerID,
			"filename", job.Invocation.Filename,
			"report_key", res.ReportKey,
			"rows", res.Rows)
	}
	if job.Done != nil {
		job.Done(res)
	}
}

// Enqueue blocks while the queue is full, until ctx is done or Shutdown starts.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job async.Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "filename", job.Invocation.Filename)
		return async.ErrQueueClosed
	}
	select {
	case <-q.quit:
		return async.ErrQueueClosed
	case q.ch <- job:
		q.logger.Debug("queued file for processing", "filename", job.Invocation.Filename, "source", job.Invocation.Source)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "filename", job.Invocation.Filename)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		q.logger.Warn("enqueue abandoned: queue is shutting down", "filename", job.Invocation.Filename)
		return async.ErrQueueClosed
	}
}

// Process enqueues inv and waits for its result, so synchronous transports
// share the workers with the watcher. If ctx ends first the job still runs.
func (q *ProcessorQueue) Process(ctx context.Context, inv core.Invocation) core.Result {
	done := make(chan core.Result, 1)
	job := async.Job{
		Invocation: inv,
		TraceID:    common.RequestIDFromContext(ctx),
		Done:       func(r core.Result) { done <- r },
	}
	if err := q.Enqueue(ctx, job); err != nil {
		return core.Result{StatusCode: 503, Message: "❌ Error: " + err.Error(), Err: err}
	}
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return core.Result{StatusCode: 504, Message: "❌ Error: " + ctx.Err().Error(), Err: ctx.Err()}
	}
}

// Shutdown stops intake, then waits for queued jobs to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.quitOnce.Do(func() { close(q.quit) })

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
		q.logger.Info("queue drained, shutdown complete")
	}
}
