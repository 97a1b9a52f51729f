package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/envelope-ocr/internal/core"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one invocation waiting for a worker.
type Job struct {
	Invocation  core.Invocation
	SubmittedAt time.Time
	TraceID     string
	// Done, if set, receives the result on the worker goroutine.
	Done func(core.Result)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
