package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/envelope-ocr/internal/async"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
)

type recordingHandler struct {
	mu    sync.Mutex
	names []string
	ids   []string
	block chan struct{}
}

func (h *recordingHandler) Process(ctx context.Context, inv core.Invocation) core.Result {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.names = append(h.names, inv.Filename)
	h.ids = append(h.ids, common.RequestIDFromContext(ctx))
	return core.Result{StatusCode: 200, ReportKey: "k", Rows: 1}
}

func TestQueueProcessesInOrderWithOneWorker(t *testing.T) {
	h := &recordingHandler{}
	q := NewProcessorQueue(h, nil)

	var results []core.Result
	var mu sync.Mutex
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		err := q.Enqueue(context.Background(), async.Job{
			Invocation: core.Invocation{Filename: name},
			TraceID:    "trace-" + name,
			Done: func(r core.Result) {
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			},
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, h.names)
	assert.Equal(t, []string{"trace-a.png", "trace-b.png", "trace-c.png"}, h.ids)
	assert.Len(t, results, 3)
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingHandler{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), async.Job{Invocation: core.Invocation{Filename: "late.png"}})
	assert.True(t, errors.Is(err, async.ErrQueueClosed))
}

func TestEnqueueBackpressureHonorsContext(t *testing.T) {
	h := &recordingHandler{block: make(chan struct{})}
	q := NewProcessorQueue(h, nil, WithQueueSize(1), WithWorkers(1))

	// one job held by the worker, one filling the buffer
	require.NoError(t, q.Enqueue(context.Background(), async.Job{Invocation: core.Invocation{Filename: "1"}}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), async.Job{Invocation: core.Invocation{Filename: "2"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, async.Job{Invocation: core.Invocation{Filename: "3"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(h.block)
	q.Shutdown(context.Background())
	assert.Equal(t, []string{"1", "2"}, h.names)
}

func TestProcessWaitsForResult(t *testing.T) {
	h := &recordingHandler{}
	q := NewProcessorQueue(h, nil)
	defer q.Shutdown(context.Background())

	ctx := common.WithRequestID(context.Background(), "rid-1")
	res := q.Process(ctx, core.Invocation{Filename: "sync.png"})
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, []string{"sync.png"}, h.names)
	assert.Equal(t, []string{"rid-1"}, h.ids)
}

func TestProcessAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingHandler{}, nil)
	q.Shutdown(context.Background())

	res := q.Process(context.Background(), core.Invocation{Filename: "late.png"})
	assert.Equal(t, 503, res.StatusCode)
	assert.ErrorIs(t, res.Err, async.ErrQueueClosed)
}

func TestShutdownReleasesBlockedEnqueue(t *testing.T) {
	h := &recordingHandler{block: make(chan struct{})}
	q := NewProcessorQueue(h, nil, WithQueueSize(1), WithWorkers(1))

	require.NoError(t, q.Enqueue(context.Background(), async.Job{Invocation: core.Invocation{Filename: "a"}}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), async.Job{Invocation: core.Invocation{Filename: "b"}}))

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Enqueue(context.Background(), async.Job{Invocation: core.Invocation{Filename: "c"}})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	q.Shutdown(ctx)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, async.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("enqueue still blocked after shutdown")
	}

	close(h.block)
	assert.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.names) == 2
	}, time.Second, 5*time.Millisecond)
}
