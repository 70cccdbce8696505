package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GridCast/pkg/logger"
)

// InlineQueue runs jobs in-process, one goroutine per message, without
// persistence or retries. It stands in for RedisQueue when Redis is off.
type InlineQueue struct {
	log     *logger.Logger
	timeout time.Duration

	mu      sync.RWMutex
	jobs    map[string]Job
	stopped bool
	wg      sync.WaitGroup
}

func NewInlineQueue(lg *logger.Logger, timeout time.Duration) *InlineQueue {
	if lg == nil {
		lg = logger.Nop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &InlineQueue{log: lg, timeout: timeout, jobs: make(map[string]Job)}
}

func (q *InlineQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

func (q *InlineQueue) Start() error { return nil }

// Enqueue dispatches immediately; the caller's context only bounds the
// lookup, not the job.
func (q *InlineQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return fmt.Errorf("queue stopped")
	}
	job, ok := q.jobs[msgType]
	if !ok {
		return fmt.Errorf("no job registered for type %q", msgType)
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		defer cancel()
		if err := job.Handle(ctx, payload); err != nil {
			q.log.Error("inline job failed", logger.String("job", job.Name()), logger.Error(err))
		}
	}()
	return nil
}

// Stop rejects new messages and waits for running ones or ctx.
func (q *InlineQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ Runner = (*InlineQueue)(nil)
	_ Runner = (*RedisQueue)(nil)
)
