// Package deferred provides the single-consumer FIFO used to finish LLM
// analysis in the background for deferred-mode requests.
package deferred

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// Task is one queued unit of background work.
type Task func(ctx context.Context) error

type job struct {
	id   string
	name string
	task Task
}

// Queue executes enqueued tasks serially on one background goroutine. Task
// failures are logged, never fatal, and never block later tasks.
type Queue struct {
	logger arbor.ILogger

	mu      sync.Mutex
	pending []job
	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewQueue creates a stopped queue; call Start to begin consuming.
func NewQueue(logger arbor.ILogger) *Queue {
	return &Queue{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the consumer goroutine. Calling Start on a running queue
// is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	q.running = true

	go q.consume(runCtx)
	q.logger.Info().Msg("Deferred queue started")
}

// Stop cancels the consumer and waits for the in-flight task to return.
// Pending tasks are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel := q.cancel
	done := q.done
	q.mu.Unlock()

	cancel()
	<-done
	q.logger.Info().Msg("Deferred queue stopped")
}

// Enqueue appends a task. Safe to call before Start; the task runs once the
// consumer is up.
func (q *Queue) Enqueue(name string, task Task) string {
	id := uuid.New().String()

	q.mu.Lock()
	q.pending = append(q.pending, job{id: id, name: name, task: task})
	depth := len(q.pending)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	q.logger.Debug().
		Str("job_id", id).
		Str("job", name).
		Int("queue_depth", depth).
		Msg("Deferred task enqueued")
	return id
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) consume(ctx context.Context) {
	defer close(q.done)

	for {
		j, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		q.logger.Debug().Str("job_id", j.id).Str("job", j.name).Msg("Deferred task running")
		if err := j.task(ctx); err != nil {
			q.logger.Warn().
				Str("job_id", j.id).
				Str("job", j.name).
				Err(err).
				Msg("Deferred task failed")
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (q *Queue) next() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return job{}, false
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	return j, true
}
