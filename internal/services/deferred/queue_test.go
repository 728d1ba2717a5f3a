package deferred

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestQueueExecutesSerially(t *testing.T) {
	q := NewQueue(arbor.NewLogger())
	q.Start(context.Background())
	defer q.Stop()

	var mu sync.Mutex
	var order []int
	running := 0
	maxConcurrent := 0

	done := make(chan struct{}, 3)
	for i := 1; i <= 3; i++ {
		i := i
		q.Enqueue("test", func(ctx context.Context) error {
			mu.Lock()
			running++
			if running > maxConcurrent {
				maxConcurrent = running
			}
			order = append(order, i)
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			done <- struct{}{}
			return nil
		})
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("deferred tasks did not complete")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 1, maxConcurrent)
}

func TestQueueFailureDoesNotBlock(t *testing.T) {
	q := NewQueue(arbor.NewLogger())
	q.Start(context.Background())
	defer q.Stop()

	ran := make(chan struct{})
	q.Enqueue("failing", func(ctx context.Context) error {
		return errors.New("boom")
	})
	q.Enqueue("following", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task after failure never ran")
	}
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue(arbor.NewLogger())

	ran := make(chan struct{})
	id := q.Enqueue("early", func(ctx context.Context) error {
		close(ran)
		return nil
	})
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, q.Len())

	q.Start(context.Background())
	defer q.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("pre-start task never ran")
	}
}
