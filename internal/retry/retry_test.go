package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("upstream status %d", e.code) }
func (e *statusErr) StatusCode() int { return e.code }

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "http 429", err: &statusErr{429}, want: true},
		{name: "http 408", err: &statusErr{408}, want: true},
		{name: "http 503", err: &statusErr{503}, want: true},
		{name: "http 404", err: &statusErr{404}, want: false},
		{name: "http 401", err: &statusErr{401}, want: false},
		{name: "timeout message", err: errors.New("request timeout exceeded"), want: true},
		{name: "socket hang up", err: errors.New("socket hang up"), want: true},
		{name: "temporarily unavailable", err: errors.New("service temporarily unavailable"), want: true},
		{name: "plain failure", err: errors.New("invalid api key"), want: false},
		{name: "context canceled", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	p := NewPolicy(3, time.Millisecond)
	calls := 0

	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &statusErr{500}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := NewPolicy(5, time.Millisecond)
	calls := 0
	fatal := errors.New("bad request body")

	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := NewPolicy(3, time.Millisecond)
	calls := 0

	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return &statusErr{502}
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	p := NewPolicy(10, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, "test", func(ctx context.Context) error {
		calls++
		return &statusErr{500}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls, 2)
}
