// Package retry wraps upstream calls with classified retries and linear
// backoff.
package retry

import (
	"context"
	"errors"
	"net"
	"regexp"
	"time"

	"github.com/ternarybob/vantage/internal/common"
)

// retryableMessage matches transient failures that surface only as text.
var retryableMessage = regexp.MustCompile(`(?i)timeout|socket hang up|temporarily unavailable`)

// statusCoder is implemented by adapter errors that carry an upstream HTTP
// status.
type statusCoder interface {
	StatusCode() int
}

// Policy runs tasks with a fixed attempt budget and linear backoff: the
// sleep before attempt n+1 is Delay * n.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// NewPolicy builds a policy from configuration.
func NewPolicy(attempts int, delay time.Duration) Policy {
	if attempts < 1 {
		attempts = 1
	}
	if delay < 0 {
		delay = 0
	}
	return Policy{Attempts: attempts, Delay: delay}
}

// Do runs task until it succeeds, exhausts the attempt budget, or returns a
// non-retryable error. Non-retryable errors propagate immediately.
func (p Policy) Do(ctx context.Context, operation string, task func(ctx context.Context) error) error {
	log := common.GetLogger()
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := task(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		lastErr = err

		if attempt == p.Attempts {
			break
		}

		sleep := p.Delay * time.Duration(attempt)
		log.Debug().
			Str("operation", operation).
			Int("attempt", attempt).
			Str("backoff", sleep.String()).
			Err(err).
			Msg("Retrying after transient upstream error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}

	return lastErr
}

// Retryable classifies an error as transient. Retryable when: the upstream
// status is 408, 429 or >= 500; the transport reported a timeout or
// temporary network condition; or the message matches the transient pattern.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		if code == 408 || code == 429 || code >= 500 {
			return true
		}
		// A definitive upstream answer (404, 401, ...) never retries.
		if code >= 400 {
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return retryableMessage.MatchString(err.Error())
}
