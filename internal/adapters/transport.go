// Package adapters holds the shared transport pieces for the vendor
// clients: the typed upstream error and the circuit breaker wrapper. Vendor
// field names live only in the vendor subpackages; callers see the canonical
// model shapes.
package adapters

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ternarybob/vantage/internal/common"
)

// APIError preserves the upstream status code so the retry layer can
// classify transient failures.
type APIError struct {
	Vendor   string
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s (status: %d, endpoint: %s)", e.Vendor, e.Message, e.Status, e.Endpoint)
}

// StatusCode returns the upstream HTTP status.
func (e *APIError) StatusCode() int {
	return e.Status
}

// NewBreaker builds the per-vendor circuit breaker. The breaker opens after
// five consecutive failures and probes again after 30 seconds, shielding the
// fan-out from a vendor outage turning every request into a timeout wait.
func NewBreaker(vendor string) *gobreaker.CircuitBreaker {
	log := common.GetLogger()
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    vendor,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("vendor", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Vendor circuit breaker state changed")
		},
	})
}
