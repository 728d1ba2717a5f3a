package fragments

import (
	"context"
	"sync"

	"github.com/ternarybob/vantage/internal/models"
)

// inflightGroup collapses concurrent computations of the same analyst
// aggregate: the first caller per key does the work, later callers wait on
// the same result channel.
type inflightGroup struct {
	mu    sync.Mutex
	calls map[string]*inflightCall
}

type inflightCall struct {
	done   chan struct{}
	result *models.AnalystSignals
}

func newInflightGroup() *inflightGroup {
	return &inflightGroup{calls: make(map[string]*inflightCall)}
}

// do runs fn once per key among concurrent callers. Results are not cached
// beyond the call's lifetime; completed keys are recomputed.
func (g *inflightGroup) do(ctx context.Context, key string, fn func() *models.AnalystSignals) *models.AnalystSignals {
	g.mu.Lock()
	if call, ok := g.calls[key]; ok {
		g.mu.Unlock()
		select {
		case <-call.done:
			return call.result
		case <-ctx.Done():
			return &models.AnalystSignals{Error: ctx.Err().Error()}
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	g.calls[key] = call
	g.mu.Unlock()

	call.result = fn()
	close(call.done)

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()

	return call.result
}
