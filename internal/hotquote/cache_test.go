package hotquote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vantage/internal/models"
)

func TestCacheRoundTrip(t *testing.T) {
	c := New(45 * time.Second)
	key := Key("NVDA", "2025-11-10")

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, &models.Quote{Symbol: "NVDA", Price: 901.5})

	q, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, 901.5, q.Price)
}

func TestCacheExpiresOnRead(t *testing.T) {
	c := New(45 * time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	key := Key("AAPL", "2025-11-10")
	c.Put(key, &models.Quote{Symbol: "AAPL", Price: 210})

	now = now.Add(46 * time.Second)
	_, ok := c.Get(key)
	assert.False(t, ok)
	// Eviction happened on the read
	assert.Equal(t, 0, c.Len())
}

func TestCacheIgnoresNil(t *testing.T) {
	c := New(time.Second)
	c.Put(Key("MSFT", "2025-11-10"), nil)
	assert.Equal(t, 0, c.Len())
}
