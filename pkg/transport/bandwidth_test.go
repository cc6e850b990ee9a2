package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBandwidthUnlimited(t *testing.T) {
	var b Bandwidth
	in, out := b.Limit()
	assert.Zero(t, in)
	assert.Zero(t, out)
	assert.NoError(t, b.WaitOut(context.Background(), 1<<30))
}

func TestBandwidthThrottles(t *testing.T) {
	var b Bandwidth
	b.SetLimit(0, 1000)

	in, out := b.Limit()
	assert.Zero(t, in)
	assert.Equal(t, 1000, out)

	// The first burst is free, the next 100 bytes take about 100ms.
	start := time.Now()
	assert.NoError(t, b.WaitOut(context.Background(), 1100))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBandwidthCancelled(t *testing.T) {
	var b Bandwidth
	b.SetLimit(10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, b.WaitIn(ctx, 100))
}
