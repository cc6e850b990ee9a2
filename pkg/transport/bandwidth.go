package transport

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Bandwidth throttles inbound and outbound bytes with token buckets. The zero
// value is unlimited.
type Bandwidth struct {
	in  atomic.Pointer[rate.Limiter]
	out atomic.Pointer[rate.Limiter]
}

// SetLimit sets both limits in bytes per second, 0 meaning unlimited.
func (b *Bandwidth) SetLimit(in, out int) {
	b.in.Store(newLimiter(in))
	b.out.Store(newLimiter(out))
}

// Limit returns the limits last set.
func (b *Bandwidth) Limit() (in, out int) {
	return burst(b.in.Load()), burst(b.out.Load())
}

// WaitIn blocks until n inbound bytes are admitted.
func (b *Bandwidth) WaitIn(ctx context.Context, n int) error {
	return wait(ctx, b.in.Load(), n)
}

// WaitOut blocks until n outbound bytes are admitted.
func (b *Bandwidth) WaitOut(ctx context.Context, n int) error {
	return wait(ctx, b.out.Load(), n)
}

func newLimiter(bytesPerSec int) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
}

func burst(lim *rate.Limiter) int {
	if lim == nil {
		return 0
	}
	return lim.Burst()
}

// wait admits n bytes in burst sized pieces, so packets larger than one
// second of bandwidth still pass.
func wait(ctx context.Context, lim *rate.Limiter, n int) error {
	if lim == nil {
		return nil
	}
	for n > 0 {
		take := min(n, lim.Burst())
		if err := lim.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}
