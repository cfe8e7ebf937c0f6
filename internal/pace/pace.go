// Package pace spaces out sequential requests to the same service.
package pace

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer lets the first call through immediately and holds every later call
// until at least Interval has elapsed since the previous one.
type Pacer struct {
	limiter *rate.Limiter
}

// New returns a pacer. A non-positive interval disables pacing.
func New(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call may proceed or ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
