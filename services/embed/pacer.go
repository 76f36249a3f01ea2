package embed

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacing defaults: at most DefaultPauseEvery calls per DefaultPause.
const (
	DefaultPauseEvery = 5
	DefaultPause      = 200 * time.Millisecond
)

// Pacer spaces out embedding calls so that a long document does not trip the
// provider's rate limit. It is a courtesy, not a guarantee.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows every calls per pause window. A non-positive value for
// either disables pacing.
func NewPacer(every int, pause time.Duration) *Pacer {
	if every <= 0 || pause <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(pause/time.Duration(every)), every)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
