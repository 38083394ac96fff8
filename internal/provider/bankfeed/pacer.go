package bankfeed

import (
	"context"
	"sync"
	"time"
)

// pacer is a token bucket spacing provider calls. It replaces the fixed
// sleep between accounts that bulk syncs used historically: the delay
// is a policy knob at this boundary, not a correctness requirement.
type pacer struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	rate   float64 // tokens per second
	last   time.Time
}

func newPacer(rate float64, burst int) *pacer {
	return &pacer{
		tokens: float64(burst),
		burst:  float64(burst),
		rate:   rate,
		last:   time.Now(),
	}
}

// wait blocks until a token is available or the context is done.
func (p *pacer) wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		now := time.Now()
		p.tokens += now.Sub(p.last).Seconds() * p.rate
		if p.tokens > p.burst {
			p.tokens = p.burst
		}
		p.last = now

		if p.tokens >= 1 {
			p.tokens--
			p.mu.Unlock()
			return nil
		}
		shortfall := 1 - p.tokens
		p.mu.Unlock()

		delay := time.Duration(shortfall / p.rate * float64(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
