package interpreter

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimited wraps Client with a process-local, adaptive tokens-per-minute
// limiter: it estimates a call's cost from prompt length, blocks until
// capacity is available, and backs the budget off by half whenever the
// wrapped client reports Unavailable, recovering gradually afterward.
//
// Grounded on the teacher's features/model/middleware AIMD rate limiter,
// narrowed to a single-process golang.org/x/time/rate.Limiter: this module
// has no multi-process coordination primitive (the teacher's used a Pulse
// replicated map, which is not part of this corpus), so cluster-wide budget
// sharing is dropped rather than faked.
type RateLimited struct {
	next Client

	mu           sync.Mutex
	limiter      *rate.Limiter
	currentTPM   float64
	minTPM       float64
	maxTPM       float64
	recoveryRate float64
}

// NewRateLimited builds a RateLimited client. initialTPM/maxTPM are
// tokens-per-minute; maxTPM is clamped up to initialTPM if smaller.
func NewRateLimited(next Client, initialTPM, maxTPM float64) *RateLimited {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &RateLimited{
		next:         next,
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

func (c *RateLimited) Call(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.WaitN(ctx, estimateTokens(req)); err != nil {
		return Response{}, err
	}
	resp, err := c.next.Call(ctx, req)
	c.observe(err)
	return resp, err
}

func (c *RateLimited) observe(err error) {
	if err == nil {
		c.adjust(c.recoveryRate)
		return
	}
	var unavailable *Unavailable
	if errors.As(err, &unavailable) {
		c.mu.Lock()
		c.adjustLocked(-c.currentTPM * 0.5)
		c.mu.Unlock()
	}
}

func (c *RateLimited) adjust(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adjustLocked(delta)
}

func (c *RateLimited) adjustLocked(delta float64) {
	newTPM := c.currentTPM + delta
	if newTPM < c.minTPM {
		newTPM = c.minTPM
	}
	if newTPM > c.maxTPM {
		newTPM = c.maxTPM
	}
	if newTPM == c.currentTPM {
		return
	}
	c.currentTPM = newTPM
	c.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	c.limiter.SetBurst(int(newTPM))
}

// estimateTokens is a cheap char-count heuristic, consistent with the
// teacher's estimator: ~1 token per 3 characters plus a fixed framing buffer.
func estimateTokens(req Request) int {
	chars := len(req.System) + len(req.User)
	if chars <= 0 {
		return 500
	}
	tokens := chars / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
