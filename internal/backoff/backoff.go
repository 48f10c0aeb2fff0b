// Package backoff computes reconnect delays: exponential growth from a base
// delay, capped at a ceiling, plus proportional random jitter.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"

	expbackoff "github.com/cenkalti/backoff"
)

// JitterSource returns a value in [0, 1).
type JitterSource func() float64

// Policy is immutable once built; Delay keeps no state between calls.
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
	source JitterSource
}

// New returns a policy drawing jitter from math/rand.
func New(base, max time.Duration, jitter float64) Policy {
	return Policy{Base: base, Max: max, Jitter: jitter, source: rand.Float64}
}

// WithJitterSource returns a copy of p that draws jitter from src.
func (p Policy) WithJitterSource(src JitterSource) Policy {
	p.source = src
	return p
}

// Delay returns the wait before reconnect attempt n. Attempt 0 is the
// initial connect and never waits.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.Base <= 0 {
		return 0
	}
	d := p.exponential(attempt)
	if p.Jitter <= 0 {
		return d
	}
	src := p.source
	if src == nil {
		src = rand.Float64
	}
	return d + time.Duration(p.Jitter*src()*float64(d))
}

// exponential replays a fresh unrandomized ExponentialBackOff up to attempt,
// so the result depends on attempt alone.
func (p Policy) exponential(attempt int) time.Duration {
	eb := expbackoff.NewExponentialBackOff()
	eb.InitialInterval = p.Base
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxInterval = p.Max
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = time.Duration(math.MaxInt64)
	}
	eb.MaxElapsedTime = 0
	eb.Reset()

	d := eb.NextBackOff()
	for i := 1; i < attempt && d < eb.MaxInterval; i++ {
		d = eb.NextBackOff()
	}
	if d > eb.MaxInterval {
		d = eb.MaxInterval
	}
	return d
}

// Wait blocks for d or until ctx is done. It reports whether ctx ended the
// wait.
func Wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() != nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
