package refresh

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// intervalPolicy tracks the effective refresh interval:
// base * factor^n after n consecutive failures, optionally capped.
// The cap never drops below base, so a failure never speeds refreshes up.
type intervalPolicy struct {
	base    time.Duration
	current time.Duration
	exp     *backoff.ExponentialBackOff
}

func newIntervalPolicy(base time.Duration, factor float64, maxInterval time.Duration) *intervalPolicy {
	if maxInterval <= 0 {
		maxInterval = time.Duration(math.MaxInt64)
	}
	if maxInterval < base {
		maxInterval = base
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Duration(float64(base) * factor)
	exp.Multiplier = factor
	exp.RandomizationFactor = 0
	exp.MaxInterval = maxInterval
	exp.MaxElapsedTime = 0

	p := &intervalPolicy{base: base, exp: exp}
	p.reset()
	return p
}

// reset returns to the base interval
func (p *intervalPolicy) reset() {
	p.exp.Reset()
	p.current = p.base
}

// fail advances the interval by one failure
func (p *intervalPolicy) fail() time.Duration {
	next := p.exp.NextBackOff()
	if next == backoff.Stop {
		return p.current
	}
	if next > p.exp.MaxInterval {
		next = p.exp.MaxInterval
	}
	p.current = next
	return p.current
}

// interval is the effective interval for the current failure count
func (p *intervalPolicy) interval() time.Duration {
	return p.current
}
