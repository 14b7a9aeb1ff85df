package driver

import "time"

// RetryPolicy bounds session-recovery attempts. The delay doubles per
// attempt from BaseDelay up to MaxDelay; a stuck browser endpoint gets a
// few minutes of escalating patience before the run is declared dead.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches an unattended overnight run: roughly six
// minutes of total backoff before giving up.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 10,
	BaseDelay:   2 * time.Second,
	MaxDelay:    60 * time.Second,
}

// Delay returns the backoff before the given 1-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
