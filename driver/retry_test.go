package driver

import (
	"testing"
	"time"
)

func TestRetryPolicyDelaySchedule(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second}

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, w := range want {
		attempt := i + 1
		if got := p.Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestRetryPolicyDelayClampsAttempt(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	if got := p.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, want %v", got, time.Second)
	}
	if got := p.Delay(-5); got != time.Second {
		t.Errorf("Delay(-5) = %v, want %v", got, time.Second)
	}
	// Far past the cap point: must not overflow.
	if got := p.Delay(200); got != 10*time.Second {
		t.Errorf("Delay(200) = %v, want %v", got, 10*time.Second)
	}
}

func TestRetryPolicyBaseAboveMax(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Second, MaxDelay: 3 * time.Second}
	if got := p.Delay(1); got != 3*time.Second {
		t.Errorf("Delay(1) = %v, want cap %v", got, 3*time.Second)
	}
}
