package queue

import (
	"testing"
	"time"
)

func TestExponentialRetryPolicy_Growth(t *testing.T) {
	p := ExponentialRetryPolicy{Initial: time.Second, Max: 30 * time.Second}

	testCases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tc := range testCases {
		if got := p.NextDelay(tc.attempt); got != tc.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestExponentialRetryPolicy_ZeroValueDefaults(t *testing.T) {
	p := ExponentialRetryPolicy{}

	if got := p.NextDelay(1); got != time.Second {
		t.Errorf("NextDelay(1) = %v, want 1s default", got)
	}
	if got := p.NextDelay(20); got != 30*time.Second {
		t.Errorf("NextDelay(20) = %v, want 30s default cap", got)
	}
}

func TestExponentialRetryPolicy_InitialAboveMax(t *testing.T) {
	p := ExponentialRetryPolicy{Initial: time.Minute, Max: 30 * time.Second}

	if got := p.NextDelay(1); got != 30*time.Second {
		t.Errorf("NextDelay(1) = %v, want capped 30s", got)
	}
}
