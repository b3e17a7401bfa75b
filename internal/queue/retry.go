package queue

import "time"

// RetryPolicy computes the delay before a given delivery attempt (1-based).
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialRetryPolicy doubles the delay each attempt up to Max.
type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// NextDelay returns Initial*2^(attempt-1), capped at Max. Zero-valued fields
// fall back to 1s initial and 30s cap.
func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}
