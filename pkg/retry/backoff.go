package retry

import (
	"math"
	"time"
)

// Backoff computes exponential delays for a policy
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator for the given policy
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the delay before the given attempt. Attempt numbering
// starts at 1, so the first retry waits InitialDelay and each subsequent
// retry multiplies the previous delay by Multiplier.
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.policy.InitialDelay) * math.Pow(b.policy.Multiplier, float64(attempt-1))

	if b.policy.MaxDelay > 0 && delay > float64(b.policy.MaxDelay) {
		return b.policy.MaxDelay
	}
	return time.Duration(delay)
}
