package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrMaxRetriesExceeded wraps the last error once the retry budget is spent
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy defines how an operation is retried. MaxRetries counts retries after
// the initial attempt, so MaxRetries=2 allows three attempts total.
type Policy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	RetryableFunc func(error) bool
}

// Validate checks the policy for usable values
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("initial delay must be positive, got %v", p.InitialDelay)
	}
	if p.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0, got %f", p.Multiplier)
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("max delay %v is below initial delay %v", p.MaxDelay, p.InitialDelay)
	}
	return nil
}

// DefaultPolicy returns a conservative exponential-backoff policy
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}
