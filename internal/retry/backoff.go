package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Class partitions retryable failures into backoff classes. Timeouts wait
// longer between attempts than ordinary provider errors.
type Class int

const (
	ClassStandard Class = iota
	ClassTimeout
)

// Classifier maps an error to its backoff class.
type Classifier func(error) Class

// Policy contains configuration for class-aware linear-base backoff. The
// delay before attempt n+1 is base(class) * n, capped at MaxDelay.
type Policy struct {
	StandardBase time.Duration
	TimeoutBase  time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Jitter       bool
}

// DefaultPolicy returns a sensible default configuration
func DefaultPolicy() Policy {
	return Policy{
		StandardBase: 2 * time.Second,
		TimeoutBase:  3 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  3,
		Jitter:       true,
	}
}

// Backoff executes operations with class-aware backoff between attempts.
type Backoff struct {
	policy Policy
}

// NewBackoff creates a new backoff instance
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Retry runs operation up to MaxAttempts times. Between attempts it waits
// according to the class the classifier assigns to the last error. A nil
// classifier treats every failure as ClassStandard. isRetryable, when
// non-nil, short-circuits on errors that must never be retried.
func (b *Backoff) Retry(ctx context.Context, operation func() error, classify Classifier, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}

		if attempt == b.policy.MaxAttempts {
			break
		}

		class := ClassStandard
		if classify != nil {
			class = classify(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Delay(class, attempt)):
		}
	}

	return lastErr
}

// Delay computes the wait before the attempt following attempt n. The base
// scales linearly with the attempt number; timeouts use the longer base.
func (b *Backoff) Delay(class Class, attempt int) time.Duration {
	base := b.policy.StandardBase
	if class == ClassTimeout {
		base = b.policy.TimeoutBase
	}

	delay := float64(base) * float64(attempt)
	if delay > float64(b.policy.MaxDelay) {
		delay = float64(b.policy.MaxDelay)
	}

	if b.policy.Jitter {
		jitter := delay * 0.25
		delay += (secureFloat64() - 0.5) * 2 * jitter
		if delay < 0 {
			delay = float64(base)
		}
		if delay > float64(b.policy.MaxDelay) {
			delay = float64(b.policy.MaxDelay)
		}
	}

	return time.Duration(delay)
}

// secureFloat64 generates a cryptographically secure float64 between 0 and 1
func secureFloat64() float64 {
	max := big.NewInt(0).SetUint64(math.MaxUint64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Extremely unlikely; fall back to a time-derived value.
		return float64(time.Now().UnixNano()%1000000) / 1000000.0
	}
	return float64(n.Uint64()) / float64(math.MaxUint64)
}
