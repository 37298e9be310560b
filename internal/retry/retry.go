package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"parley/internal/domain"
)

// =============================================================================
// Policy
// =============================================================================

// Policy controls retry behaviour for LLM calls: whether an error warrants
// another attempt and how long to wait before it.
type Policy struct {
	MaxAttempts int           `json:"maxAttempts"` // Maximum number of retry attempts (0 = no retries)
	BaseDelay   time.Duration `json:"baseDelay"`   // Backoff for the first retry
	MaxDelay    time.Duration `json:"maxDelay"`    // Upper bound on any computed delay

	jitter func() time.Duration // injectable for testing; nil = random up to 1s
}

// DefaultPolicy returns sensible retry defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// Validate checks that all Policy fields are within acceptable ranges.
func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return errors.New("retry: MaxAttempts must be >= 0")
	}
	if p.BaseDelay <= 0 {
		return errors.New("retry: BaseDelay must be > 0")
	}
	if p.MaxDelay <= 0 {
		return errors.New("retry: MaxDelay must be > 0")
	}
	return nil
}

// ShouldRetry reports whether another attempt is permitted: the error must
// be transient and the attempt counter still under the ceiling. Never
// permits a retry for a non-transient error, regardless of attempt.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	return attempt < p.MaxAttempts && IsRetryable(err)
}

// Delay computes the wait before retry number attempt: BaseDelay doubled
// per attempt plus random jitter, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	jitterFn := p.jitter
	if jitterFn == nil {
		jitterFn = defaultJitter
	}
	delay += jitterFn()
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func defaultJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(time.Second)))
}

// =============================================================================
// Error Classification
// =============================================================================

// transientSignatures are substrings of upstream error text that indicate a
// failure worth retrying. The provider error surface is free-form text, so
// matching is case-insensitive substring, not exact codes.
var transientSignatures = []string{
	"unavailable",
	"overloaded",
	"rate limit",
	"quota",
	"too many requests",
	"internal",
	"gateway",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"429", "500", "502", "503", "504", "529",
}

// IsRetryable returns true when err represents a transient failure that may
// succeed on retry (overload, rate limiting, 5xx, timeout, connection drop).
// Context errors (Canceled, DeadlineExceeded) are never retryable: the
// caller chose to cancel.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// net.Error timeout (wraps OS-level i/o timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, sig := range transientSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}

	// io.EOF and friends surface capitalized; matched case-sensitively so
	// ordinary words containing "eof" do not trip the list.
	return strings.Contains(msg, "EOF")
}

// =============================================================================
// RetryableProvider (Decorator)
// =============================================================================

// RetryableProvider wraps an LLMProvider with retry-on-transient-error logic.
type RetryableProvider struct {
	inner     domain.LLMProvider
	policy    Policy
	sleepFunc func(time.Duration) // injectable for testing
}

// NewRetryableProvider returns a decorator that retries Generate calls on
// transient errors. inner must not be nil.
func NewRetryableProvider(inner domain.LLMProvider, policy Policy) *RetryableProvider {
	if inner == nil {
		panic("retry: inner provider must not be nil")
	}
	return &RetryableProvider{
		inner:     inner,
		policy:    policy,
		sleepFunc: time.Sleep,
	}
}

// Generate calls the inner provider, retrying per the policy with the
// attempt counter carried explicitly. Returns the first successful result,
// a non-retryable error as-is, or a wrapped final error once attempts are
// exhausted.
func (p *RetryableProvider) Generate(ctx context.Context, history []domain.Message) (string, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		result, err := p.inner.Generate(ctx, history)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return "", err
		}
		if !p.policy.ShouldRetry(err, attempt) {
			break
		}

		p.sleepFunc(p.policy.Delay(attempt))
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("retries exhausted after %d attempts: %w", p.policy.MaxAttempts+1, lastErr)
}

// Compile-time check that RetryableProvider implements LLMProvider.
var _ domain.LLMProvider = (*RetryableProvider)(nil)
