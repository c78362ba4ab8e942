// Package policy holds the rules that decide whether a failed capture is tried again.
package policy

import (
	"fmt"
	"time"

	"github.com/Knetic/govaluate"
)

// DefaultRetryRule retries while fewer attempts than the maximum have been made.
const DefaultRetryRule = "retry_count < max_retries"

// RetryDecision is the outcome of evaluating the retry rule after a failed attempt.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
}

// CaptureRetryPolicy evaluates a configurable expression over the charge's retry counter.
// The expression sees retry_count (attempts made so far) and max_retries.
type CaptureRetryPolicy struct {
	rule       *govaluate.EvaluableExpression
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewCaptureRetryPolicy(rule string, maxRetries int, baseDelay, maxDelay time.Duration) (*CaptureRetryPolicy, error) {
	if rule == "" {
		rule = DefaultRetryRule
	}
	if maxRetries < 1 {
		return nil, fmt.Errorf("max retries must be at least 1, got %d", maxRetries)
	}
	expr, err := govaluate.NewEvaluableExpression(rule)
	if err != nil {
		return nil, fmt.Errorf("parse retry rule %q: %w", rule, err)
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &CaptureRetryPolicy{
		rule:       expr,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}, nil
}

func (p *CaptureRetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// Decide is called with the retry count after it has been incremented for the failed attempt.
// The hard maximum always wins over the rule.
func (p *CaptureRetryPolicy) Decide(retryCount int) (RetryDecision, error) {
	if retryCount >= p.maxRetries {
		return RetryDecision{}, nil
	}

	result, err := p.rule.Evaluate(map[string]interface{}{
		"retry_count": float64(retryCount),
		"max_retries": float64(p.maxRetries),
	})
	if err != nil {
		return RetryDecision{}, fmt.Errorf("evaluate retry rule: %w", err)
	}
	retry, ok := result.(bool)
	if !ok {
		return RetryDecision{}, fmt.Errorf("retry rule returned %T, want bool", result)
	}
	if !retry {
		return RetryDecision{}, nil
	}
	return RetryDecision{Retry: true, Delay: p.Backoff(retryCount)}, nil
}

// Backoff doubles the base delay per attempt, capped at the maximum delay.
func (p *CaptureRetryPolicy) Backoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := p.baseDelay
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	return delay
}
