package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: 1 * time.Millisecond,
		Multiplier:   1.0,
		MaxDelay:     10 * time.Millisecond,
	}
}

func TestRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if !policy.ShouldRetry(agent.NetworkError(errors.New("connection refused")), 1) {
		t.Error("expected network error to be retryable")
	}
	if policy.ShouldRetry(agent.NetworkError(errors.New("connection refused")), 2) {
		t.Error("should not retry after max attempts")
	}

	delay := policy.NextDelay(1)
	if delay != 500*time.Millisecond {
		t.Errorf("expected 500ms delay, got %v", delay)
	}
	delay = policy.NextDelay(2)
	if delay != 1*time.Second {
		t.Errorf("expected 1s delay, got %v", delay)
	}
}

func TestRetryPolicyNonRetryable(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.ShouldRetry(agent.HTTPError(401, "unauthorized"), 1) {
		t.Error("expected 401 to be non-retryable")
	}
	if policy.ShouldRetry(agent.HTTPError(400, ""), 1) {
		t.Error("expected 400 to be non-retryable")
	}
	if policy.ShouldRetry(context.Canceled, 1) {
		t.Error("expected cancellation to be non-retryable")
	}
	if policy.ShouldRetry(errors.New("plain"), 1) {
		t.Error("expected unclassified error to be non-retryable")
	}
	if policy.ShouldRetry(nil, 1) {
		t.Error("nil error should not be retryable")
	}
}

func TestRetryPolicyMaxDelayCap(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  10,
		InitialDelay: 1 * time.Second,
		Multiplier:   10.0,
		MaxDelay:     30 * time.Second,
	}

	delay := policy.NextDelay(5)
	if delay > policy.MaxDelay {
		t.Errorf("delay %v exceeds max delay %v", delay, policy.MaxDelay)
	}
}

func TestRetryPolicyExecuteSuccess(t *testing.T) {
	policy := fastPolicy(3)
	calls := 0

	err := policy.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return agent.HTTPError(503, "")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicyExecuteNonRetryable(t *testing.T) {
	policy := fastPolicy(3)
	calls := 0

	err := policy.Execute(context.Background(), func() error {
		calls++
		return agent.HTTPError(403, "forbidden")
	})

	if err == nil {
		t.Error("expected error for non-retryable failure")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestRetryPolicyExecuteAllFail(t *testing.T) {
	policy := fastPolicy(2)
	calls := 0

	err := policy.Execute(context.Background(), func() error {
		calls++
		return agent.HTTPError(429, "slow down")
	})

	var ae *agent.AgentError
	if !errors.As(err, &ae) || ae.Code != "HTTP_429" {
		t.Errorf("expected HTTP_429 after all attempts, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetryPolicyExecuteContextDone(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 1, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := policy.Execute(ctx, func() error {
		calls++
		cancel()
		return agent.HTTPError(502, "")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
