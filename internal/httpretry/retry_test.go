package httpretry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bilusteknoloji/pipgrub/internal/httpretry"
)

func budget() httpretry.Budget {
	return httpretry.Budget{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := httpretry.Do(context.Background(), budget(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := httpretry.Do(context.Background(), budget(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return httpretry.Retryable(errors.New("transient"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	sentinel := errors.New("fatal")
	err := httpretry.Do(context.Background(), budget(), "op", func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	err := httpretry.Do(context.Background(), budget(), "op", func(ctx context.Context) error {
		calls++
		return httpretry.Retryable(errors.New("always transient"))
	})
	if err == nil {
		t.Fatal("expected an error after exhausting the budget")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestClassifyStatus(t *testing.T) {
	if err := httpretry.ClassifyStatus(200, ""); err != nil {
		t.Errorf("200 should not error: %v", err)
	}
	if err := httpretry.ClassifyStatus(503, "busy"); !httpretry.IsRetryable(err) {
		t.Error("503 should be retryable")
	}
	if err := httpretry.ClassifyStatus(404, "missing"); err == nil || httpretry.IsRetryable(err) {
		t.Error("404 should be a non-retryable error")
	}
}

func TestSameOrigin(t *testing.T) {
	if !httpretry.SameOrigin("https://example.org/a", "https://example.org/b") {
		t.Error("expected same origin")
	}
	if httpretry.SameOrigin("https://example.org/a", "https://other.org/a") {
		t.Error("expected different origin")
	}
}
