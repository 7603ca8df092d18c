package utils

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var buf bytes.Buffer
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewLogger(&buf)}

	calls := 0
	err := r.Do(context.Background(), "ping", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if n := strings.Count(buf.String(), "WARNING - [retry] ping failed"); n != 2 {
		t.Errorf("retry warnings: got %d, want 2", n)
	}
}

func TestRetryGivesUp(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}
	boom := errors.New("boom")

	err := r.Do(context.Background(), "ping", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v; want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("error should name the attempt count: %v", err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}

	calls := 0
	err := r.Do(ctx, "ping", func(context.Context) error {
		calls++
		cancel()
		return errors.New("refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v; want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
