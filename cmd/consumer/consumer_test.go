package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakePublisher implements Publisher for tests
type fakePublisher struct {
	fail  int // number of times to fail before succeeding
	calls int
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("publish fail")
	}
	return nil
}

func TestPublishWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakePublisher{fail: 2}
	ctx := context.Background()
	start := time.Now()
	if err := publishWithRetry(ctx, f, "ride-feed:invalidate", []byte("{}"), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestPublishWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakePublisher{fail: 5}
	ctx := context.Background()
	if err := publishWithRetry(ctx, f, "ride-feed:invalidate", []byte("{}"), 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
}
