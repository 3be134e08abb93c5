package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3, Delay: time.Millisecond}, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3, Delay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	wantErr := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3, Delay: time.Millisecond}, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	// MaxRetries counts re-attempts, so 3 retries means 4 calls total.
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	wantErr := errors.New("no slots")
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3, Delay: time.Millisecond}, func() error {
		calls++
		return Permanent(wantErr)
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	// The permanent marker is unwrapped before returning.
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if IsPermanent(err) {
		t.Fatal("returned error should not carry the permanent marker")
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, Policy{MaxRetries: 10, Delay: time.Hour}, func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should stay nil")
	}
}

func TestIsPermanentThroughWrapping(t *testing.T) {
	inner := Permanent(errors.New("boom"))
	wrapped := errors.Join(errors.New("context"), inner)
	if !IsPermanent(wrapped) {
		t.Fatal("expected wrapped permanent error to be detected")
	}
	if IsPermanent(errors.New("plain")) {
		t.Fatal("plain error must not be permanent")
	}
}
