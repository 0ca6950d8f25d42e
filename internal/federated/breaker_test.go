package federated

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeProvider struct {
	calls int
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Exchange(_ context.Context, code, _ string) (Identity, error) {
	f.calls++
	if f.err != nil {
		return Identity{}, f.err
	}
	return Identity{Provider: "fake", Subject: "sub-" + code}, nil
}

func TestBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	inner := &fakeProvider{err: errors.New("connection refused")}
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := b.Exchange(ctx, "c", ""); err == nil {
			t.Fatalf("expected inner failure")
		}
	}

	if _, err := b.Exchange(ctx, "c", ""); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open circuit must not reach provider, calls=%d", inner.calls)
	}

	// after cooldown one trial call goes through and closes the circuit
	clock = clock.Add(time.Minute)
	inner.err = nil
	id, err := b.Exchange(ctx, "c", "")
	if err != nil || id.Subject != "sub-c" {
		t.Fatalf("expected recovery, got %+v err=%v", id, err)
	}
	if _, err := b.Exchange(ctx, "d", ""); err != nil {
		t.Fatalf("expected closed circuit, got %v", err)
	}
}

func TestBreaker_RejectedCodesDoNotOpen(t *testing.T) {
	inner := &fakeProvider{err: fmt.Errorf("%w: bad code", ErrExchangeFailed)}
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 1})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := b.Exchange(ctx, "c", ""); !errors.Is(err, ErrExchangeFailed) {
			t.Fatalf("expected ErrExchangeFailed, got %v", err)
		}
	}
	if inner.calls != 3 {
		t.Fatalf("expected every call to reach provider, calls=%d", inner.calls)
	}
}
