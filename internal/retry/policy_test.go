package retry

import (
	"context"
	"testing"
	"time"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != ModeExponential {
		t.Fatalf("expected exponential default mode got %s", p.Mode)
	}
	if p.Initial != time.Second || p.Max != 30*time.Second || p.MaxRetries != 5 {
		t.Fatalf("unexpected default policy %+v", p)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(ModeFixed, 5*time.Second, 2*time.Second, 3)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != ModeFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 3 {
		t.Fatalf("expected maxRetries 3 got %d", p.MaxRetries)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(ModeFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond {
			t.Fatalf("fixed attempt %d expected 100ms got %v", i, d)
		}
	}

	linear := NewPolicy(ModeLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct {
		attempt int
		want    time.Duration
	}{{1, 100 * time.Millisecond}, {2, 200 * time.Millisecond}, {3, 250 * time.Millisecond}, {4, 250 * time.Millisecond}}
	for _, c := range cases {
		if got := linear.Delay(c.attempt); got != c.want {
			t.Fatalf("linear attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}

	exp := NewPolicy(ModeExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	expCases := []struct {
		attempt int
		want    time.Duration
	}{{1, 50 * time.Millisecond}, {2, 100 * time.Millisecond}, {3, 160 * time.Millisecond}, {100, 160 * time.Millisecond}}
	for _, c := range expCases {
		if got := exp.Delay(c.attempt); got != c.want {
			t.Fatalf("exp attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}
}

// TestDelayEdgeCases ensures non-positive attempts yield zero.
func TestDelayEdgeCases(t *testing.T) {
	p := NewPolicy(ModeLinear, 10*time.Millisecond, 20*time.Millisecond, 1)
	if d := p.Delay(0); d != 0 {
		t.Fatalf("attempt 0 expected 0 got %v", d)
	}
	if d := p.Delay(-1); d != 0 {
		t.Fatalf("attempt -1 expected 0 got %v", d)
	}
	if !p.Exhausted(2) || p.Exhausted(1) {
		t.Fatalf("unexpected exhaustion for max retries 1")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	p := NewPolicy(ModeFixed, time.Hour, time.Hour, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, 1); err == nil {
		t.Fatal("expected context error")
	}

	quick := NewPolicy(ModeFixed, time.Millisecond, time.Millisecond, 1)
	if err := quick.Wait(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestValidate covers validation error paths.
func TestValidate(t *testing.T) {
	if err := (Policy{Mode: ModeLinear, Max: time.Second, MaxRetries: 1}).Validate(); err == nil {
		t.Fatalf("expected error for zero initial")
	}
	if err := (Policy{Mode: ModeLinear, Initial: time.Second, MaxRetries: 1}).Validate(); err == nil {
		t.Fatalf("expected error for zero max")
	}
	if err := (Policy{Mode: ModeLinear, Initial: time.Second, Max: 2 * time.Second, MaxRetries: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative retries")
	}
	if err := (Policy{Mode: ModeLinear, Initial: time.Second, Max: 2 * time.Second}).Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

// TestUnknownModeFallsBack leaves mode default when unknown string supplied.
func TestUnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	if p.Mode != ModeExponential {
		t.Fatalf("unknown mode should fall back to exponential got %s", p.Mode)
	}
}
