package resilience

import (
	"testing"
	"time"
)

func testRegistry(opts Options) (*Registry, *time.Time) {
	r := NewRegistry()
	now := time.Unix(1700000000, 0)
	r.SetClock(func() time.Time { return now })
	r.Register("provider", opts)
	return r, &now
}

func TestClosedOpensAtThreshold(t *testing.T) {
	r, _ := testRegistry(Options{FailureThreshold: 3, ResetTimeout: 100 * time.Millisecond})
	for i := 0; i < 2; i++ {
		r.RecordFailure("provider")
	}
	if got := r.GetState("provider"); got != StateClosed {
		t.Fatalf("expected CLOSED below threshold, got %s", got)
	}
	r.RecordFailure("provider")
	if got := r.GetState("provider"); got != StateOpen {
		t.Fatalf("expected OPEN at threshold, got %s", got)
	}
	if r.CanExecute("provider") {
		t.Fatalf("open circuit must block execution")
	}
}

func TestOpenHalfOpensAfterResetTimeout(t *testing.T) {
	r, now := testRegistry(Options{FailureThreshold: 1, ResetTimeout: 100 * time.Millisecond})
	r.RecordFailure("provider")
	if r.CanExecute("provider") {
		t.Fatalf("expected blocked while open")
	}
	*now = now.Add(150 * time.Millisecond)
	if !r.CanExecute("provider") {
		t.Fatalf("expected allowed after reset timeout")
	}
	if got := r.GetState("provider"); got != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", got)
	}
}

func TestHalfOpenClosesAfterSuccesses(t *testing.T) {
	r, now := testRegistry(Options{
		FailureThreshold:         1,
		ResetTimeout:             100 * time.Millisecond,
		HalfOpenSuccessThreshold: 2,
	})
	r.RecordFailure("provider")
	*now = now.Add(200 * time.Millisecond)
	if !r.CanExecute("provider") {
		t.Fatalf("expected half-open to allow execution")
	}
	r.RecordSuccess("provider")
	if got := r.GetState("provider"); got != StateHalfOpen {
		t.Fatalf("one success must not close, got %s", got)
	}
	r.RecordSuccess("provider")
	if got := r.GetState("provider"); got != StateClosed {
		t.Fatalf("expected CLOSED after two successes, got %s", got)
	}
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	r, now := testRegistry(Options{FailureThreshold: 1, ResetTimeout: 100 * time.Millisecond})
	r.RecordFailure("provider")
	*now = now.Add(200 * time.Millisecond)
	if !r.CanExecute("provider") {
		t.Fatalf("expected half-open to allow execution")
	}
	r.RecordFailure("provider")
	if got := r.GetState("provider"); got != StateOpen {
		t.Fatalf("expected OPEN after half-open failure, got %s", got)
	}
}

func TestUnknownCircuitFailsOpen(t *testing.T) {
	r := NewRegistry()
	if !r.CanExecute("never-registered") {
		t.Fatalf("unknown circuit must allow execution")
	}
	r.RecordFailure("never-registered")
	r.RecordSuccess("never-registered")
	if got := r.GetState("never-registered"); got != StateUnknown {
		t.Fatalf("expected UNKNOWN, got %s", got)
	}
	var nilReg *Registry
	if !nilReg.CanExecute("anything") {
		t.Fatalf("nil registry must fail open")
	}
}

func TestResetForcesClosed(t *testing.T) {
	r, _ := testRegistry(Options{FailureThreshold: 1})
	r.RecordFailure("provider")
	if got := r.GetState("provider"); got != StateOpen {
		t.Fatalf("expected OPEN, got %s", got)
	}
	r.Reset("provider")
	if got := r.GetState("provider"); got != StateClosed {
		t.Fatalf("expected CLOSED after reset, got %s", got)
	}
	if !r.CanExecute("provider") {
		t.Fatalf("reset circuit must allow execution")
	}
}

func TestDefaultsApplied(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.FailureThreshold != 5 || opts.ResetTimeout != 30*time.Second || opts.HalfOpenSuccessThreshold != 2 {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}
