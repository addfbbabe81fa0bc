package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"ohlcv-pipeline/internal/model"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(max int, reset time.Duration) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", max, reset)
	cb.now = clk.Now
	return cb, clk
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected Open after 3 failures, got %v", cb.CurrentState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if err != ErrCircuitOpen || called {
		t.Errorf("expected ErrCircuitOpen without calling fn, got %v (called=%v)", err, called)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clk := newTestBreaker(2, time.Second)
	var transitions []State
	cb.OnStateChange = func(_ string, _, to State) { transitions = append(transitions, to) }

	errFail := errors.New("fail")
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })

	clk.Advance(2 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial call should pass: %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Fatalf("expected Closed after successful trial, got %v", cb.CurrentState())
	}

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions=%v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions=%v, want %v", transitions, want)
		}
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clk := newTestBreaker(1, time.Second)
	errFail := errors.New("fail")
	cb.Execute(func() error { return errFail })

	clk.Advance(time.Second)
	cb.Execute(func() error { return errFail })
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected Open after failed trial, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpenAdmitsOneCall(t *testing.T) {
	cb, clk := newTestBreaker(1, time.Second)
	cb.Execute(func() error { return errors.New("fail") })
	clk.Advance(time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if err != ErrCircuitOpen || called {
		t.Fatalf("concurrent half-open call: err=%v called=%v, want ErrCircuitOpen without calling fn", err, called)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Fatalf("expected Closed after trial success, got %v", cb.CurrentState())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("closed breaker rejected call: %v", err)
	}
}

func TestCircuitBreaker_IgnoresUncountedErrors(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Second)
	cb.IsFailure = IsTransient

	permanent := &StatusError{Source: "test", Status: 404}
	for i := 0; i < 5; i++ {
		if err := cb.Execute(func() error { return permanent }); err != permanent {
			t.Fatalf("error should pass through: %v", err)
		}
	}
	if cb.CurrentState() != StateClosed {
		t.Fatalf("non-transient errors must not trip the breaker, got %v", cb.CurrentState())
	}
}

type stubSource struct {
	calls int
	err   error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchBars(context.Context, model.Symbol, time.Time) ([]model.RawBar, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []model.RawBar{{Ticker: "AAA"}}, nil
}

func TestGuard(t *testing.T) {
	stub := &stubSource{err: &StatusError{Source: "stub", Status: 502}}
	cb, _ := newTestBreaker(2, time.Minute)
	src := Guard(stub, cb)

	sym := model.Symbol{Ticker: "AAA", Class: model.Equity}
	src.FetchBars(context.Background(), sym, time.Time{})
	src.FetchBars(context.Background(), sym, time.Time{})
	_, err := src.FetchBars(context.Background(), sym, time.Time{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err=%v, want ErrCircuitOpen", err)
	}
	if stub.calls != 2 {
		t.Fatalf("provider called %d times, want 2", stub.calls)
	}
	if src.Name() != "stub" {
		t.Fatalf("name=%q", src.Name())
	}
}
