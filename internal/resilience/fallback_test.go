package resilience

import (
	"errors"
	"testing"
	"time"
)

var errClient = errors.New("bad request")

func newGroup() *FallbackGroup[string] {
	fg := NewFallbackGroup[string](CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		IsFailure:    func(err error) bool { return !errors.Is(err, errClient) },
	})
	fg.Add("primary", "primary")
	fg.Add("secondary", "secondary")
	return fg
}

func TestCall_PrimarySuccess(t *testing.T) {
	t.Parallel()
	var calls []string
	got, err := Call(newGroup(), func(v string) (string, error) {
		calls = append(calls, v)
		return "from-" + v, nil
	})
	if err != nil || got != "from-primary" {
		t.Fatalf("want from-primary, got %q, %v", got, err)
	}
	if len(calls) != 1 {
		t.Errorf("want only the primary called, got %v", calls)
	}
}

func TestCall_FailureIsNotRepeated(t *testing.T) {
	t.Parallel()
	var calls []string
	_, err := Call(newGroup(), func(v string) (string, error) {
		calls = append(calls, v)
		if v == "primary" {
			return "", errTest
		}
		return "from-" + v, nil
	})
	if !errors.Is(err, errTest) || errors.Is(err, ErrUnavailable) {
		t.Fatalf("want the primary's error as is, got %v", err)
	}
	if len(calls) != 1 || calls[0] != "primary" {
		t.Errorf("want a single attempt on the primary, got %v", calls)
	}
}

func TestCall_NonFailureKeepsBreakerClosed(t *testing.T) {
	t.Parallel()
	fg := newGroup()
	for range 3 {
		_, err := Call(fg, func(string) (string, error) { return "", errClient })
		if !errors.Is(err, errClient) {
			t.Fatalf("want the client error, got %v", err)
		}
	}
	if st := fg.States()[0].State; st != StateClosed {
		t.Errorf("want primary closed after client errors, got %s", st)
	}
}

func TestCall_Empty(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup[string](CircuitBreakerConfig{})
	if _, err := Call(fg, func(string) (string, error) { return "x", nil }); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestCall_OpenBreakerMovesLaterCalls(t *testing.T) {
	t.Parallel()
	fg := newGroup()
	var calls []string
	failPrimary := func(v string) (string, error) {
		calls = append(calls, v)
		if v == "primary" {
			return "", errTest
		}
		return v, nil
	}
	for range 2 {
		if _, err := Call(fg, failPrimary); !errors.Is(err, errTest) {
			t.Fatalf("want errTest while the primary is closed, got %v", err)
		}
	}
	if len(calls) != 2 || calls[1] != "primary" {
		t.Fatalf("want both failing calls on the primary, got %v", calls)
	}

	states := fg.States()
	if states[0].Name != "primary" || states[0].State != StateOpen || states[1].State != StateClosed {
		t.Fatalf("want primary open and secondary closed, got %+v", states)
	}

	calls = nil
	got, err := Call(fg, failPrimary)
	if err != nil || got != "secondary" {
		t.Fatalf("want secondary, got %q, %v", got, err)
	}
	if len(calls) != 1 {
		t.Errorf("want the open primary skipped, got %v", calls)
	}

	var seen []string
	fg.Each(func(name, _ string) bool {
		seen = append(seen, name)
		return true
	})
	if len(seen) != 1 || seen[0] != "secondary" {
		t.Errorf("want Each to skip open members, got %v", seen)
	}
}

func TestCall_AllOpen(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup[string](CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	fg.Add("a", "a")
	fg.Add("b", "b")
	for range 2 {
		_, _ = Call(fg, func(string) (string, error) { return "", errTest })
	}

	called := false
	_, err := Call(fg, func(string) (string, error) {
		called = true
		return "x", nil
	})
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("want ErrUnavailable and ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("want no member called while every breaker is open")
	}
}

func TestEach_StopsEarly(t *testing.T) {
	t.Parallel()
	var seen []string
	newGroup().Each(func(name, _ string) bool {
		seen = append(seen, name)
		return false
	})
	if len(seen) != 1 {
		t.Errorf("want Each to stop after false, got %v", seen)
	}
}
