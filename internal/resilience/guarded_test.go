package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/aura/pkg/backend"
	"github.com/MrWong99/aura/pkg/backend/mock"
)

func TestIsBackendFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{err: errors.New("dial tcp: connection refused"), want: true},
		{err: &backend.StatusError{StatusCode: 502}, want: true},
		{err: fmt.Errorf("wrapped: %w", &backend.StatusError{StatusCode: 500}), want: true},
		{err: &backend.StatusError{StatusCode: 422}, want: false},
		{err: context.Canceled, want: false},
	}
	for _, tc := range tests {
		if got := IsBackendFailure(tc.err); got != tc.want {
			t.Errorf("IsBackendFailure(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestGuardedClient_OpensOnServerErrors(t *testing.T) {
	t.Parallel()

	inner := &mock.Client{SendErr: &backend.StatusError{StatusCode: 503}}
	g := NewGuardedClient(inner, CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	ctx := context.Background()

	for range 2 {
		_, err := g.Send(ctx, backend.Request{Message: "hi"})
		var se *backend.StatusError
		if !errors.As(err, &se) {
			t.Fatalf("want StatusError passed through, got %v", err)
		}
	}

	_, err := g.Send(ctx, backend.Request{Message: "hi"})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("want ErrCircuitOpen, got %v", err)
	}
	if n := inner.SendCallCount(); n != 2 {
		t.Fatalf("want the open breaker to skip the backend, got %d calls", n)
	}
	if g.Breaker().State() != StateOpen {
		t.Fatalf("state = %v, want open", g.Breaker().State())
	}
}

func TestGuardedClient_PassesSuccess(t *testing.T) {
	t.Parallel()

	inner := &mock.Client{SendResult: &backend.Response{SessionID: "s", Response: "ok"}}
	g := NewGuardedClient(inner, CircuitBreakerConfig{})
	resp, err := g.Send(context.Background(), backend.Request{Message: "hi"})
	if err != nil || resp.Response != "ok" {
		t.Fatalf("want ok response, got %+v, %v", resp, err)
	}

	if err := g.Reset(context.Background(), "s"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(inner.ResetCalls) != 1 || inner.ResetCalls[0] != "s" {
		t.Fatalf("want reset forwarded, got %v", inner.ResetCalls)
	}
}
