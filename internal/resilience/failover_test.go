package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/aura/pkg/backend"
	"github.com/MrWong99/aura/pkg/backend/mock"
)

type pingClient struct {
	*mock.Client
	err error
}

func (p pingClient) Ping(context.Context) error { return p.err }

func TestFailoverClient_SendIsSingleAttempt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	primary := &mock.Client{SendErr: &backend.StatusError{StatusCode: 502}}
	replica := &mock.Client{SendResult: &backend.Response{SessionID: "s-2", Response: "from replica"}}
	f := NewFailoverClient(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	f.Add("primary", primary)
	f.Add("replica", replica)

	_, err := f.Send(ctx, backend.Request{Message: "hi"})
	var se *backend.StatusError
	if !errors.As(err, &se) || se.StatusCode != 502 {
		t.Fatalf("want the primary's 502, got %v", err)
	}
	if strings.Contains(err.Error(), "temporarily unavailable") {
		t.Errorf("want a tried replica's failure reported as is, got %v", err)
	}
	if n := replica.SendCallCount(); n != 0 {
		t.Fatalf("want the failed send not repeated on the replica, got %d calls", n)
	}

	// The primary's breaker is open now, so the next send goes elsewhere.
	resp, err := f.Send(ctx, backend.Request{Message: "again"})
	if err != nil || resp.Response != "from replica" {
		t.Fatalf("want replica response, got %+v, %v", resp, err)
	}
	if n := primary.SendCallCount(); n != 1 {
		t.Errorf("want the open primary skipped, got %d calls", n)
	}
	if st := f.States(); st[0].State != StateOpen || st[1].State != StateClosed {
		t.Errorf("want primary open, replica closed, got %+v", st)
	}
}

func TestFailoverClient_ClientErrorDoesNotTrip(t *testing.T) {
	t.Parallel()
	primary := &mock.Client{SendErr: &backend.StatusError{StatusCode: 422}}
	replica := &mock.Client{}
	f := NewFailoverClient(CircuitBreakerConfig{MaxFailures: 1})
	f.Add("primary", primary)
	f.Add("replica", replica)

	for range 2 {
		_, err := f.Send(context.Background(), backend.Request{Message: "hi"})
		var se *backend.StatusError
		if !errors.As(err, &se) || se.StatusCode != 422 {
			t.Fatalf("want the 422 returned, got %v", err)
		}
	}
	if replica.SendCallCount() != 0 {
		t.Error("want the replica untouched")
	}
	if st := f.States()[0].State; st != StateClosed {
		t.Errorf("want primary closed, got %s", st)
	}
}

func TestFailoverClient_TransportErrorAfterSkippedReplica(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	refused := errors.New("dial tcp: connection refused")
	a := &mock.Client{SendErr: refused}
	b := &mock.Client{SendErr: refused}
	f := NewFailoverClient(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	f.Add("a", a)
	f.Add("b", b)

	_, _ = f.Send(ctx, backend.Request{Message: "trip a"})

	// a is skipped and b is tried: its own failure is what the caller sees.
	_, err := f.Send(ctx, backend.Request{Message: "hi"})
	if !errors.Is(err, refused) || errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("want b's transport error, got %v", err)
	}
	if strings.Contains(err.Error(), "temporarily unavailable") {
		t.Errorf("want no unavailable wording after an attempt, got %v", err)
	}
	if a.SendCallCount() != 1 || b.SendCallCount() != 1 {
		t.Errorf("want one call each, got a=%d b=%d", a.SendCallCount(), b.SendCallCount())
	}
}

func TestFailoverClient_AllOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dead := &mock.Client{SendErr: errors.New("connection refused")}
	f := NewFailoverClient(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	f.Add("only", dead)

	_, err := f.Send(ctx, backend.Request{Message: "hi"})
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("want the transport error as is, got %v", err)
	}
	_, err = f.Send(ctx, backend.Request{Message: "hi"})
	if !errors.Is(err, ErrCircuitOpen) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrCircuitOpen, got %v", err)
	}
	if !strings.Contains(err.Error(), "backend temporarily unavailable") {
		t.Errorf("want unavailable wording, got %v", err)
	}
	if n := dead.SendCallCount(); n != 1 {
		t.Errorf("want no call while open, got %d", n)
	}
	if err := f.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("want Ping to fail with every breaker open, got %v", err)
	}
}

func TestFailoverClient_ResetReachesEveryReplica(t *testing.T) {
	t.Parallel()
	a := &mock.Client{ResetErr: errors.New("gone")}
	b := &mock.Client{}
	f := NewFailoverClient(CircuitBreakerConfig{})
	f.Add("a", a)
	f.Add("b", b)

	err := f.Reset(context.Background(), "s-1")
	if err == nil {
		t.Fatal("want the replica error reported")
	}
	if len(a.ResetCalls) != 1 || len(b.ResetCalls) != 1 || b.ResetCalls[0] != "s-1" {
		t.Errorf("want both replicas reset, got %v and %v", a.ResetCalls, b.ResetCalls)
	}
}

func TestFailoverClient_Ping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	down := errors.New("down")

	f := NewFailoverClient(CircuitBreakerConfig{})
	f.Add("a", pingClient{Client: &mock.Client{}, err: down})
	f.Add("b", pingClient{Client: &mock.Client{}})
	if err := f.Ping(ctx); err != nil {
		t.Errorf("want ok when one replica answers, got %v", err)
	}

	f = NewFailoverClient(CircuitBreakerConfig{})
	f.Add("a", pingClient{Client: &mock.Client{}, err: down})
	if err := f.Ping(ctx); !errors.Is(err, down) || !errors.Is(err, ErrUnavailable) {
		t.Errorf("want replica error, got %v", err)
	}
}

func TestGuardedClient_Ping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	down := errors.New("down")

	g := NewGuardedClient(pingClient{Client: &mock.Client{}, err: down}, CircuitBreakerConfig{})
	if err := g.Ping(ctx); !errors.Is(err, down) {
		t.Errorf("want ping forwarded, got %v", err)
	}

	inner := &mock.Client{SendErr: errors.New("refused")}
	g = NewGuardedClient(inner, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	if err := g.Ping(ctx); err != nil {
		t.Errorf("want ok for a client that cannot ping, got %v", err)
	}
	_, _ = g.Send(ctx, backend.Request{Message: "hi"})
	if err := g.Ping(ctx); err == nil {
		t.Error("want Ping to fail while the breaker is open")
	}
}
