package httpclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/aura/pkg/backend"
	"github.com/MrWong99/aura/pkg/backend/httpclient"
)

func newClient(t *testing.T, h http.HandlerFunc, opts ...httpclient.Option) *httpclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := httpclient.New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestSend_OmitsEmptySessionID(t *testing.T) {
	t.Parallel()

	var body map[string]any
	var requestID string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("want POST /chat, got %s %s", r.Method, r.URL.Path)
		}
		requestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"session_id":"new-1","response":"Hi there","data":null}`)
	})

	resp, err := c.Send(context.Background(), backend.Request{Message: "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, present := body["session_id"]; present {
		t.Errorf("want session_id omitted, got body %v", body)
	}
	if body["message"] != "hello" {
		t.Errorf("want message hello, got %v", body["message"])
	}
	if len(requestID) != 36 {
		t.Errorf("want a uuid X-Request-ID, got %q", requestID)
	}
	if resp.SessionID != "new-1" || resp.Response != "Hi there" || resp.Data != nil {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSend_DecodesPayload(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req backend.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.SessionID != "s-9" {
			t.Errorf("want session s-9 forwarded, got %q", req.SessionID)
		}
		_, _ = io.WriteString(w, `{
			"session_id": "s-9",
			"response": "## Acme",
			"data": {"company": "Acme", "competitors": ["Globex"], "sentiment": {"positive": 70}}
		}`)
	})

	resp, err := c.Send(context.Background(), backend.Request{Message: "acme", SessionID: "s-9"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Data == nil || resp.Data.Company != "Acme" || resp.Data.Sentiment["positive"] != 70 {
		t.Fatalf("payload not decoded: %+v", resp.Data)
	}
}

func TestSend_StatusError(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	})

	_, err := c.Send(context.Background(), backend.Request{Message: "x"})
	var se *backend.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want *backend.StatusError, got %T %v", err, err)
	}
	if se.Error() != "Server error: 500" {
		t.Fatalf("want %q, got %q", "Server error: 500", se.Error())
	}
}

func TestSend_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, httpclient.WithTimeout(50*time.Millisecond))
	defer close(release)

	if _, err := c.Send(context.Background(), backend.Request{Message: "slow"}); err == nil {
		t.Fatal("want timeout error")
	}
}

func TestSend_BadBody(t *testing.T) {
	t.Parallel()

	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>not json</html>`)
	})
	if _, err := c.Send(context.Background(), backend.Request{Message: "x"}); err == nil {
		t.Fatal("want decode error")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	var got backend.Request
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reset" {
			t.Errorf("want /reset, got %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"status":"reset"}`)
	})

	if err := c.Reset(context.Background(), "s-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got.SessionID != "s-1" {
		t.Fatalf("want session s-1, got %q", got.SessionID)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := httpclient.New(base); err == nil {
			t.Errorf("New(%q): want error", base)
		}
	}
}
