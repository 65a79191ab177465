// Package mock provides a test double for [backend.Client].
//
// Example:
//
//	c := &mock.Client{
//	    SendResult: &backend.Response{SessionID: "s1", Response: "Hello"},
//	}
//	resp, _ := c.Send(ctx, backend.Request{Message: "hi"})
//	if c.SendCallCount() != 1 { … }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/aura/pkg/backend"
)

// Compile-time interface checks.
var (
	_ backend.Client   = (*Client)(nil)
	_ backend.Resetter = (*Client)(nil)
)

// Client is a mock implementation of [backend.Client] and [backend.Resetter].
type Client struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SendFunc, when set, computes the result of Send and takes precedence
	// over SendResult and SendErr. It is called without the lock held, so it
	// may block to simulate a slow backend.
	SendFunc func(ctx context.Context, req backend.Request) (*backend.Response, error)

	// SendResult is returned by Send when SendErr is nil.
	SendResult *backend.Response

	// SendErr, if non-nil, is returned by Send.
	SendErr error

	// ResetErr, if non-nil, is returned by Reset.
	ResetErr error

	// --- Call records ---

	// SendCalls records the request of every Send call in order.
	SendCalls []backend.Request

	// ResetCalls records the session id of every Reset call in order.
	ResetCalls []string
}

// Send records the call and returns the configured result.
func (c *Client) Send(ctx context.Context, req backend.Request) (*backend.Response, error) {
	c.mu.Lock()
	c.SendCalls = append(c.SendCalls, req)
	fn, result, err := c.SendFunc, c.SendResult, c.SendErr
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &backend.Response{SessionID: req.SessionID}, nil
	}
	out := *result
	return &out, nil
}

// Reset records the call and returns ResetErr.
func (c *Client) Reset(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResetCalls = append(c.ResetCalls, sessionID)
	return c.ResetErr
}

// SendCallCount returns how many times Send was called.
func (c *Client) SendCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.SendCalls)
}

// LastSend returns the most recent Send request, or the zero value.
func (c *Client) LastSend() backend.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.SendCalls) == 0 {
		return backend.Request{}
	}
	return c.SendCalls[len(c.SendCalls)-1]
}
