// Package backend defines the contract between aura and the remote research
// backend. The backend is consumed purely as a request/response service:
//
//	POST /chat  {message, session_id?}  ->  {session_id, response, data?}
//	POST /reset {message, session_id}   ->  {status}
//
// Any transport failure or non-success status is a send failure; callers
// treat every error from [Client.Send] the same way.
package backend

import (
	"context"
	"fmt"

	"github.com/MrWong99/aura/pkg/chat"
)

// Request is the body of a chat exchange. SessionID is omitted from the wire
// form when empty, which asks the backend to start a new session.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Response is the backend's answer to a [Request].
type Response struct {
	// SessionID identifies the backend session the exchange belongs to. It
	// replaces any identifier the client held before.
	SessionID string `json:"session_id"`

	// Response is the Markdown answer text.
	Response string `json:"response"`

	// Data carries structured annotations. Nil when absent or null.
	Data *chat.Payload `json:"data,omitempty"`
}

// Client performs chat exchanges. Implementations must be safe for
// concurrent use; a new call never cancels one already in flight.
type Client interface {
	// Send performs exactly one exchange. It does not retry.
	Send(ctx context.Context, req Request) (*Response, error)
}

// Resetter is implemented by clients that can drop a backend session.
type Resetter interface {
	Reset(ctx context.Context, sessionID string) error
}

// StatusError reports a non-success HTTP status from the backend.
type StatusError struct {
	StatusCode int
}

// Error returns "Server error: <code>", the text shown to the user inside the
// synthesized failure message.
func (e *StatusError) Error() string {
	return fmt.Sprintf("Server error: %d", e.StatusCode)
}
