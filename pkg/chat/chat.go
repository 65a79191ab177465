// Package chat defines the conversation types shared by every aura package.
//
// A transcript is an ordered, append-only slice of [Message] values. Bot
// messages may carry a [Payload] of structured annotations that drive the
// insight panel; the payload is never persisted with the transcript.
package chat

import (
	"encoding/json"
	"fmt"
)

// Sender identifies who authored a [Message].
type Sender string

const (
	// SenderUser marks a message typed (or dictated) by the local user.
	SenderUser Sender = "user"

	// SenderBot marks a message produced by the research backend, including
	// synthesized failure messages.
	SenderBot Sender = "bot"
)

// IsValid reports whether s is a recognised sender.
func (s Sender) IsValid() bool {
	return s == SenderUser || s == SenderBot
}

// UnmarshalJSON rejects any sender other than "user" or "bot" so that a
// corrupted transcript fails to decode as a whole.
func (s *Sender) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("chat: sender: %w", err)
	}
	if !Sender(raw).IsValid() {
		return fmt.Errorf("chat: unknown sender %q", raw)
	}
	*s = Sender(raw)
	return nil
}

// Message is one entry of the transcript.
type Message struct {
	// Sender is the author of the message.
	Sender Sender

	// Text is the raw message text. Bot text is Markdown.
	Text string

	// Data holds the structured annotations returned with a bot response.
	// Nil for user messages, failure messages, and replayed history.
	Data *Payload
}

// IsBot reports whether m was authored by the backend.
func (m Message) IsBot() bool { return m.Sender == SenderBot }

// Scalar is a JSON string, number or boolean kept in its textual form. The
// backend is loose about cell and label types ("2023" vs 2023), so payload
// fields that may be either are decoded into a Scalar.
type Scalar string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	switch b[0] {
	case '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	case '{', '[':
		return fmt.Errorf("chat: expected scalar, got %s", kindOf(b[0]))
	}
	*s = Scalar(b)
	return nil
}

// String returns the textual form.
func (s Scalar) String() string { return string(s) }

func kindOf(c byte) string {
	if c == '{' {
		return "object"
	}
	return "array"
}
