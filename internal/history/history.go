// Package history persists the session identifier and the chat transcript
// on top of a [kv.Store].
//
// The transcript is stored lossily: only sender and text survive, the
// structured payload is always written as null. Loading never fails on bad
// data; a transcript that does not decode is logged and treated as empty.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/pkg/chat"
	"github.com/MrWong99/aura/pkg/kv"
)

// DefaultNamespace prefixes the storage keys, giving "aura_session_id" and
// "aura_chat_history".
const DefaultNamespace = "aura"

// Store is the persistent store adapter. It is safe for concurrent use to the
// extent the underlying [kv.Store] is.
type Store struct {
	kv         kv.Store
	sessionKey string
	historyKey string
	metrics    *observe.Metrics
}

// Option is a functional option for [New].
type Option func(*Store)

// WithNamespace overrides [DefaultNamespace].
func WithNamespace(ns string) Option {
	return func(s *Store) {
		s.sessionKey = ns + "_session_id"
		s.historyKey = ns + "_chat_history"
	}
}

// WithMetrics sets the metrics receiving load failures. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New returns a Store over store.
func New(store kv.Store, opts ...Option) *Store {
	s := &Store{kv: store}
	WithNamespace(DefaultNamespace)(s)
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Keys returns the session and transcript keys in use.
func (s *Store) Keys() (session, transcript string) {
	return s.sessionKey, s.historyKey
}

// entry is the persisted form of a message. Data is always written as null
// and ignored on read.
type entry struct {
	Text   string          `json:"text"`
	Sender chat.Sender     `json:"sender"`
	Data   json.RawMessage `json:"data"`
}

// SaveSession stores the session identifier.
func (s *Store) SaveSession(ctx context.Context, id string) error {
	if err := s.kv.Set(ctx, s.sessionKey, id); err != nil {
		return fmt.Errorf("history: save session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session identifier, or "" when there is none.
func (s *Store) LoadSession(ctx context.Context) (string, error) {
	id, ok, err := s.kv.Get(ctx, s.sessionKey)
	if err != nil {
		return "", fmt.Errorf("history: load session: %w", err)
	}
	if !ok {
		return "", nil
	}
	return id, nil
}

// SaveTranscript replaces the stored transcript with msgs. Structured data is
// dropped.
func (s *Store) SaveTranscript(ctx context.Context, msgs []chat.Message) error {
	entries := make([]entry, len(msgs))
	for i, m := range msgs {
		entries[i] = entry{Text: m.Text, Sender: m.Sender}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("history: encode transcript: %w", err)
	}
	if err := s.kv.Set(ctx, s.historyKey, string(b)); err != nil {
		return fmt.Errorf("history: save transcript: %w", err)
	}
	return nil
}

// LoadTranscript returns the stored transcript in order. It returns nil when
// nothing is stored or when the stored value does not decode; the latter is
// logged and counted but not returned as an error. Only storage failures are
// reported.
func (s *Store) LoadTranscript(ctx context.Context) ([]chat.Message, error) {
	raw, ok, err := s.kv.Get(ctx, s.historyKey)
	if err != nil {
		return nil, fmt.Errorf("history: load transcript: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var entries []entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		observe.Logger(ctx).Warn("history: discarding unreadable transcript",
			"key", s.historyKey, "err", err)
		s.metrics.HistoryLoadFailures.Add(ctx, 1)
		return nil, nil
	}

	msgs := make([]chat.Message, len(entries))
	for i, e := range entries {
		msgs[i] = chat.Message{Sender: e.Sender, Text: e.Text}
	}
	return msgs, nil
}

// Clear removes both the session identifier and the transcript.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.sessionKey, s.historyKey); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	slog.Debug("history: cleared", "session_key", s.sessionKey, "transcript_key", s.historyKey)
	return nil
}
