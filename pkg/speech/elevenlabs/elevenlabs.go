// Package elevenlabs provides a [speech.Engine] backed by the ElevenLabs
// streaming WebSocket API. Synthesised PCM is written to an [io.Writer] sink
// (a file, a pipe into an audio player, or [io.Discard]).
//
// The engine keeps a single playback slot. Speak cancels the previous
// utterance, whose goroutine then reports [speech.ErrInterrupted]. Pause
// holds back further audio until Resume; the stream itself keeps buffering.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/MrWong99/aura/pkg/speech"
)

// Compile-time interface checks.
var (
	_ speech.Engine      = (*Engine)(nil)
	_ speech.VoiceLoader = (*Engine)(nil)
)

const (
	defaultWSBase    = "wss://api.elevenlabs.io"
	defaultAPIBase   = "https://api.elevenlabs.io"
	streamPathFmt    = "/v1/text-to-speech/%s/stream-input"
	voicesPath       = "/v1/voices"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"

	// ElevenLabs accepts speed in this range only.
	minSpeed = 0.7
	maxSpeed = 1.2
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000").
func WithOutputFormat(format string) Option {
	return func(e *Engine) { e.outputFormat = format }
}

// WithDefaultVoice sets the voice used when an utterance names none.
func WithDefaultVoice(voiceID string) Option {
	return func(e *Engine) { e.defaultVoice = voiceID }
}

// WithSink sets where PCM audio is written. Default: [io.Discard].
func WithSink(w io.Writer) Option {
	return func(e *Engine) { e.sink = w }
}

// WithHTTPClient sets the client used for the REST API.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithBaseURLs overrides the WebSocket and REST roots, for tests or proxies.
func WithBaseURLs(wsBase, apiBase string) Option {
	return func(e *Engine) {
		e.wsBase = strings.TrimRight(wsBase, "/")
		e.apiBase = strings.TrimRight(apiBase, "/")
	}
}

// Engine implements [speech.Engine] on ElevenLabs.
type Engine struct {
	apiKey       string
	model        string
	outputFormat string
	defaultVoice string
	wsBase       string
	apiBase      string
	httpClient   *http.Client

	sinkMu sync.Mutex
	sink   io.Writer

	mu     sync.Mutex
	voices []speech.Voice
	active *stream

	wg sync.WaitGroup
}

// New creates a new Engine. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	e := &Engine{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		wsBase:       defaultWSBase,
		apiBase:      defaultAPIBase,
		httpClient:   &http.Client{},
		sink:         io.Discard,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// ---- WebSocket message types ----

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// initMessage opens the stream: authentication and output configuration.
type initMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// textMessage carries text; an empty Text flushes and ends the input.
type textMessage struct {
	Text string `json:"text"`
}

// audioMessage is one message received from ElevenLabs.
type audioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ---- playback slot ----

// stream is one in-flight utterance.
type stream struct {
	u      *speech.Utterance
	cancel context.CancelFunc
	gate   *gate
}

// gate blocks audio delivery while paused.
type gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func (g *gate) pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return false
	}
	g.paused = true
	g.resume = make(chan struct{})
	return true
}

func (g *gate) unpause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resume)
	return true
}

func (g *gate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	ch := g.resume
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Supported implements [speech.Engine].
func (e *Engine) Supported() bool { return true }

// Voices implements [speech.Engine]. It returns the voices cached by the last
// successful [Engine.LoadVoices].
func (e *Engine) Voices() []speech.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Voice(nil), e.voices...)
}

// Speak implements [speech.Engine].
func (e *Engine) Speak(u *speech.Utterance) error {
	voiceID := e.defaultVoice
	if u.Voice != nil && u.Voice.ID != "" {
		voiceID = u.Voice.ID
	}
	if voiceID == "" {
		return errors.New("elevenlabs: no voice selected and no default voice configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &stream{u: u, cancel: cancel, gate: &gate{}}

	e.mu.Lock()
	prev := e.active
	e.active = s
	e.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.run(ctx, s, voiceID)
	}()
	return nil
}

// Pause implements [speech.Engine].
func (e *Engine) Pause() {
	s := e.current()
	if s != nil && s.gate.pause() {
		s.u.Emit(speech.EventPause, nil)
	}
}

// Resume implements [speech.Engine].
func (e *Engine) Resume() {
	s := e.current()
	if s != nil && s.gate.unpause() {
		s.u.Emit(speech.EventResume, nil)
	}
}

// Cancel implements [speech.Engine].
func (e *Engine) Cancel() {
	e.mu.Lock()
	s := e.active
	e.active = nil
	e.mu.Unlock()
	if s != nil {
		s.cancel()
	}
}

// Speaking implements [speech.Engine].
func (e *Engine) Speaking() bool { return e.current() != nil }

// Paused implements [speech.Engine].
func (e *Engine) Paused() bool {
	s := e.current()
	return s != nil && s.gate.isPaused()
}

// Close cancels any active utterance and waits for its goroutine to exit.
func (e *Engine) Close() error {
	e.Cancel()
	e.wg.Wait()
	return nil
}

func (e *Engine) current() *stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// release clears the slot if s still owns it.
func (e *Engine) release(s *stream) {
	e.mu.Lock()
	if e.active == s {
		e.active = nil
	}
	e.mu.Unlock()
}

// run streams one utterance and reports its lifecycle.
func (e *Engine) run(ctx context.Context, s *stream, voiceID string) {
	err := e.stream(ctx, s, voiceID)
	e.release(s)

	switch {
	case err == nil:
		s.u.Emit(speech.EventEnd, nil)
	case ctx.Err() != nil:
		s.u.Emit(speech.EventError, speech.ErrInterrupted)
	default:
		slog.Warn("elevenlabs: synthesis failed", "utterance", s.u.ID, "err", err)
		s.u.Emit(speech.EventError, err)
	}
}

func (e *Engine) stream(ctx context.Context, s *stream, voiceID string) error {
	conn, _, err := websocket.Dial(ctx, e.streamURL(voiceID), nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()

	open := initMessage{
		Text: " ", // the API requires a non-empty first text value
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           clampSpeed(s.u.Rate),
		},
		XiAPIKey:     e.apiKey,
		OutputFormat: e.outputFormat,
	}
	for _, msg := range []any{open, textMessage{Text: s.u.Text + " "}, textMessage{Text: ""}} {
		b, _ := json.Marshal(msg)
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			return fmt.Errorf("elevenlabs: send: %w", err)
		}
	}

	s.u.Emit(speech.EventStart, nil)

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("elevenlabs: read: %w", err)
		}
		var msg audioMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return fmt.Errorf("elevenlabs: %s", msg.Error)
		}
		if msg.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				continue
			}
			if err := s.gate.wait(ctx); err != nil {
				return err
			}
			if err := e.write(pcm); err != nil {
				return fmt.Errorf("elevenlabs: sink: %w", err)
			}
		}
		if msg.IsFinal {
			conn.Close(websocket.StatusNormalClosure, "done")
			return nil
		}
	}
}

func (e *Engine) write(pcm []byte) error {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	_, err := e.sink.Write(pcm)
	return err
}

func (e *Engine) streamURL(voiceID string) string {
	q := url.Values{"model_id": {e.model}}
	return e.wsBase + fmt.Sprintf(streamPathFmt, url.PathEscape(voiceID)) + "?" + q.Encode()
}

func clampSpeed(rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return min(max(rate, minSpeed), maxSpeed)
}

// ---- voices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// LoadVoices implements [speech.VoiceLoader]. It fetches the voices available
// to the API key and caches them for [Engine.Voices].
func (e *Engine) LoadVoices(ctx context.Context) ([]speech.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiBase+voicesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	voices, err := parseVoices(resp.Body)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
	return append([]speech.Voice(nil), voices...), nil
}

func parseVoices(r io.Reader) ([]speech.Voice, error) {
	var vr voicesResponse
	if err := json.NewDecoder(r).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	voices := make([]speech.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, speech.Voice{
			ID:   v.VoiceID,
			Name: v.Name,
			Lang: v.Labels["language"],
		})
	}
	return voices, nil
}
