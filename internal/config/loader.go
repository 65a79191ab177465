package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultBackendURL     = "http://localhost:8000"
	DefaultBackendTimeout = 60 * time.Second
	DefaultMaxFailures    = 5
	DefaultResetTimeout   = 30 * time.Second
	DefaultStoragePath    = "aura.db"
	DefaultNamespace      = "aura"
	DefaultSettleDelay    = 100 * time.Millisecond
	DefaultRotateEvery    = 4 * time.Second
	DefaultProgressEvery  = 100 * time.Millisecond
	DefaultQuickFactCount = 3
	DefaultServiceName    = "aura"
	DefaultDelivery       = 1.0
)

// DefaultPreferredVoices is used when speech.preferred_voices is empty.
var DefaultPreferredVoices = []string{"Google US English", "Samantha", "Microsoft David"}

// Environment variables consulted by [ApplyEnv].
const (
	EnvBackendURL    = "AURA_BACKEND_URL"
	EnvFallbackURLs  = "AURA_BACKEND_FALLBACK_URLS"
	EnvStorageDriver = "AURA_STORAGE_DRIVER"
	EnvStoragePath   = "AURA_STORAGE_PATH"
	EnvPostgresDSN   = "AURA_POSTGRES_DSN"
	EnvElevenLabsKey = "AURA_ELEVENLABS_API_KEY"
	EnvLogLevel      = "AURA_LOG_LEVEL"
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated [Config]
// with defaults applied. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it and fills in
// defaults. An empty document yields [Default].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyEnv overrides cfg from the environment. lookup is usually
// [os.LookupEnv]. Call [Validate] afterwards; env values are not checked here.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvBackendURL, &cfg.Backend.BaseURL)
	set(EnvStoragePath, &cfg.Storage.Path)
	set(EnvPostgresDSN, &cfg.Storage.PostgresDSN)
	set(EnvElevenLabsKey, &cfg.Speech.APIKey)

	var driver, level, fallbacks string
	set(EnvStorageDriver, &driver)
	set(EnvLogLevel, &level)
	set(EnvFallbackURLs, &fallbacks)
	if fallbacks != "" {
		cfg.Backend.FallbackURLs = nil
		for _, u := range strings.Split(fallbacks, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.Backend.FallbackURLs = append(cfg.Backend.FallbackURLs, u)
			}
		}
	}
	if driver != "" {
		cfg.Storage.Driver = StorageDriver(strings.ToLower(driver))
	}
	if level != "" {
		cfg.LogLevel = LogLevel(strings.ToLower(level))
	}
}

// ApplyDefaults fills every unset field of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}

	b := &cfg.Backend
	if b.BaseURL == "" {
		b.BaseURL = DefaultBackendURL
	}
	if b.Timeout == 0 {
		b.Timeout = DefaultBackendTimeout
	}
	if b.CircuitBreaker.MaxFailures == 0 {
		b.CircuitBreaker.MaxFailures = DefaultMaxFailures
	}
	if b.CircuitBreaker.ResetTimeout == 0 {
		b.CircuitBreaker.ResetTimeout = DefaultResetTimeout
	}

	s := &cfg.Storage
	if s.Driver == "" {
		s.Driver = StorageSQLite
	}
	if s.Path == "" {
		s.Path = DefaultStoragePath
	}
	if s.Namespace == "" {
		s.Namespace = DefaultNamespace
	}

	sp := &cfg.Speech
	if sp.Engine == "" {
		sp.Engine = SpeechNone
	}
	if len(sp.PreferredVoices) == 0 {
		sp.PreferredVoices = append([]string(nil), DefaultPreferredVoices...)
	}
	if sp.SettleDelay == 0 {
		sp.SettleDelay = DefaultSettleDelay
	}
	if sp.Rate == 0 {
		sp.Rate = DefaultDelivery
	}
	if sp.Pitch == 0 {
		sp.Pitch = DefaultDelivery
	}

	q := &cfg.QuickFacts
	if q.RotateEvery == 0 {
		q.RotateEvery = DefaultRotateEvery
	}
	if q.ProgressEvery == 0 {
		q.ProgressEvery = DefaultProgressEvery
	}
	if q.Count == 0 {
		q.Count = DefaultQuickFactCount
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values. Unset fields
// are accepted. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Backend
	if cfg.Backend.BaseURL != "" && !isHTTPURL(cfg.Backend.BaseURL) {
		errs = append(errs, fmt.Errorf("backend.base_url %q must be an absolute http or https URL", cfg.Backend.BaseURL))
	}
	for i, u := range cfg.Backend.FallbackURLs {
		if !isHTTPURL(u) {
			errs = append(errs, fmt.Errorf("backend.fallback_urls[%d] %q must be an absolute http or https URL", i, u))
		}
	}
	if cfg.Backend.Timeout < 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must not be negative, got %s", cfg.Backend.Timeout))
	}
	if cfg.Backend.CircuitBreaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("backend.circuit_breaker.max_failures must not be negative, got %d", cfg.Backend.CircuitBreaker.MaxFailures))
	}
	if cfg.Backend.CircuitBreaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("backend.circuit_breaker.reset_timeout must not be negative, got %s", cfg.Backend.CircuitBreaker.ResetTimeout))
	}

	// Storage
	if cfg.Storage.Driver != "" && !cfg.Storage.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: sqlite, postgres, memory", cfg.Storage.Driver))
	}
	if cfg.Storage.Driver == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.driver is postgres"))
	}
	if strings.ContainsAny(cfg.Storage.Namespace, " \t\n") {
		errs = append(errs, fmt.Errorf("storage.namespace %q must not contain whitespace", cfg.Storage.Namespace))
	}

	// Speech
	sp := cfg.Speech
	if sp.Engine != "" && !sp.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("speech.engine %q is invalid; valid values: none, elevenlabs", sp.Engine))
	}
	if sp.Engine != SpeechElevenLabs && sp.Engine != "" && sp.Output != "" {
		slog.Warn("speech.output is ignored without an audio engine", "engine", sp.Engine)
	}
	if sp.Rate != 0 && (sp.Rate < 0.1 || sp.Rate > 10) {
		errs = append(errs, fmt.Errorf("speech.rate %v is out of range [0.1, 10]", sp.Rate))
	}
	if sp.Pitch < 0 || sp.Pitch > 2 {
		errs = append(errs, fmt.Errorf("speech.pitch %v is out of range [0, 2]", sp.Pitch))
	}
	if sp.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("speech.settle_delay must not be negative, got %s", sp.SettleDelay))
	}

	// Quick facts
	q := cfg.QuickFacts
	if q.RotateEvery < 0 || q.ProgressEvery < 0 {
		errs = append(errs, errors.New("quick_facts periods must not be negative"))
	}
	if q.RotateEvery > 0 && q.ProgressEvery > q.RotateEvery {
		errs = append(errs, fmt.Errorf("quick_facts.progress_every (%s) must not exceed rotate_every (%s)", q.ProgressEvery, q.RotateEvery))
	}
	if q.Count < 0 {
		errs = append(errs, fmt.Errorf("quick_facts.count must not be negative, got %d", q.Count))
	}
	if len(q.Facts) > 0 && q.Count > len(q.Facts) {
		slog.Warn("quick_facts.count exceeds the number of facts; all facts will be shown", "count", q.Count, "facts", len(q.Facts))
	}

	return errors.Join(errs...)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
