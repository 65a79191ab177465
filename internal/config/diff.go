package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only log_level and speech.preferred_voices can be applied live; every other
// changed section is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	VoicesChanged bool
	NewVoices     []string

	// RestartRequired names the changed sections that only take effect on
	// the next start, in schema order.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.VoicesChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	if !slices.Equal(old.Speech.PreferredVoices, new.Speech.PreferredVoices) {
		d.VoicesChanged = true
		d.NewVoices = slices.Clone(new.Speech.PreferredVoices)
	}

	if backendChanged(old.Backend, new.Backend) {
		d.RestartRequired = append(d.RestartRequired, "backend")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if speechChanged(old.Speech, new.Speech) {
		d.RestartRequired = append(d.RestartRequired, "speech")
	}
	if quickFactsChanged(old.QuickFacts, new.QuickFacts) {
		d.RestartRequired = append(d.RestartRequired, "quick_facts")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	return d
}

func backendChanged(old, new BackendConfig) bool {
	return old.BaseURL != new.BaseURL || old.Timeout != new.Timeout ||
		old.CircuitBreaker != new.CircuitBreaker || !slices.Equal(old.FallbackURLs, new.FallbackURLs)
}

// speechChanged ignores preferred_voices, which is reported separately.
func speechChanged(old, new SpeechConfig) bool {
	if old.AutoplayEnabled() != new.AutoplayEnabled() {
		return true
	}
	return old.Engine != new.Engine || old.APIKey != new.APIKey || old.Model != new.Model ||
		old.VoiceID != new.VoiceID || old.Output != new.Output || old.SettleDelay != new.SettleDelay ||
		old.Rate != new.Rate || old.Pitch != new.Pitch
}

func quickFactsChanged(old, new QuickFactsConfig) bool {
	return old.RotateEvery != new.RotateEvery || old.ProgressEvery != new.ProgressEvery ||
		old.Count != new.Count || !slices.Equal(old.Facts, new.Facts)
}
