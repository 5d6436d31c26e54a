package config

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Known backend names per collaborator kind, checked by [Validate].
var validProviderNames = map[string][]string{
	"stt": {"openai", "whisper"},
	"tts": {"openai", "elevenlabs", "unrealspeech"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp"},
}

// Load reads the YAML configuration file at path, applies defaults, and
// returns a validated [Config]. A missing file yields the pure defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: stat %q: %w", path, err)
	}
	if !exists {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg, nil
	}

	f, err := fs.Open(path)
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

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.channels must be positive, got %d", cfg.Audio.Channels))
	}
	if cfg.Audio.Threshold < 0 {
		errs = append(errs, fmt.Errorf("audio.threshold must not be negative, got %g", cfg.Audio.Threshold))
	}
	if cfg.Audio.MinDuration > cfg.Audio.MaxDuration {
		errs = append(errs, fmt.Errorf("audio.min_duration %v exceeds audio.max_duration %v",
			cfg.Audio.MinDuration, cfg.Audio.MaxDuration))
	}

	for kind, name := range map[string]string{
		"stt": cfg.Providers.STT.Name,
		"tts": cfg.Providers.TTS.Name,
		"llm": cfg.Providers.LLM.Name,
	} {
		if !slices.Contains(validProviderNames[kind], name) {
			errs = append(errs, fmt.Errorf("providers.%s.name %q is unknown; valid values: %v",
				kind, name, validProviderNames[kind]))
		}
	}

	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.Model == "" {
		errs = append(errs, errors.New("providers.stt.model (model file path) is required for the whisper backend"))
	}
	if cfg.Providers.TTS.Name == "elevenlabs" && cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key is required for the elevenlabs backend"))
	}
	if cfg.Providers.TTS.Name == "unrealspeech" && cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key is required for the unrealspeech backend"))
	}

	return errors.Join(errs...)
}
