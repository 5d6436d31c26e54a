// Package config provides the configuration schema and loader for the Squawk
// voice dispatch loop.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, shared by the receiver and
// transmitter processes. It is typically loaded from a YAML file using
// [Load] or [LoadFromReader].
type Config struct {
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the listen address for the /healthz, /readyz, and
	// /metrics HTTP endpoints. Empty disables them.
	MetricsAddr string `yaml:"metrics_addr"`

	Audio     AudioConfig     `yaml:"audio"`
	Paths     PathsConfig     `yaml:"paths"`
	Providers ProvidersConfig `yaml:"providers"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// AudioConfig holds capture and segmentation settings for the receiver.
type AudioConfig struct {
	// SampleRate is the capture rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the capture channel count.
	Channels int `yaml:"channels"`

	// FramesPerBuffer is the capture callback granularity in samples.
	FramesPerBuffer int `yaml:"frames_per_buffer"`

	// Threshold is the RMS energy above which a frame counts as speech.
	Threshold float64 `yaml:"threshold"`

	// SilenceDuration is the trailing silence that ends a recording.
	SilenceDuration time.Duration `yaml:"silence_duration"`

	// MinDuration is the minimum utterance length.
	MinDuration time.Duration `yaml:"min_duration"`

	// MaxDuration force-stops a recording.
	MaxDuration time.Duration `yaml:"max_duration"`

	// PreRoll is the audio retained from before speech onset.
	PreRoll time.Duration `yaml:"pre_roll"`

	// QueueSize bounds the utterance hand-off queue.
	QueueSize int `yaml:"queue_size"`
}

// PathsConfig holds the filesystem locations both processes share.
type PathsConfig struct {
	// DropDir is where transcript records are exchanged.
	DropDir string `yaml:"drop_dir"`

	// LockFile is the half-duplex playback lock.
	LockFile string `yaml:"lock_file"`

	// ProfilesDir holds persona profile directories.
	ProfilesDir string `yaml:"profiles_dir"`

	// ConversationLog is the flat-file exchange log. Empty disables it.
	ConversationLog string `yaml:"conversation_log"`

	// WorkDir holds synthesized audio artifacts.
	WorkDir string `yaml:"work_dir"`

	// DebugDir holds debug recordings.
	DebugDir string `yaml:"debug_dir"`

	// InventoryFile is the stocked-item catalog for the Inventory tool.
	// Empty disables the tool.
	InventoryFile string `yaml:"inventory_file"`
}

// ProvidersConfig selects and configures the external collaborators.
type ProvidersConfig struct {
	STT STTConfig `yaml:"stt"`
	TTS TTSConfig `yaml:"tts"`
	LLM LLMConfig `yaml:"llm"`
}

// STTConfig selects the transcription backend.
type STTConfig struct {
	// Name is one of "openai", "whisper".
	Name string `yaml:"name"`

	// Model is the backend model identifier, or for "whisper" the model
	// file path.
	Model string `yaml:"model"`

	// Language pins the recognition language. Empty auto-detects.
	Language string `yaml:"language"`

	// BaseURL points "openai" at a compatible endpoint.
	BaseURL string `yaml:"base_url"`
}

// TTSConfig selects the synthesis backend.
type TTSConfig struct {
	// Name is one of "openai", "elevenlabs", "unrealspeech".
	Name string `yaml:"name"`

	// Model is the backend model identifier.
	Model string `yaml:"model"`

	// APIKey authenticates "elevenlabs" and "unrealspeech".
	APIKey string `yaml:"api_key"`
}

// LLMConfig selects the completion backend.
type LLMConfig struct {
	// Name is "openai" or any backend any-llm-go supports ("anthropic",
	// "ollama", "gemini", ...).
	Name string `yaml:"name"`

	// Model is the model identifier.
	Model string `yaml:"model"`

	// APIKey authenticates the backend. Empty falls back to the backend's
	// environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL points the backend at a compatible endpoint.
	BaseURL string `yaml:"base_url"`
}

// DispatchConfig tunes the transmitter's conversation core.
type DispatchConfig struct {
	// PollInterval is the drop-directory scan period.
	PollInterval time.Duration `yaml:"poll_interval"`

	// HistoryLimit caps retained conversation turns.
	HistoryLimit int `yaml:"history_limit"`

	// HistoryExpiration ages out old turns.
	HistoryExpiration time.Duration `yaml:"history_expiration"`

	// ConversationTimeout unbinds the active persona after inactivity.
	ConversationTimeout time.Duration `yaml:"conversation_timeout"`

	// QueueSize bounds the response queue.
	QueueSize int `yaml:"queue_size"`

	// KeepArtifacts retains synthesized audio after playback.
	KeepArtifacts bool `yaml:"keep_artifacts"`
}

// ArchiveConfig enables the optional PostgreSQL exchange archive.
type ArchiveConfig struct {
	// DSN is the PostgreSQL connection string. Empty disables archiving.
	DSN string `yaml:"dsn"`
}

// applyDefaults fills zero fields with working values.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogInfo
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 44100
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.FramesPerBuffer == 0 {
		c.Audio.FramesPerBuffer = 1024
	}
	if c.Audio.Threshold == 0 {
		c.Audio.Threshold = 0.001
	}
	if c.Audio.SilenceDuration == 0 {
		c.Audio.SilenceDuration = time.Second
	}
	if c.Audio.MinDuration == 0 {
		c.Audio.MinDuration = 500 * time.Millisecond
	}
	if c.Audio.MaxDuration == 0 {
		c.Audio.MaxDuration = 30 * time.Second
	}
	if c.Audio.PreRoll == 0 {
		c.Audio.PreRoll = 500 * time.Millisecond
	}
	if c.Audio.QueueSize == 0 {
		c.Audio.QueueSize = 100
	}
	if c.Paths.DropDir == "" {
		c.Paths.DropDir = "data/drop"
	}
	if c.Paths.LockFile == "" {
		c.Paths.LockFile = "data/playback.lock"
	}
	if c.Paths.ProfilesDir == "" {
		c.Paths.ProfilesDir = "profiles"
	}
	if c.Paths.WorkDir == "" {
		c.Paths.WorkDir = "data/work"
	}
	if c.Paths.DebugDir == "" {
		c.Paths.DebugDir = "data/debug"
	}
	if c.Dispatch.PollInterval == 0 {
		c.Dispatch.PollInterval = time.Second
	}
	if c.Dispatch.HistoryLimit == 0 {
		c.Dispatch.HistoryLimit = 20
	}
	if c.Dispatch.HistoryExpiration == 0 {
		c.Dispatch.HistoryExpiration = 5 * time.Minute
	}
	if c.Dispatch.ConversationTimeout == 0 {
		c.Dispatch.ConversationTimeout = 5 * time.Minute
	}
	if c.Dispatch.QueueSize == 0 {
		c.Dispatch.QueueSize = 100
	}
	if c.Providers.STT.Name == "" {
		c.Providers.STT.Name = "openai"
	}
	if c.Providers.TTS.Name == "" {
		c.Providers.TTS.Name = "openai"
	}
	if c.Providers.LLM.Name == "" {
		c.Providers.LLM.Name = "openai"
	}
}
