package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	VAD       VADConfig       `yaml:"vad"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Languages LanguagesConfig `yaml:"languages"`
	ASR       ASRConfig       `yaml:"asr"`
	Translate TranslateConfig `yaml:"translate"`
	TTS       TTSConfig       `yaml:"tts"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP/WebSocket server configuration
type ServerConfig struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
}

// AudioConfig contains audio intake parameters
type AudioConfig struct {
	SampleRate           int `yaml:"sample_rate"`             // 8000 or 16000 Hz
	ChunkDurationMs      int `yaml:"chunk_duration_ms"`       // passthrough segment interval
	MaxSegmentDurationMs int `yaml:"max_segment_duration_ms"` // hard cap before forced emit
}

// VADConfig contains Voice Activity Detection configuration
type VADConfig struct {
	Enabled              bool    `yaml:"enabled"`
	Engine               string  `yaml:"engine"` // "energy" or "mock"
	Threshold            float32 `yaml:"threshold"`
	MinSpeechDurationMs  int     `yaml:"min_speech_duration_ms"`
	MinSilenceDurationMs int     `yaml:"min_silence_duration_ms"`
	SpeechPadMs          int     `yaml:"speech_pad_ms"`
}

// PipelineConfig contains stage coordination parameters
type PipelineConfig struct {
	QueueSize        int `yaml:"queue_size"`        // queued segments per session
	EventBuffer      int `yaml:"event_buffer"`      // outbound event channel capacity
	FailureThreshold int `yaml:"failure_threshold"` // consecutive failures before session error
	StageTimeout     int `yaml:"stage_timeout"`     // seconds, per stage call
}

// LanguagesConfig contains the default language pair for new sessions
type LanguagesConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// ASRConfig contains speech recognition collaborator configuration
type ASRConfig struct {
	Engine        string `yaml:"engine"` // "http" or "mock"
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// TranslateConfig contains translation collaborator configuration
type TranslateConfig struct {
	Engine   string `yaml:"engine"` // "http" or "mock"
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// TTSConfig contains speech synthesis collaborator configuration
type TTSConfig struct {
	Engine   string `yaml:"engine"` // "http" or "mock"
	Endpoint string `yaml:"endpoint"`
	Voice    string `yaml:"voice"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// SessionConfig contains session lifecycle parameters
type SessionConfig struct {
	MaxSessions  int `yaml:"max_sessions"`
	IdleTimeout  int `yaml:"idle_timeout"`   // seconds
	CloseGraceMs int `yaml:"close_grace_ms"` // drain window on close
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns a configuration with working defaults for every section:
// 16 kHz mono audio, VAD threshold 0.5, 250 ms minimum speech, 300 ms minimum
// silence, 100 ms speech padding, mock collaborators.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			BindAddress: "0.0.0.0",
		},
		Audio: AudioConfig{
			SampleRate:           16000,
			ChunkDurationMs:      1000,
			MaxSegmentDurationMs: 15000,
		},
		VAD: VADConfig{
			Enabled:              true,
			Engine:               "energy",
			Threshold:            0.5,
			MinSpeechDurationMs:  250,
			MinSilenceDurationMs: 300,
			SpeechPadMs:          100,
		},
		Pipeline: PipelineConfig{
			QueueSize:        2,
			EventBuffer:      64,
			FailureThreshold: 3,
			StageTimeout:     30,
		},
		Languages: LanguagesConfig{
			Source: "en",
			Target: "es",
		},
		ASR: ASRConfig{
			Engine:        "mock",
			Model:         "whisper-small",
			Timeout:       30,
			MaxRetries:    3,
			MaxConcurrent: 4,
		},
		Translate: TranslateConfig{
			Engine:  "mock",
			Timeout: 10,
		},
		TTS: TTSConfig{
			Engine:  "mock",
			Voice:   "en_US-lessac-medium",
			Timeout: 15,
		},
		Session: SessionConfig{
			MaxSessions:  32,
			IdleTimeout:  300,
			CloseGraceMs: 2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Languages.Validate(); err != nil {
		return fmt.Errorf("languages config: %w", err)
	}

	if err := c.ASR.Validate(); err != nil {
		return fmt.Errorf("asr config: %w", err)
	}

	if err := c.Translate.Validate(); err != nil {
		return fmt.Errorf("translate config: %w", err)
	}

	if err := c.TTS.Validate(); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	return nil
}

// Validate validates audio configuration. The sample rate is restricted to the
// rates the VAD frame size is defined for; anything else is rejected here, at
// configuration time, rather than surfacing later as a frame size mismatch.
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 8000 && a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 8000 or 16000 Hz, got %d", a.SampleRate)
	}

	if a.ChunkDurationMs < 100 {
		return fmt.Errorf("chunk_duration_ms must be at least 100, got %d", a.ChunkDurationMs)
	}

	if a.MaxSegmentDurationMs <= a.ChunkDurationMs {
		return fmt.Errorf("max_segment_duration_ms (%d) must be greater than chunk_duration_ms (%d)",
			a.MaxSegmentDurationMs, a.ChunkDurationMs)
	}

	return nil
}

// FrameSize returns the VAD frame length in samples for the configured rate:
// 512 samples at 16 kHz, 256 at 8 kHz.
func (a *AudioConfig) FrameSize() int {
	if a.SampleRate == 16000 {
		return 512
	}
	return 256
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Engine != "energy" && v.Engine != "mock" {
		return fmt.Errorf("engine must be 'energy' or 'mock', got '%s'", v.Engine)
	}

	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.MinSpeechDurationMs <= 0 {
		return fmt.Errorf("min_speech_duration_ms must be positive, got %d", v.MinSpeechDurationMs)
	}

	if v.MinSilenceDurationMs <= 0 {
		return fmt.Errorf("min_silence_duration_ms must be positive, got %d", v.MinSilenceDurationMs)
	}

	if v.SpeechPadMs < 0 {
		return fmt.Errorf("speech_pad_ms cannot be negative, got %d", v.SpeechPadMs)
	}

	if v.SpeechPadMs >= v.MinSilenceDurationMs {
		return fmt.Errorf("speech_pad_ms (%d) must be less than min_silence_duration_ms (%d)",
			v.SpeechPadMs, v.MinSilenceDurationMs)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", p.QueueSize)
	}

	if p.EventBuffer < 1 {
		return fmt.Errorf("event_buffer must be at least 1, got %d", p.EventBuffer)
	}

	if p.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", p.FailureThreshold)
	}

	if p.StageTimeout < 1 {
		return fmt.Errorf("stage_timeout must be at least 1 second, got %d", p.StageTimeout)
	}

	return nil
}

// Validate validates language configuration
func (l *LanguagesConfig) Validate() error {
	if l.Source == "" {
		return fmt.Errorf("source language cannot be empty")
	}

	if l.Target == "" {
		return fmt.Errorf("target language cannot be empty")
	}

	return nil
}

// Validate validates ASR configuration
func (a *ASRConfig) Validate() error {
	if a.Engine != "http" && a.Engine != "mock" {
		return fmt.Errorf("engine must be 'http' or 'mock', got '%s'", a.Engine)
	}

	if a.Engine == "http" && a.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty for http engine")
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", a.MaxRetries)
	}

	if a.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", a.MaxConcurrent)
	}

	return nil
}

// Validate validates translation configuration
func (t *TranslateConfig) Validate() error {
	if t.Engine != "http" && t.Engine != "mock" {
		return fmt.Errorf("engine must be 'http' or 'mock', got '%s'", t.Engine)
	}

	if t.Engine == "http" && t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty for http engine")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	return nil
}

// Validate validates TTS configuration
func (t *TTSConfig) Validate() error {
	if t.Engine != "http" && t.Engine != "mock" {
		return fmt.Errorf("engine must be 'http' or 'mock', got '%s'", t.Engine)
	}

	if t.Engine == "http" && t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty for http engine")
	}

	if t.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}

	if s.IdleTimeout < 1 {
		return fmt.Errorf("idle_timeout must be at least 1 second, got %d", s.IdleTimeout)
	}

	if s.CloseGraceMs < 0 {
		return fmt.Errorf("close_grace_ms cannot be negative, got %d", s.CloseGraceMs)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetChunkDuration returns the passthrough chunk interval as a time.Duration
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDurationMs) * time.Millisecond
}

// GetMaxSegmentDuration returns the segment hard cap as a time.Duration
func (a *AudioConfig) GetMaxSegmentDuration() time.Duration {
	return time.Duration(a.MaxSegmentDurationMs) * time.Millisecond
}

// GetMinSpeechDuration returns the minimum speech duration as a time.Duration
func (v *VADConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(v.MinSpeechDurationMs) * time.Millisecond
}

// GetMinSilenceDuration returns the minimum silence duration as a time.Duration
func (v *VADConfig) GetMinSilenceDuration() time.Duration {
	return time.Duration(v.MinSilenceDurationMs) * time.Millisecond
}

// GetSpeechPad returns the speech padding as a time.Duration
func (v *VADConfig) GetSpeechPad() time.Duration {
	return time.Duration(v.SpeechPadMs) * time.Millisecond
}

// GetStageTimeout returns the per-stage timeout as a time.Duration
func (p *PipelineConfig) GetStageTimeout() time.Duration {
	return time.Duration(p.StageTimeout) * time.Second
}

// GetIdleTimeout returns the session idle timeout as a time.Duration
func (s *SessionConfig) GetIdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeout) * time.Second
}

// GetCloseGrace returns the close drain window as a time.Duration
func (s *SessionConfig) GetCloseGrace() time.Duration {
	return time.Duration(s.CloseGraceMs) * time.Millisecond
}

// GetTimeoutDuration returns the ASR request timeout as a time.Duration
func (a *ASRConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetTimeoutDuration returns the translation request timeout as a time.Duration
func (t *TranslateConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the TTS request timeout as a time.Duration
func (t *TTSConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
