// Package config provides the configuration structure for the TTS API.
//
// Configuration is loaded once at startup into an immutable struct and
// validated eagerly, so a misconfigured process fails fast instead of
// surfacing missing fields on the first request.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Producer modes accepted by the tts section.
const (
	ModeEngine = "engine"
	ModeTone   = "tone"
)

// Defaults applied when the TOML file leaves fields unset.
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 8000
	defaultTimeoutSeconds = 300
	defaultTemperature    = 0.1
	defaultMaxTextLength  = 1000
	defaultMaxAgeMinutes  = 60
	defaultArtifactDir    = "tts-audio"
)

// Static errors.
var (
	// ErrInvalidMode indicates an unknown producer mode.
	ErrInvalidMode = errors.New(`tts mode must be "engine" or "tone"`)
	// ErrEngineURLRequired indicates engine mode without an engine URL.
	ErrEngineURLRequired = errors.New("engine_url is required in engine mode")
	// ErrPortRange indicates an out-of-range listen port.
	ErrPortRange = errors.New("server port must be between 1 and 65535")
	// ErrNoVoices indicates an empty voice list.
	ErrNoVoices = errors.New("at least one voice must be configured")
	// ErrNoLanguages indicates an empty language list.
	ErrNoLanguages = errors.New("at least one language must be configured")
	// ErrNATSURLRequired indicates an enabled worker without a NATS URL.
	ErrNATSURLRequired = errors.New("nats url is required when the worker is enabled")
)

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// TTSConfig holds the producer configuration.
type TTSConfig struct {
	Mode           string   `toml:"mode"`
	EngineURL      string   `toml:"engine_url"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Temperature    float64  `toml:"temperature"`
	MaxTextLength  int      `toml:"max_text_length"`
	FemaleVoices   []string `toml:"female_voices"`
	MaleVoices     []string `toml:"male_voices"`
	Languages      []string `toml:"languages"`
}

// ToneConfig holds the test-signal parameters used in tone mode.
type ToneConfig struct {
	SampleRate      int     `toml:"sample_rate"`
	FrequencyHz     float64 `toml:"frequency_hz"`
	DurationSeconds float64 `toml:"duration_seconds"`
}

// ArtifactConfig holds the artifact store configuration.
type ArtifactConfig struct {
	Dir           string   `toml:"dir"`
	MaxAgeMinutes int      `toml:"max_age_minutes"`
	Extensions    []string `toml:"extensions"`
}

// NATSConfig holds the optional NATS worker configuration.
type NATSConfig struct {
	Enabled                bool   `toml:"enabled"`
	URL                    string `toml:"url"`
	SynthesisSubject       string `toml:"synthesis_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// ModelsConfig holds the model asset locations for engine deployments that
// fetch checkpoint files at startup.
type ModelsConfig struct {
	ConfigURL      string `toml:"config_url"`
	ConfigPath     string `toml:"config_path"`
	CheckpointURL  string `toml:"checkpoint_url"`
	CheckpointPath string `toml:"checkpoint_path"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	TTS      TTSConfig      `toml:"tts"`
	Tone     ToneConfig     `toml:"tone"`
	Artifact ArtifactConfig `toml:"artifact"`
	NATS     NATSConfig     `toml:"nats"`
	Models   ModelsConfig   `toml:"models"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration via the central configurator, applies
// defaults, and validates the result.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.applyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills unset fields with the documented defaults.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}

	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}

	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.TTS.Mode == "" {
		c.TTS.Mode = ModeEngine
	}

	if c.TTS.TimeoutSeconds == 0 {
		c.TTS.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.TTS.Temperature == 0 {
		c.TTS.Temperature = defaultTemperature
	}

	if c.TTS.MaxTextLength == 0 {
		c.TTS.MaxTextLength = defaultMaxTextLength
	}

	if len(c.TTS.FemaleVoices) == 0 && len(c.TTS.MaleVoices) == 0 {
		c.TTS.FemaleVoices = []string{
			"zainab", "idera", "regina", "chinenye", "joke", "remi",
		}
		c.TTS.MaleVoices = []string{
			"jude", "tayo", "umar", "osagie", "onye", "emma",
		}
	}

	if len(c.TTS.Languages) == 0 {
		c.TTS.Languages = []string{"english", "yoruba", "igbo", "hausa"}
	}

	if c.Artifact.Dir == "" {
		c.Artifact.Dir = filepath.Join(os.TempDir(), defaultArtifactDir)
	}

	if c.Artifact.MaxAgeMinutes == 0 {
		c.Artifact.MaxAgeMinutes = defaultMaxAgeMinutes
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = os.TempDir()
	}
}

// Validate checks the configuration for fatal inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrPortRange, c.Server.Port)
	}

	if c.TTS.Mode != ModeEngine && c.TTS.Mode != ModeTone {
		return fmt.Errorf("%w: got %q", ErrInvalidMode, c.TTS.Mode)
	}

	if c.TTS.Mode == ModeEngine && c.TTS.EngineURL == "" {
		return ErrEngineURLRequired
	}

	if len(c.AllVoices()) == 0 {
		return ErrNoVoices
	}

	if len(c.TTS.Languages) == 0 {
		return ErrNoLanguages
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return ErrNATSURLRequired
	}

	return nil
}

// AllVoices returns every configured voice as a flat list.
func (c *Config) AllVoices() []string {
	voices := make([]string, 0, len(c.TTS.FemaleVoices)+len(c.TTS.MaleVoices))
	voices = append(voices, c.TTS.FemaleVoices...)
	voices = append(voices, c.TTS.MaleVoices...)

	return voices
}

// EngineTimeout returns the producer timeout as a duration.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.TTS.TimeoutSeconds) * time.Second
}

// ArtifactMaxAge returns the sweep age threshold as a duration.
func (c *Config) ArtifactMaxAge() time.Duration {
	return time.Duration(c.Artifact.MaxAgeMinutes) * time.Minute
}

// ToneDuration returns the configured tone length as a duration.
func (c *Config) ToneDuration() time.Duration {
	return time.Duration(c.Tone.DurationSeconds * float64(time.Second))
}

// ListenAddr returns the host:port pair for the HTTP listener.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
