// Package core defines the core business logic and interfaces for the TTS API.
package core

import "context"

// Request holds the parameters for a single speech synthesis job.
// This allows for per-request customization of the generated audio.
type Request struct {
	// Text is the input to convert to speech. Must be non-empty.
	Text string `json:"text"`

	// Voice selects the speaker (e.g. "idera", "jude").
	Voice string `json:"voice"`

	// Language selects the accent/language (e.g. "english", "yoruba").
	Language string `json:"language"`

	// Temperature controls randomness in generation. Zero means
	// "use the producer's configured default".
	Temperature float64 `json:"temperature,omitempty"`
}

// Producer defines the interface for a speech synthesis backend.
// Implementations are explicitly constructed at process startup and
// injected into the transport layers; there is no ambient global handle.
type Producer interface {
	// Synthesize converts text to WAV audio bytes.
	Synthesize(ctx context.Context, req Request) ([]byte, error)

	// Healthy reports whether the backend is able to serve requests.
	Healthy(ctx context.Context) error

	// Mode identifies the producer kind ("engine" or "tone") for
	// diagnostics and API info responses.
	Mode() string
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}
