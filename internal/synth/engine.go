// Package synth provides the speech producer implementations.
//
// Two producers exist: Engine, which delegates synthesis to an external
// neural TTS inference service over HTTP, and Tone, which generates a
// deterministic test signal. The active producer is chosen explicitly by
// configuration at startup; there is no silent fallback from one to the
// other.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/naijavoice/tts-api/internal/core"
)

// Producer modes reported via core.Producer.Mode.
const (
	ModeEngine = "engine"
	ModeTone   = "tone"
)

// Inference service endpoints.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Static errors.
var (
	// ErrTextEmpty indicates a synthesis request without text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyAudio indicates the engine returned a successful but empty response.
	ErrEmptyAudio = errors.New("received empty audio data")
	// ErrUnexpectedContentType indicates a non-WAV engine response.
	ErrUnexpectedContentType = errors.New("unexpected content type")
)

// Engine is a core.Producer that forwards synthesis requests to a
// standalone TTS inference service. It encapsulates the HTTP configuration
// and translates between the API's request shape and the engine's wire
// contract.
type Engine struct {
	httpClient         *http.Client
	baseURL            string
	defaultTemperature float64
}

// engineRequest is the JSON payload sent to the inference service.
type engineRequest struct {
	Text        string  `json:"text"`
	Voice       string  `json:"voice"`
	Language    string  `json:"language"`
	Temperature float64 `json:"temperature"`
}

// engineErrorResponse is the structured error body returned by the
// inference service on failure.
type engineErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewEngine creates a producer backed by the inference service at baseURL
// (protocol and port included, e.g. "http://localhost:8000"). The timeout
// applies to every HTTP request; defaultTemperature is used when a request
// leaves temperature unset.
func NewEngine(baseURL string, timeout time.Duration, defaultTemperature float64) *Engine {
	return &Engine{
		baseURL:            baseURL,
		defaultTemperature: defaultTemperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Mode identifies this producer as the real inference engine.
func (e *Engine) Mode() string {
	return ModeEngine
}

// Synthesize sends a generation request to the inference service and
// returns the raw WAV bytes. Input is validated at the boundary; the
// response content type and body are validated before the audio is
// returned to the caller.
func (e *Engine) Synthesize(ctx context.Context, req core.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = e.defaultTemperature
	}

	payload := engineRequest{
		Text:        req.Text,
		Voice:       req.Voice,
		Language:    req.Language,
		Temperature: temperature,
	}

	requestBody, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal engine request: %w", marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.baseURL+apiGenerateSpeech,
		bytes.NewBuffer(requestBody),
	)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create engine request: %w", reqErr)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, doErr := e.httpClient.Do(httpReq)
	if doErr != nil {
		return nil, fmt.Errorf(
			"failed to reach TTS engine at %s: %w",
			e.baseURL,
			doErr,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(
			"%w: expected %s, got %s",
			ErrUnexpectedContentType,
			contentTypeWAV,
			contentType,
		)
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", readErr)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// Healthy performs a lightweight check against the engine's health
// endpoint. It should be called before advertising the service as ready so
// unavailability is diagnosed up front rather than on the first request.
func (e *Engine) Healthy(ctx context.Context) error {
	req, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		e.baseURL+apiHealth,
		http.NoBody,
	)
	if reqErr != nil {
		return fmt.Errorf("failed to create health check request: %w", reqErr)
	}

	resp, doErr := e.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf(
			"health check failed for engine at %s: %w",
			e.baseURL,
			doErr,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine health check returned status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// engine, falling back to the raw body so diagnostics are never lost.
func (e *Engine) parseErrorResponse(resp *http.Response) error {
	var errorResp engineErrorResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&errorResp)
	if decodeErr == nil && errorResp.Detail != "" {
		return fmt.Errorf(
			"TTS engine error (%s): %s (code: %s)",
			resp.Status,
			errorResp.Detail,
			errorResp.ErrorCode,
		)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(
		"TTS engine returned non-OK status: %s, body: %s",
		resp.Status,
		string(body),
	)
}
