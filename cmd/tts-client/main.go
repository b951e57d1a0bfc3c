// main package for the tts-client command-line tool
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Flag names.
const (
	flagURL      = "url"
	flagText     = "text"
	flagVoice    = "voice"
	flagLanguage = "language"
	flagOutput   = "output"
	flagHealth   = "health"
)

// Flag descriptions.
const (
	flagURLDesc      = "Base URL of the TTS API"
	flagTextDesc     = "Text to convert to speech"
	flagVoiceDesc    = "Voice name (see /voices)"
	flagLanguageDesc = "Language name (see /languages)"
	flagOutputDesc   = "Output file path (.wav)"
	flagHealthDesc   = "Check API health and exit"
)

// Defaults.
const (
	defaultURL        = "http://localhost:8000"
	defaultVoice      = "idera"
	defaultOutputFile = "output.wav"
	requestTimeout    = 5 * time.Minute
	healthTimeout     = 10 * time.Second
	filePermissions   = 0o600
)

// Static errors.
var (
	errTextRequired = errors.New("--text is required")
	errAPIFailure   = errors.New("API request failed")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	url      string
	text     string
	voice    string
	language string
	output   string
	health   bool
}

// generateRequest mirrors the API's generation payload.
type generateRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language,omitempty"`
}

// generateResult is the subset of the API response the client consumes.
type generateResult struct {
	AudioBase64 string  `json:"audio_base64"`
	Duration    float64 `json:"duration"`
	Detail      string  `json:"detail"`
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	if flags.health {
		return checkHealth(flags.url)
	}

	if flags.text == "" {
		flag.Usage()

		return errTextRequired
	}

	return generate(flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.url, flagURL, defaultURL, flagURLDesc)
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.voice, flagVoice, defaultVoice, flagVoiceDesc)
	flag.StringVar(&flags.language, flagLanguage, "", flagLanguageDesc)
	flag.StringVar(&flags.output, flagOutput, defaultOutputFile, flagOutputDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.Parse()

	return flags
}

// checkHealth queries the health endpoint and prints the raw response.
func checkHealth(baseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	req, reqErr := http.NewRequestWithContext(
		ctx, http.MethodGet, baseURL+"/health", http.NoBody,
	)
	if reqErr != nil {
		return fmt.Errorf("failed to create health request: %w", reqErr)
	}

	resp, doErr := http.DefaultClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("health check failed: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("failed to read health response: %w", readErr)
	}

	fmt.Println(string(body))

	return nil
}

// generate posts the synthesis request and writes the decoded audio to disk.
func generate(flags appFlags) error {
	payload, marshalErr := json.Marshal(generateRequest{
		Text:     flags.text,
		Voice:    flags.voice,
		Language: flags.language,
	})
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal request: %w", marshalErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		flags.url+"/generate-audio",
		bytes.NewReader(payload),
	)
	if reqErr != nil {
		return fmt.Errorf("failed to create request: %w", reqErr)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, doErr := http.DefaultClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("failed to reach TTS API at %s: %w", flags.url, doErr)
	}
	defer resp.Body.Close()

	var result generateResult

	decodeErr := json.NewDecoder(resp.Body).Decode(&result)
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", errAPIFailure, resp.Status, result.Detail)
	}

	audioData, b64Err := base64.StdEncoding.DecodeString(result.AudioBase64)
	if b64Err != nil {
		return fmt.Errorf("failed to decode audio payload: %w", b64Err)
	}

	writeErr := os.WriteFile(flags.output, audioData, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write %s: %w", flags.output, writeErr)
	}

	fmt.Printf("Generated %s (%.2fs of speech)\n", flags.output, result.Duration)

	return nil
}
