// Package server_test tests the HTTP layer against a tone producer and a
// real artifact store.
package server_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naijavoice/tts-api/internal/artifact"
	"github.com/naijavoice/tts-api/internal/config"
	"github.com/naijavoice/tts-api/internal/core"
	"github.com/naijavoice/tts-api/internal/metrics"
	"github.com/naijavoice/tts-api/internal/server"
	"github.com/naijavoice/tts-api/internal/synth"
)

var errEngineDown = errors.New("engine down")

// failingProducer simulates an unreachable inference engine.
type failingProducer struct{}

func (failingProducer) Synthesize(_ context.Context, _ core.Request) ([]byte, error) {
	return nil, errEngineDown
}

func (failingProducer) Healthy(_ context.Context) error {
	return errEngineDown
}

func (failingProducer) Mode() string {
	return synth.ModeEngine
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        8000,
			CORSOrigins: []string{"*"},
		},
		TTS: config.TTSConfig{
			Mode:          config.ModeTone,
			MaxTextLength: 1000,
			FemaleVoices:  []string{"zainab", "idera"},
			MaleVoices:    []string{"jude", "tayo"},
			Languages:     []string{"english", "yoruba"},
		},
		Artifact: config.ArtifactConfig{
			MaxAgeMinutes: 60,
		},
	}
}

func newTestServer(t *testing.T, producer core.Producer) (*server.Server, *artifact.Store) {
	t.Helper()

	log, err := logger.New(t.TempDir(), "server-test.log")
	require.NoError(t, err)

	store, err := artifact.New(t.TempDir(), nil, log)
	require.NoError(t, err)

	if producer == nil {
		tone, toneErr := synth.NewTone(8000, 440, 100*time.Millisecond)
		require.NoError(t, toneErr)
		producer = tone
	}

	return server.New(testConfig(), producer, store, metrics.New(), log), store
}

func doJSON(
	t *testing.T,
	srv *server.Server,
	method, target, body string,
) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)

	return recorder
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, nil)

	recorder := doJSON(t, srv, http.MethodPost, "/generate-audio",
		`{"text":"Welcome to Lagos.","voice":"idera","language":"english"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))

	audio, err := base64.StdEncoding.DecodeString(resp["audio_base64"].(string))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(audio[0:4]))

	audioURL := resp["audio_url"].(string)
	require.True(t, strings.HasPrefix(audioURL, "/audio/"))
	assert.True(t, strings.HasSuffix(audioURL, ".wav"))

	assert.Equal(t, "Welcome to Lagos.", resp["text"])
	assert.Equal(t, "idera", resp["voice"])
	assert.Equal(t, "english", resp["language"])
	assert.Equal(t, "tone", resp["mode"])
	assert.InEpsilon(t, 1.2, resp["duration"].(float64), 0.001)

	// The artifact backing the URL is on disk.
	path := filepath.Join(store.BaseDir(), strings.TrimPrefix(audioURL, "/audio/"))
	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, audio, stored)
}

func TestGenerate_AliasEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	for _, endpoint := range []string{"/generate-tts", "/tts"} {
		recorder := doJSON(t, srv, http.MethodPost, endpoint,
			`{"text":"hello","voice":"jude"}`)
		assert.Equal(t, http.StatusOK, recorder.Code, "endpoint %s", endpoint)
	}
}

func TestGenerate_ValidationFailures(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	cases := map[string]string{
		"malformed json":   `{"text":`,
		"empty text":       `{"text":"","voice":"idera"}`,
		"unknown voice":    `{"text":"hello","voice":"nobody"}`,
		"unknown language": `{"text":"hello","voice":"idera","language":"latin"}`,
		"markup in text":   `{"text":"a <b>","voice":"idera"}`,
	}

	for name, body := range cases {
		recorder := doJSON(t, srv, http.MethodPost, "/generate-audio", body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "case %s", name)
	}
}

func TestGenerate_ProducerFailureLeavesNoArtifact(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, failingProducer{})

	recorder := doJSON(t, srv, http.MethodPost, "/generate-audio",
		`{"text":"hello","voice":"idera"}`)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetAudio_ServesOnceThenDeletes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	generated := doJSON(t, srv, http.MethodPost, "/generate-audio",
		`{"text":"hello","voice":"idera"}`)
	require.Equal(t, http.StatusOK, generated.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(generated.Body.Bytes(), &resp))
	audioURL := resp["audio_url"].(string)

	first := doJSON(t, srv, http.MethodGet, audioURL, "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "audio/wav", first.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", first.Body.String()[0:4])

	// Artifacts are consumed once; the second fetch finds nothing.
	second := doJSON(t, srv, http.MethodGet, audioURL, "")
	assert.Equal(t, http.StatusNotFound, second.Code)
}

func TestGetAudio_RejectsTraversal(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	recorder := doJSON(t, srv, http.MethodGet, "/audio/..%5Csecret.wav", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, srv, http.MethodGet, "/audio/notes.txt", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetAudio_UnknownFilename(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	recorder := doJSON(t, srv, http.MethodGet, "/audio/no-such-file.wav", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCleanup_RemovesEverythingAtZeroAge(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t, nil)

	for _, name := range []string{"a.wav", "b.mp3"} {
		path := filepath.Join(store.BaseDir(), name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	recorder := doJSON(t, srv, http.MethodPost, "/cleanup?max_age_minutes=0", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.InDelta(t, 2, resp["removed"], 0)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCleanup_RejectsBadMaxAge(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	recorder := doJSON(t, srv, http.MethodGet, "/cleanup?max_age_minutes=-5", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestVoicesAndLanguages(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	voices := doJSON(t, srv, http.MethodGet, "/voices", "")
	require.Equal(t, http.StatusOK, voices.Code)
	assert.Contains(t, voices.Body.String(), "idera")
	assert.Contains(t, voices.Body.String(), "jude")

	languages := doJSON(t, srv, http.MethodGet, "/languages", "")
	require.Equal(t, http.StatusOK, languages.Code)
	assert.Contains(t, languages.Body.String(), "yoruba")
}

func TestHealth_ReportsProducerState(t *testing.T) {
	t.Parallel()

	healthy, _ := newTestServer(t, nil)

	recorder := doJSON(t, healthy, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, true, resp["producer_ready"])

	degraded, _ := newTestServer(t, failingProducer{})

	recorder = doJSON(t, degraded, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	assert.Equal(t, false, resp["producer_ready"])
}

func TestInfo(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	recorder := doJSON(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "1.0.0", resp["version"])
	assert.Equal(t, "tone", resp["mode"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	// Generate once so the counters exist in the exposition.
	generated := doJSON(t, srv, http.MethodPost, "/generate-audio",
		`{"text":"hello","voice":"idera"}`)
	require.Equal(t, http.StatusOK, generated.Code)

	recorder := doJSON(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "tts_synthesis_requests_total")
}
