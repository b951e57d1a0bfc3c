package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/naijavoice/tts-api/internal/artifact"
	"github.com/naijavoice/tts-api/internal/core"
	"github.com/naijavoice/tts-api/internal/metrics"
	"github.com/naijavoice/tts-api/internal/text"
)

const artifactExtension = "wav"

const filePermissions = 0o600

// Health status values.
const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// errorResponse is the JSON error body returned by every endpoint.
type errorResponse struct {
	Detail string `json:"detail"`
}

// generateResponse is the JSON body returned by the generation endpoints.
type generateResponse struct {
	AudioBase64 string    `json:"audio_base64"`
	AudioURL    string    `json:"audio_url"`
	Text        string    `json:"text"`
	Voice       string    `json:"voice"`
	Language    string    `json:"language"`
	Duration    float64   `json:"duration"`
	GeneratedAt time.Time `json:"generated_at"`
	Mode        string    `json:"mode"`
}

// cleanupResponse reports the per-item outcome of a sweep, distinguishing
// "nothing to clean" from "some deletions failed".
type cleanupResponse struct {
	Removed int      `json:"removed"`
	Failed  []string `json:"failed,omitempty"`
}

// infoResponse is the root endpoint body.
type infoResponse struct {
	Status             string              `json:"status"`
	Message            string              `json:"message"`
	Version            string              `json:"version"`
	AvailableLanguages []string            `json:"available_languages"`
	AvailableVoices    map[string][]string `json:"available_voices"`
	ProducerReady      bool                `json:"producer_ready"`
	Mode               string              `json:"mode"`
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status        string  `json:"status"`
	ProducerReady bool    `json:"producer_ready"`
	Mode          string  `json:"mode"`
	Artifacts     int     `json:"artifacts"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Timestamp     string  `json:"timestamp"`
	Version       string  `json:"version"`
}

// handleGenerate validates the request, produces audio, stores it as an
// artifact, and returns it both inline and by URL. A failed generation
// deletes any partially written artifact before reporting the error, so no
// orphaned partial file is ever reachable.
func (s *Server) handleGenerate(c *gin.Context) {
	var req core.Request

	bindErr := c.ShouldBindJSON(&req)
	if bindErr != nil {
		s.metrics.SynthesisRequests.WithLabelValues(
			metrics.OutcomeRejected, s.producer.Mode(),
		).Inc()
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "malformed JSON body"})

		return
	}

	validationErr := s.rules.ValidateRequest(&req)
	if validationErr != nil {
		s.metrics.SynthesisRequests.WithLabelValues(
			metrics.OutcomeRejected, s.producer.Mode(),
		).Inc()
		c.JSON(http.StatusBadRequest, errorResponse{Detail: validationErr.Error()})

		return
	}

	started := time.Now()

	audioData, synthErr := s.producer.Synthesize(c.Request.Context(), req)
	if synthErr != nil {
		s.metrics.SynthesisRequests.WithLabelValues(
			metrics.OutcomeFailed, s.producer.Mode(),
		).Inc()
		s.log.Error("Synthesis failed for voice %s: %v", req.Voice, synthErr)
		c.JSON(http.StatusInternalServerError, errorResponse{
			Detail: "error generating audio: " + synthErr.Error(),
		})

		return
	}

	s.metrics.SynthesisDuration.Observe(time.Since(started).Seconds())

	_, path, allocErr := s.store.Allocate(artifactExtension)
	if allocErr != nil {
		s.metrics.SynthesisRequests.WithLabelValues(
			metrics.OutcomeFailed, s.producer.Mode(),
		).Inc()
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: allocErr.Error()})

		return
	}

	writeErr := os.WriteFile(path, audioData, filePermissions)
	if writeErr != nil {
		// Remove whatever was partially written before reporting.
		_, _ = s.store.DeleteOne(path)

		s.metrics.SynthesisRequests.WithLabelValues(
			metrics.OutcomeFailed, s.producer.Mode(),
		).Inc()
		s.log.Error("Failed to write artifact %s: %v", path, writeErr)
		c.JSON(http.StatusInternalServerError, errorResponse{
			Detail: "error storing audio artifact",
		})

		return
	}

	s.metrics.SynthesisRequests.WithLabelValues(
		metrics.OutcomeOK, s.producer.Mode(),
	).Inc()

	c.JSON(http.StatusOK, generateResponse{
		AudioBase64: base64.StdEncoding.EncodeToString(audioData),
		AudioURL:    "/audio/" + filepath.Base(path),
		Text:        req.Text,
		Voice:       req.Voice,
		Language:    req.Language,
		Duration:    text.EstimateDuration(req.Text),
		GeneratedAt: time.Now().UTC(),
		Mode:        s.producer.Mode(),
	})

	// Lazy reclamation: a sweep after each production keeps a long-running
	// process from leaking disk space without needing a scheduler.
	go s.sweepStale()
}

// handleGetAudio serves a stored artifact and deletes it after a successful
// read; artifacts are consumed once, with the age sweep as a backstop for
// URLs that are never fetched.
func (s *Server) handleGetAudio(c *gin.Context) {
	filename := c.Param("filename")

	path, resolveErr := s.store.Resolve(filename)
	if resolveErr != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: resolveErr.Error()})

		return
	}

	audioData, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			s.metrics.ArtifactsNotFound.Inc()
			c.JSON(http.StatusNotFound, errorResponse{Detail: "audio file not found"})

			return
		}

		s.log.Error("Failed to read artifact %s: %v", path, readErr)
		c.JSON(http.StatusInternalServerError, errorResponse{
			Detail: "error reading audio artifact",
		})

		return
	}

	s.metrics.ArtifactsServed.Inc()
	c.Data(http.StatusOK, contentTypeFor(filename), audioData)

	_, deleteErr := s.store.DeleteOne(path)
	if deleteErr != nil {
		s.log.Warn("Failed to delete served artifact %s: %v", path, deleteErr)
	}
}

// handleCleanup manually invokes a sweep. The optional max_age_minutes
// query overrides the configured threshold; zero deletes every artifact
// currently present.
func (s *Server) handleCleanup(c *gin.Context) {
	maxAge := s.cfg.ArtifactMaxAge()

	if raw, ok := c.GetQuery("max_age_minutes"); ok {
		minutes, parseErr := strconv.Atoi(raw)
		if parseErr != nil || minutes < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{
				Detail: "max_age_minutes must be a non-negative integer",
			})

			return
		}

		maxAge = time.Duration(minutes) * time.Minute
	}

	report, sweepErr := s.store.Sweep(maxAge)
	if sweepErr != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: sweepErr.Error()})

		return
	}

	s.recordSweep(report)

	resp := cleanupResponse{Removed: report.RemovedCount()}
	for _, failure := range report.Failed {
		resp.Failed = append(resp.Failed, failure.Name)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInfo(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	c.JSON(http.StatusOK, infoResponse{
		Status:             "ok",
		Message:            apiName + " is running",
		Version:            apiVersion,
		AvailableLanguages: s.cfg.TTS.Languages,
		AvailableVoices: map[string][]string{
			"female": s.cfg.TTS.FemaleVoices,
			"male":   s.cfg.TTS.MaleVoices,
		},
		ProducerReady: s.producer.Healthy(ctx) == nil,
		Mode:          s.producer.Mode(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	producerReady := s.producer.Healthy(ctx) == nil

	count, countErr := s.store.Count()
	if countErr != nil {
		s.log.Warn("Failed to count artifacts: %v", countErr)
	}

	status := statusHealthy
	if !producerReady {
		status = statusDegraded
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:        status,
		ProducerReady: producerReady,
		Mode:          s.producer.Mode(),
		Artifacts:     count,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       apiVersion,
	})
}

func (s *Server) handleVoices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"female": s.cfg.TTS.FemaleVoices,
		"male":   s.cfg.TTS.MaleVoices,
	})
}

func (s *Server) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": s.cfg.TTS.Languages})
}

// sweepStale runs the age-based sweep with the configured threshold.
func (s *Server) sweepStale() {
	report, sweepErr := s.store.Sweep(s.cfg.ArtifactMaxAge())
	if sweepErr != nil {
		s.log.Error("Artifact sweep failed: %v", sweepErr)

		return
	}

	s.recordSweep(report)
}

func (s *Server) recordSweep(report artifact.SweepReport) {
	s.metrics.ArtifactsSwept.Add(float64(report.RemovedCount()))
	s.metrics.SweepFailures.Add(float64(len(report.Failed)))
}

// contentTypeFor maps a recognized artifact extension to its media type.
func contentTypeFor(filename string) string {
	switch filepath.Ext(filename) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/wav"
	}
}
