// Package server provides the HTTP layer of the TTS API.
//
// The handlers map the artifact store's operations onto REST endpoints:
// triggering generation, retrieving a named artifact, and manually
// invoking a sweep. All synthesis work is delegated to the injected
// core.Producer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/naijavoice/tts-api/internal/artifact"
	"github.com/naijavoice/tts-api/internal/config"
	"github.com/naijavoice/tts-api/internal/core"
	"github.com/naijavoice/tts-api/internal/metrics"
)

// API identity reported by the info endpoint.
const (
	apiName    = "Naija TTS API"
	apiVersion = "1.0.0"
)

// Timeouts for the HTTP listener and dependency checks.
const (
	healthCheckTimeout = 10 * time.Second
	readHeaderTimeout  = 10 * time.Second
	shutdownTimeout    = 15 * time.Second
)

// Server wires the producer, artifact store, and metrics into a gin router.
type Server struct {
	cfg       *config.Config
	producer  core.Producer
	store     *artifact.Store
	rules     *core.Rules
	metrics   *metrics.Metrics
	log       *logger.Logger
	router    *gin.Engine
	startedAt time.Time
}

// New creates a fully routed Server. The producer and store are constructed
// by the caller so transports share one instance of each.
func New(
	cfg *config.Config,
	producer core.Producer,
	store *artifact.Store,
	met *metrics.Metrics,
	log *logger.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	srv := &Server{
		cfg:      cfg,
		producer: producer,
		store:    store,
		rules: core.NewRules(
			cfg.TTS.MaxTextLength,
			cfg.AllVoices(),
			cfg.TTS.Languages,
		),
		metrics:   met,
		log:       log,
		router:    gin.New(),
		startedAt: time.Now(),
	}

	srv.router.Use(gin.Recovery())
	srv.router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleInfo)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/voices", s.handleVoices)
	s.router.GET("/languages", s.handleLanguages)

	// The generation endpoint grew two aliases over time; deployed
	// clients depend on all three.
	s.router.POST("/generate-audio", s.handleGenerate)
	s.router.POST("/generate-tts", s.handleGenerate)
	s.router.POST("/tts", s.handleGenerate)

	s.router.GET("/audio/:filename", s.handleGetAudio)

	s.router.GET("/cleanup", s.handleCleanup)
	s.router.POST("/cleanup", s.handleCleanup)

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// Router exposes the underlying handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		serveErr := httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}

		close(errCh)
	}()

	s.log.System("%s v%s listening on %s", apiName, apiVersion, s.cfg.ListenAddr())

	select {
	case serveErr := <-errCh:
		if serveErr != nil {
			return fmt.Errorf("HTTP server failed: %w", serveErr)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", shutdownErr)
	}

	return nil
}
