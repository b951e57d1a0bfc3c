// main package for the tts-api service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/naijavoice/tts-api/internal/artifact"
	"github.com/naijavoice/tts-api/internal/config"
	"github.com/naijavoice/tts-api/internal/core"
	"github.com/naijavoice/tts-api/internal/metrics"
	"github.com/naijavoice/tts-api/internal/models"
	"github.com/naijavoice/tts-api/internal/objectstore"
	"github.com/naijavoice/tts-api/internal/server"
	"github.com/naijavoice/tts-api/internal/synth"
	"github.com/naijavoice/tts-api/internal/worker"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// A temporary logger covers the window before configuration is loaded.
	bootstrapLog, err := setupLogger(os.TempDir(), "tts-api-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "tts-api.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

// serve builds the producer, store, and transports from configuration and
// runs them until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	producer, err := buildProducer(ctx, cfg, log)
	if err != nil {
		return err
	}

	store, err := artifact.New(cfg.Artifact.Dir, cfg.Artifact.Extensions, log)
	if err != nil {
		return fmt.Errorf("failed to create artifact store: %w", err)
	}

	met := metrics.New()

	if cfg.NATS.Enabled {
		err = startWorker(ctx, cfg, producer, log)
		if err != nil {
			return err
		}
	}

	srv := server.New(cfg, producer, store, met, log)

	err = srv.Run(ctx)
	if err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}

// buildProducer selects the synthesis backend from configuration. Engine
// mode talks to a remote inference engine and fetches any configured model
// assets first; tone mode generates a deterministic test signal locally.
func buildProducer(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
) (core.Producer, error) {
	if cfg.TTS.Mode == config.ModeTone {
		tone, toneErr := synth.NewTone(
			cfg.Tone.SampleRate,
			cfg.Tone.FrequencyHz,
			cfg.ToneDuration(),
		)
		if toneErr != nil {
			return nil, fmt.Errorf("failed to create tone producer: %w", toneErr)
		}

		log.System("Producer mode: tone")

		return tone, nil
	}

	assets := models.AssetsFromConfig(cfg.Models)
	if len(assets) > 0 {
		fetchErr := models.NewFetcher(log).EnsureAll(ctx, assets)
		if fetchErr != nil {
			return nil, fmt.Errorf("failed to fetch model assets: %w", fetchErr)
		}
	}

	engine := synth.NewEngine(cfg.TTS.EngineURL, cfg.EngineTimeout(), cfg.TTS.Temperature)

	log.System("Producer mode: engine (%s)", cfg.TTS.EngineURL)

	return engine, nil
}

// startWorker connects to NATS and runs the synthesis worker alongside the
// HTTP server.
func startWorker(
	ctx context.Context,
	cfg *config.Config,
	producer core.Producer,
	log *logger.Logger,
) error {
	natsConnection, connectErr := nats.Connect(cfg.NATS.URL)
	if connectErr != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, connectErr)
	}

	jetstreamContext, jetstreamErr := natsConnection.JetStream()
	if jetstreamErr != nil {
		return fmt.Errorf("failed to create JetStream context: %w", jetstreamErr)
	}

	audioStore, storeErr := objectstore.New(
		jetstreamContext, cfg.NATS.AudioObjectStoreBucket,
	)
	if storeErr != nil {
		return fmt.Errorf("failed to create audio object store: %w", storeErr)
	}

	rules := core.NewRules(cfg.TTS.MaxTextLength, cfg.AllVoices(), cfg.TTS.Languages)

	synthesisWorker, workerErr := worker.New(
		natsConnection, cfg.NATS.SynthesisSubject, audioStore, producer, rules, log,
	)
	if workerErr != nil {
		return fmt.Errorf("failed to create synthesis worker: %w", workerErr)
	}

	go func() {
		runErr := synthesisWorker.Run(ctx)
		if runErr != nil {
			log.Error("Synthesis worker stopped: %v", runErr)
		}
	}()

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
