// Package worker provides a NATS worker that processes synthesis jobs.
//
// The worker consumes the same synthesis operation the HTTP layer exposes,
// but over a message subject: jobs carry text, voice, and language inline,
// and results reference the generated audio by its object store key.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/naijavoice/tts-api/internal/core"
)

const handleMessageTimeout = 30 * time.Second

const audioKeyExtension = ".wav"

// Static errors.
var (
	// ErrSubjectEmpty indicates a worker configured without a subject.
	ErrSubjectEmpty = errors.New("synthesis subject cannot be empty")
	// ErrNilDependency indicates a missing constructor dependency.
	ErrNilDependency = errors.New("worker dependency cannot be nil")
)

// SynthesisJob is the JSON payload consumed from the synthesis subject.
type SynthesisJob struct {
	JobID       string  `json:"job_id"`
	Text        string  `json:"text"`
	Voice       string  `json:"voice"`
	Language    string  `json:"language"`
	Temperature float64 `json:"temperature,omitempty"`
}

// SynthesisResult is the JSON reply published when a job completes. Failed
// jobs reply with Error set and no audio key, so submitters can distinguish
// rejection from silence.
type SynthesisResult struct {
	JobID           string  `json:"job_id"`
	AudioKey        string  `json:"audio_key,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// NatsWorker listens for synthesis jobs on a NATS subject and processes
// them with the injected producer, archiving audio in the object store.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	producer       core.Producer
	rules          *core.Rules
	log            *logger.Logger
}

// New creates a NATS worker. All dependencies are required.
func New(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	producer core.Producer,
	rules *core.Rules,
	log *logger.Logger,
) (*NatsWorker, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	if natsConnection == nil || store == nil || producer == nil || rules == nil {
		return nil, ErrNilDependency
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		producer:       producer,
		rules:          rules,
		log:            log,
	}, nil
}

// Run subscribes to the synthesis subject and blocks until ctx is
// cancelled, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var job SynthesisJob

	unmarshalErr := json.Unmarshal(msg.Data, &job)
	if unmarshalErr != nil {
		w.log.Error("Failed to unmarshal synthesis job: %v", unmarshalErr)
		w.reply(msg, SynthesisResult{Error: "malformed job payload"})

		return
	}

	audioKey, seconds, processErr := w.processJob(ctx, job)
	if processErr != nil {
		w.log.Error("Failed to process synthesis job %s: %v", job.JobID, processErr)
		w.reply(msg, SynthesisResult{JobID: job.JobID, Error: processErr.Error()})

		return
	}

	w.reply(msg, SynthesisResult{
		JobID:           job.JobID,
		AudioKey:        audioKey,
		DurationSeconds: seconds,
	})
}

// processJob validates the job, synthesizes the audio, and uploads it under
// a fresh uuid key.
func (w *NatsWorker) processJob(
	ctx context.Context,
	job SynthesisJob,
) (string, float64, error) {
	req := core.Request{
		Text:        job.Text,
		Voice:       job.Voice,
		Language:    job.Language,
		Temperature: job.Temperature,
	}

	validationErr := w.rules.ValidateRequest(&req)
	if validationErr != nil {
		return "", 0, validationErr
	}

	started := time.Now()

	audioData, synthErr := w.producer.Synthesize(ctx, req)
	if synthErr != nil {
		return "", 0, fmt.Errorf("failed to synthesize audio: %w", synthErr)
	}

	audioKey := uuid.NewString() + audioKeyExtension

	uploadErr := w.store.Upload(ctx, audioKey, audioData)
	if uploadErr != nil {
		return "", 0, fmt.Errorf(
			"failed to upload audio for key '%s': %w",
			audioKey,
			uploadErr,
		)
	}

	return audioKey, time.Since(started).Seconds(), nil
}

// reply responds on the message's reply subject when one is set.
func (w *NatsWorker) reply(msg *nats.Msg, result SynthesisResult) {
	if msg.Reply == "" {
		return
	}

	data, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		w.log.Error("Failed to marshal synthesis result: %v", marshalErr)

		return
	}

	respondErr := msg.Respond(data)
	if respondErr != nil {
		w.log.Error("Failed to publish synthesis result: %v", respondErr)
	}
}
