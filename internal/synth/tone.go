package synth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/naijavoice/tts-api/internal/core"
)

// Default test-signal parameters: two seconds of A4 at the engine's 24 kHz
// output rate.
const (
	DefaultToneSampleRate = 24000
	DefaultToneFrequency  = 440.0
	DefaultToneDuration   = 2 * time.Second
)

// Bounds for tone generation parameters.
const (
	maxSampleRate = 192000
	maxFrequency  = 20000.0
)

// PCM constants for 16-bit mono WAV output.
const (
	toneAmplitude    = 0.3
	pcmMaxAmplitude  = 32767
	wavHeaderSize    = 36
	wavFmtChunkSize  = 16
	wavAudioFormat   = 1 // Linear PCM.
	wavChannels      = 1
	wavBitsPerSample = 16
	wavBlockAlign    = wavChannels * wavBitsPerSample / 8
)

// Static errors.
var (
	// ErrSampleRateRange indicates an out-of-range sample rate.
	ErrSampleRateRange = errors.New("sample rate out of range")
	// ErrFrequencyRange indicates an out-of-range tone frequency.
	ErrFrequencyRange = errors.New("frequency out of range")
	// ErrDurationNotPositive indicates a non-positive tone duration.
	ErrDurationNotPositive = errors.New("duration must be positive")
)

// Tone is a core.Producer that generates a deterministic sine-wave WAV
// signal instead of real speech. It exists for integration testing and
// demo deployments where no inference engine is available, and is only
// ever selected explicitly via configuration.
type Tone struct {
	sampleRate int
	frequency  float64
	duration   time.Duration
}

// NewTone creates a tone producer with the given signal parameters.
// Non-positive values fall back to the defaults; out-of-range values are
// rejected.
func NewTone(sampleRate int, frequency float64, duration time.Duration) (*Tone, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultToneSampleRate
	}

	if frequency <= 0 {
		frequency = DefaultToneFrequency
	}

	if duration == 0 {
		duration = DefaultToneDuration
	}

	if sampleRate > maxSampleRate {
		return nil, fmt.Errorf(
			"%w: got %d, maximum is %d",
			ErrSampleRateRange,
			sampleRate,
			maxSampleRate,
		)
	}

	if frequency > maxFrequency {
		return nil, fmt.Errorf(
			"%w: got %.1f, maximum is %.1f",
			ErrFrequencyRange,
			frequency,
			maxFrequency,
		)
	}

	if duration < 0 {
		return nil, ErrDurationNotPositive
	}

	return &Tone{
		sampleRate: sampleRate,
		frequency:  frequency,
		duration:   duration,
	}, nil
}

// Mode identifies this producer as the synthetic test signal.
func (p *Tone) Mode() string {
	return ModeTone
}

// Synthesize returns a mono 16-bit PCM WAV sine wave. The request's voice
// and language are accepted but do not affect the signal; text is still
// validated so the producer behaves like the real engine at the boundary.
func (p *Tone) Synthesize(_ context.Context, req core.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	sampleCount := int(float64(p.sampleRate) * p.duration.Seconds())
	samples := make([]int16, sampleCount)

	for i := range samples {
		instant := float64(i) / float64(p.sampleRate)
		value := math.Sin(2*math.Pi*p.frequency*instant) * toneAmplitude
		samples[i] = int16(value * pcmMaxAmplitude)
	}

	return encodeWAV(samples, p.sampleRate)
}

// Healthy always succeeds: the tone producer has no external dependency.
func (p *Tone) Healthy(_ context.Context) error {
	return nil
}

// encodeWAV wraps raw 16-bit mono samples in a RIFF/WAVE container.
func encodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	dataSize := len(samples) * wavBlockAlign
	buffer := &bytes.Buffer{}

	buffer.WriteString("RIFF")
	writeLE(buffer, uint32(wavHeaderSize+dataSize))
	buffer.WriteString("WAVE")

	buffer.WriteString("fmt ")
	writeLE(buffer, uint32(wavFmtChunkSize))
	writeLE(buffer, uint16(wavAudioFormat))
	writeLE(buffer, uint16(wavChannels))
	writeLE(buffer, uint32(sampleRate))
	writeLE(buffer, uint32(sampleRate*wavBlockAlign))
	writeLE(buffer, uint16(wavBlockAlign))
	writeLE(buffer, uint16(wavBitsPerSample))

	buffer.WriteString("data")
	writeLE(buffer, uint32(dataSize))

	writeErr := binary.Write(buffer, binary.LittleEndian, samples)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to encode PCM samples: %w", writeErr)
	}

	return buffer.Bytes(), nil
}

func writeLE(buffer *bytes.Buffer, value any) {
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(buffer, binary.LittleEndian, value)
}
