// Package tts provides a unified interface for text-to-speech providers
// with language-aware voice selection.
//
// The package supports multiple TTS backends: Google Cloud TTS, ElevenLabs
// and OpenAI. All providers implement the Provider interface, enabling
// seamless switching without changing caller code. The Pipeline type adds
// the two-level fallback the call loop relies on: providers are tried in
// registry priority order, and a successful synthesis is played through an
// ordered chain of local playback mechanisms, degrading to text output
// rather than failing the conversational turn.
//
// Example usage:
//
//	p, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("your-voice-id"),
//	)
//	defer p.Close()
//
//	result, _ := p.Synthesize(ctx, "Hello world", language.English)
//	// result.Audio contains MP3/PCM audio bytes
package tts

import (
	"context"
	"time"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider
// switching.
type Provider interface {
	// Synthesize converts text to audio using the voice for the given
	// language track, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string, tag language.Tag) (*AudioResult, error)

	// Name returns the provider tag used for logging and artifact naming.
	Name() string

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round-trip time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec.
	Encoding Encoding

	// SampleRate in Hz (e.g., 24000, 44100, 22050).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingMP3 is MP3 at 44.1kHz.
	EncodingMP3 Encoding = "mp3_44100_128"

	// EncodingPCM16 is 16kHz mono PCM16, matching the telephony path.
	EncodingPCM16 Encoding = "pcm_16000"

	// EncodingPCM24 is 24kHz mono PCM16.
	EncodingPCM24 Encoding = "pcm_24000"
)

// Ext returns the artifact file extension for the encoding.
func (e Encoding) Ext() string {
	switch e {
	case EncodingMP3:
		return "mp3"
	default:
		return "pcm"
	}
}

// SampleRate returns the sample rate in Hz for the encoding.
func (e Encoding) SampleRate() int {
	switch e {
	case EncodingPCM16:
		return 16000
	case EncodingPCM24:
		return 24000
	default:
		return 44100
	}
}
