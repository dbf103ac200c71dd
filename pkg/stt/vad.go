package stt

import (
	"encoding/binary"
	"math"
)

// Silence segmentation defaults. A frame quieter than the RMS threshold
// counts toward the silence window; enough consecutive silence flushes
// the buffered speech as one utterance.
const (
	// DefaultRMSThreshold is the root-mean-square energy level in
	// 16-bit PCM units below which a frame is treated as silence.
	DefaultRMSThreshold = 300.0

	// DefaultSilenceMs is the consecutive-silence duration that ends
	// an utterance.
	DefaultSilenceMs = 500

	// DefaultMaxUtteranceMs caps buffered speech before a forced flush.
	DefaultMaxUtteranceMs = 10_000
)

// Detector segments a PCM16 frame stream into utterances by RMS energy.
// Feed frames in capture order; a non-nil return value is one complete
// utterance of buffered speech. Detector is not safe for concurrent
// use; confine it to the capture loop.
type Detector struct {
	RMSThreshold   float64
	SilenceMs      int
	MaxUtteranceMs int
	SampleRate     int
	Channels       int

	buffer    []byte
	hadSpeech bool
	silenceMs int
}

// NewDetector creates a detector with the default thresholds for call
// audio.
func NewDetector() *Detector {
	return &Detector{
		RMSThreshold:   DefaultRMSThreshold,
		SilenceMs:      DefaultSilenceMs,
		MaxUtteranceMs: DefaultMaxUtteranceMs,
		SampleRate:     SampleRate,
		Channels:       Channels,
	}
}

// Feed consumes one captured frame. It returns a complete utterance
// when the trailing silence window closes or the buffer hits the
// maximum duration, and nil otherwise.
func (d *Detector) Feed(frame []byte) []byte {
	rms := ComputeRMS(frame)
	frameMs := frameDurationMs(frame, d.SampleRate, d.Channels)

	if rms < d.RMSThreshold {
		if !d.hadSpeech {
			return nil
		}
		d.silenceMs += frameMs
		d.buffer = append(d.buffer, frame...)
		if d.silenceMs >= d.SilenceMs {
			return d.Flush()
		}
		return nil
	}

	d.hadSpeech = true
	d.silenceMs = 0
	d.buffer = append(d.buffer, frame...)

	bytesPerMs := d.SampleRate * d.Channels * (BitsPerSample / 8) / 1000
	if bytesPerMs > 0 && len(d.buffer) >= d.MaxUtteranceMs*bytesPerMs {
		return d.Flush()
	}
	return nil
}

// Flush returns any buffered speech and resets the detector. Returns
// nil when nothing was buffered or only silence was seen.
func (d *Detector) Flush() []byte {
	buf := d.buffer
	had := d.hadSpeech
	d.buffer = nil
	d.hadSpeech = false
	d.silenceMs = 0
	if !had || len(buf) == 0 {
		return nil
	}
	return buf
}

// ComputeRMS returns the root-mean-square energy of a PCM16 frame in
// 16-bit sample units.
func ComputeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

func frameDurationMs(frame []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * channels * (BitsPerSample / 8)
	return len(frame) * 1000 / bytesPerSec
}
