package stt

import (
	"encoding/binary"
	"testing"
)

// frameOf builds a PCM16 frame of ms milliseconds where every sample
// has the given amplitude.
func frameOf(ms int, amplitude int16) []byte {
	samples := SampleRate * ms / 1000
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(amplitude))
	}
	return frame
}

func TestComputeRMS(t *testing.T) {
	if got := ComputeRMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f", got)
	}
	if got := ComputeRMS(frameOf(20, 0)); got != 0 {
		t.Errorf("RMS(silence) = %f", got)
	}
	got := ComputeRMS(frameOf(20, 1000))
	if got < 999 || got > 1001 {
		t.Errorf("RMS(constant 1000) = %f, want 1000", got)
	}
}

func TestDetectorFlushOnSilence(t *testing.T) {
	d := NewDetector()

	// Leading silence produces nothing.
	for i := 0; i < 10; i++ {
		if out := d.Feed(frameOf(20, 0)); out != nil {
			t.Fatal("utterance emitted during leading silence")
		}
	}

	// 200ms of speech.
	speechBytes := 0
	for i := 0; i < 10; i++ {
		frame := frameOf(20, 2000)
		speechBytes += len(frame)
		if out := d.Feed(frame); out != nil {
			t.Fatal("utterance emitted mid-speech")
		}
	}

	// Silence closes the window after DefaultSilenceMs.
	var utterance []byte
	for i := 0; i < DefaultSilenceMs/20; i++ {
		if out := d.Feed(frameOf(20, 0)); out != nil {
			utterance = out
			break
		}
	}
	if utterance == nil {
		t.Fatal("no utterance after silence window")
	}
	if len(utterance) < speechBytes {
		t.Errorf("utterance %d bytes, want at least %d speech bytes", len(utterance), speechBytes)
	}

	// Detector resets: more silence produces nothing.
	if out := d.Feed(frameOf(20, 0)); out != nil {
		t.Error("utterance emitted after reset")
	}
}

func TestDetectorMaxUtterance(t *testing.T) {
	d := NewDetector()
	d.MaxUtteranceMs = 100

	var utterance []byte
	for i := 0; i < 20; i++ {
		if out := d.Feed(frameOf(20, 2000)); out != nil {
			utterance = out
			break
		}
	}
	if utterance == nil {
		t.Fatal("no forced flush at max duration")
	}
}

func TestDetectorFlushWithoutSpeech(t *testing.T) {
	d := NewDetector()
	d.Feed(frameOf(20, 0))
	if out := d.Flush(); out != nil {
		t.Errorf("Flush after pure silence = %d bytes, want nil", len(out))
	}
}
