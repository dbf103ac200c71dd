// Package audio provides local audio playback and PCM sample utilities.
//
// Playback shells out to whichever command line player is installed,
// trying each mechanism in a fixed order. The player never fails a
// conversation turn on its own: callers treat playback errors as a
// degrade-to-text signal.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// ErrNoPlayer is returned when no playback mechanism is available on
// this host.
var ErrNoPlayer = fmt.Errorf("audio: no playback mechanism available")

// mechanism describes one command line playback tool. rawArgs plays a
// headerless 16 kHz mono PCM16 stream; a nil rawArgs means the tool
// cannot take raw input and is skipped for .pcm artifacts.
type mechanism struct {
	name    string
	args    []string
	rawArgs []string
}

// Playback mechanisms in preference order. ffplay handles every format
// we synthesize; the rest are platform fallbacks.
var mechanisms = []mechanism{
	{
		name:    "ffplay",
		args:    []string{"-nodisp", "-autoexit", "-loglevel", "quiet"},
		rawArgs: []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-f", "s16le", "-ar", "16000", "-ch_layout", "mono"},
	},
	{
		name:    "aplay",
		args:    []string{"-q"},
		rawArgs: []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1"},
	},
	{
		name:    "paplay",
		args:    nil,
		rawArgs: []string{"--raw", "--format=s16le", "--rate=16000", "--channels=1"},
	},
	{name: "afplay", args: nil},
}

// Player plays audio artifacts through local command line tools.
type Player struct {
	logger *slog.Logger

	// lookPath and run are injectable for tests.
	lookPath func(file string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error

	speakingMu sync.Mutex
	speaking   bool
}

// NewPlayer creates a player that discovers mechanisms from PATH.
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		logger:   logger.With("component", "audio.player"),
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Play plays the audio file at path, trying each mechanism in order
// until one succeeds. A missing or empty file fails without invoking
// any mechanism.
func (p *Player) Play(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("audio: stat artifact: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio: empty artifact %s", path)
	}

	p.setSpeaking(true)
	defer p.setSpeaking(false)

	raw := filepath.Ext(path) == ".pcm"

	var lastErr error
	tried := 0
	for _, m := range mechanisms {
		mechArgs := m.args
		if raw {
			if m.rawArgs == nil {
				continue
			}
			mechArgs = m.rawArgs
		}
		if _, err := p.lookPath(m.name); err != nil {
			continue
		}
		tried++
		args := append(append([]string{}, mechArgs...), path)
		if err := p.run(ctx, m.name, args...); err != nil {
			p.logger.Debug("playback mechanism failed", "mechanism", m.name, "error", err)
			lastErr = fmt.Errorf("audio: %s: %w", m.name, err)
			continue
		}
		p.logger.Debug("played artifact", "mechanism", m.name, "path", path, "bytes", info.Size())
		return nil
	}

	if tried == 0 {
		return ErrNoPlayer
	}
	return lastErr
}

// IsSpeaking reports whether playback is in progress.
func (p *Player) IsSpeaking() bool {
	p.speakingMu.Lock()
	defer p.speakingMu.Unlock()
	return p.speaking
}

func (p *Player) setSpeaking(v bool) {
	p.speakingMu.Lock()
	p.speaking = v
	p.speakingMu.Unlock()
}

// ConvertPCM16ToInt16 converts a little-endian PCM16 byte slice to int16 samples.
func ConvertPCM16ToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// ConvertInt16ToPCM16 converts int16 samples to a little-endian byte slice.
func ConvertInt16ToPCM16(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// Resample linearly resamples audio from srcRate to dstRate.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(dstRate) / float64(srcRate)
	newLen := int(float64(len(samples)) * ratio)
	result := make([]int16, newLen)

	for i := 0; i < newLen; i++ {
		srcIdx := float64(i) / ratio
		idx := int(srcIdx)
		if idx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			frac := srcIdx - float64(idx)
			result[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
		}
	}

	return result
}
