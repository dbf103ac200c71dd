package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

const providerGoogle = "google"

// Google Cloud TTS locale codes per language track.
const (
	googleLocaleEnglish = "en-IN"
	googleLocaleHindi   = "hi-IN"
)

// wavHeaderLen is the size of the RIFF header Cloud TTS prepends to
// LINEAR16 audio.
const wavHeaderLen = 44

// Google implements Provider for Google Cloud Text-to-Speech. It is the
// highest-priority provider because it has native Hindi voices.
//
// Authentication accepts either an API key (GOOGLE_API_KEY) or a
// service-account credentials file (GOOGLE_APPLICATION_CREDENTIALS).
type Google struct {
	config  *Config
	service *texttospeech.Service
	tokens  oauth2.TokenSource
	logger  *slog.Logger
}

// NewGoogle creates a Google Cloud TTS provider.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Google{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.google"),
	}

	var clientOpts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, WrapError(providerGoogle, fmt.Errorf("read credentials: %w", err))
		}
		creds, err := google.CredentialsFromJSON(ctx, data, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, WrapError(providerGoogle, fmt.Errorf("parse credentials: %w", err))
		}
		g.tokens = creds.TokenSource
		clientOpts = append(clientOpts, option.WithTokenSource(creds.TokenSource))
	default:
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.BaseURL))
	}

	service, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}
	g.service = service

	return g, nil
}

// Name returns the provider tag.
func (g *Google) Name() string {
	return providerGoogle
}

// Synthesize converts text to audio using the locale voice for the
// language track.
func (g *Google) Synthesize(ctx context.Context, text string, tag language.Tag) (*AudioResult, error) {
	start := time.Now()

	encoding := g.config.OutputFormat
	audioCfg := &texttospeech.AudioConfig{AudioEncoding: "MP3"}
	if encoding != EncodingMP3 {
		audioCfg = &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(encoding.SampleRate()),
		}
	}

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.locale(tag),
			SsmlGender:   "FEMALE",
		},
		AudioConfig: audioCfg,
	}

	resp, err := g.service.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerGoogle, ErrEmptyAudio)
	}

	// LINEAR16 responses carry a 44-byte WAV header; the rest of the
	// pipeline expects headerless PCM.
	if encoding != EncodingMP3 && len(audio) > wavHeaderLen {
		audio = audio[wavHeaderLen:]
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"locale", g.locale(tag),
	)

	return &AudioResult{
		Audio:     audio,
		Format:    AudioFormat{Encoding: encoding, SampleRate: encoding.SampleRate(), Channels: 1},
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  estimateDuration(len(text)),
	}, nil
}

// Health verifies the credentials by listing available voices.
func (g *Google) Health(ctx context.Context) error {
	if g.tokens != nil {
		if _, err := g.tokens.Token(); err != nil {
			return WrapError(providerGoogle, fmt.Errorf("token source: %w", err))
		}
	}
	if _, err := g.service.Voices.List().Context(ctx).Do(); err != nil {
		return WrapError(providerGoogle, fmt.Errorf("list voices: %w", err))
	}
	return nil
}

// Close releases resources held by the provider.
func (g *Google) Close() error {
	return nil
}

// locale maps the language track to a Cloud TTS locale via the shared
// voice selection in pkg/language. Mixed utterances use the Indian
// English voice, which renders transliterated Hindi acceptably.
func (g *Google) locale(tag language.Tag) string {
	if language.Voice(tag) == "hi" {
		return googleLocaleHindi
	}
	return googleLocaleEnglish
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
