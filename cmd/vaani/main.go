// Vaani - bilingual Hindi/English voice agent for telephone calls.
// Connects to a call gateway, listens for caller speech, and replies
// with synthesized speech in the caller's language.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vaani-labs/go-vaani/internal/config"
	"github.com/vaani-labs/go-vaani/internal/log"
	"github.com/vaani-labs/go-vaani/pkg/audio"
	"github.com/vaani-labs/go-vaani/pkg/brain"
	"github.com/vaani-labs/go-vaani/pkg/call"
	"github.com/vaani-labs/go-vaani/pkg/provider"
	"github.com/vaani-labs/go-vaani/pkg/stt"
	"github.com/vaani-labs/go-vaani/pkg/telephony"
	"github.com/vaani-labs/go-vaani/pkg/tts"
	"github.com/vaani-labs/go-vaani/pkg/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to YAML config file (default ./vaani.yaml)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	webAddr := flag.String("web", "", "Control server listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *webAddr != "" {
		cfg.Web.Addr = *webAddr
	}
	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Speech recognition. Whisper is the only recognizer and needs a
	// local model file, so a missing model is an init failure.
	if cfg.WhisperModel == "" {
		logger.Error("no whisper model configured, set WHISPER_MODEL or whisper_model in config")
		return 1
	}
	recognizer, err := stt.NewWhisper(cfg.WhisperModel, stt.WithWhisperLogger(logger))
	if err != nil {
		logger.Error("whisper init failed", "model", cfg.WhisperModel, "error", err)
		return 1
	}
	defer recognizer.Close()
	transcriber := stt.NewPipeline(recognizer, logger)

	// Speech synthesis chain plus the local artifact store and player.
	registry := buildTTSRegistry(ctx, logger)
	if registry.Len() == 0 {
		logger.Warn("no TTS provider credentials found, replies degrade to text-only")
	}
	store, err := tts.NewStore(cfg.AudioDir)
	if err != nil {
		logger.Error("artifact store init failed", "error", err)
		return 1
	}
	player := audio.NewPlayer(logger)
	synthesizer := tts.NewPipeline(registry, store, player, logger)

	// Conversation brain. One engine per call; the providers behind it
	// are stateless and shared.
	newResponder, err := buildResponderFactory(cfg, logger)
	if err != nil {
		logger.Error("chat provider init failed", "error", err)
		return 1
	}

	client, err := telephony.DialGateway(ctx, cfg.Gateway.URL, logger)
	if err != nil {
		logger.Error("gateway connect failed", "url", cfg.Gateway.URL, "error", err)
		return 1
	}

	// The server renders controller events, so the event hook closes
	// over a variable assigned right after the controller exists.
	var server *web.Server
	controller := call.NewController(client, transcriber, synthesizer, newResponder,
		call.WithCredentials(cfg.Gateway.User, cfg.Gateway.Pass),
		call.WithLanguageHint(cfg.Language),
		call.WithTurnBackoff(time.Duration(cfg.TurnBackoffMs)*time.Millisecond),
		call.WithSpeaking(player.IsSpeaking),
		call.WithLogger(logger),
		call.WithOnEvent(func(ev call.Event) { server.HandleEvent(ev) }),
	)
	defer controller.Close()

	server = web.NewServer(cfg.Web.Addr, controller, logger)
	server.StartAsync()
	defer server.Shutdown()

	if err := controller.Start(ctx); err != nil {
		logger.Error("gateway registration failed", "error", err)
		return 1
	}
	logger.Info("registered with gateway",
		"url", cfg.Gateway.URL, "language", cfg.Language, "web", cfg.Web.Addr)

	return repl(ctx, controller, cfg.Language)
}

// buildTTSRegistry probes credentials and registers every provider that
// can authenticate, in fixed preference order. No network calls happen
// here; a provider that authenticates but fails at synthesis time is
// skipped by the pipeline's fallback.
func buildTTSRegistry(ctx context.Context, logger *slog.Logger) *provider.Registry[tts.Provider] {
	registry := provider.NewRegistry[tts.Provider](provider.KindTTS, logger)

	if provider.HasCredentials("GOOGLE_API_KEY") || provider.HasCredentials("GOOGLE_APPLICATION_CREDENTIALS") {
		g, err := tts.NewGoogle(ctx,
			tts.WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
			tts.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
			tts.WithOutputFormat(tts.EncodingPCM16),
			tts.WithLogger(logger))
		if err != nil {
			logger.Warn("google tts unavailable", "error", err)
		} else {
			registry.Register(g.Name(), 0, true, tts.Provider(g))
		}
	} else {
		logger.Info("google tts skipped, no credentials")
	}

	if provider.HasCredentials("ELEVENLABS_API_KEY") {
		e, err := tts.NewElevenLabs(
			tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
			tts.WithOutputFormat(tts.EncodingPCM16),
			tts.WithLogger(logger))
		if err != nil {
			logger.Warn("elevenlabs tts unavailable", "error", err)
		} else {
			registry.Register(e.Name(), 1, true, tts.Provider(e))
		}
	} else {
		logger.Info("elevenlabs tts skipped, no credentials")
	}

	if provider.HasCredentials("OPENAI_API_KEY") {
		o, err := tts.NewOpenAI(
			tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
			tts.WithOutputFormat(tts.EncodingPCM24),
			tts.WithLogger(logger))
		if err != nil {
			logger.Warn("openai tts unavailable", "error", err)
		} else {
			registry.Register(o.Name(), 2, true, tts.Provider(o))
		}
	} else {
		logger.Info("openai tts skipped, no credentials")
	}

	return registry
}

// buildResponderFactory builds the per-call conversation engine factory.
// OpenAI is the primary chat provider with Gemini as the alternate; at
// least one of the two must have credentials.
func buildResponderFactory(cfg *config.Config, logger *slog.Logger) (func() call.Responder, error) {
	var primary, alternate brain.Provider

	if provider.HasCredentials("OPENAI_API_KEY") {
		p, err := brain.NewOpenAI(
			brain.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
			brain.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		primary = p
	}
	if provider.HasCredentials("GEMINI_API_KEY") {
		g, err := brain.NewGemini(
			brain.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
			brain.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if primary == nil {
			primary = g
		} else {
			alternate = g
		}
	}
	if primary == nil {
		return nil, errors.New("set OPENAI_API_KEY or GEMINI_API_KEY")
	}

	return func() call.Responder {
		opts := []brain.EngineOption{
			brain.WithHistoryLimit(cfg.HistoryMax),
			brain.WithEngineLogger(logger),
		}
		if alternate != nil {
			opts = append(opts, brain.WithAlternate(alternate))
		}
		return brain.NewEngine(primary, opts...)
	}, nil
}

// repl reads commands from stdin until quit, EOF, or a signal.
func repl(ctx context.Context, controller *call.Controller, languageHint string) int {
	fmt.Println("vaani ready. Commands: call <target>, answer, hangup, status, quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "call":
				if len(fields) != 2 {
					fmt.Println("usage: call <target>")
					continue
				}
				if err := controller.Dial(ctx, fields[1]); err != nil {
					fmt.Println("call failed:", err)
				}
			case "answer":
				if err := controller.Answer(ctx); err != nil {
					fmt.Println("answer failed:", err)
				}
			case "hangup":
				if err := controller.Hangup(); err != nil {
					fmt.Println("hangup failed:", err)
				}
			case "status":
				printStatus(controller, languageHint)
			case "quit", "exit":
				return 0
			default:
				fmt.Println("unknown command:", fields[0])
			}
		}
	}
}

func printStatus(controller *call.Controller, languageHint string) {
	state, active := controller.Status()
	fmt.Println("state:   ", state)
	fmt.Println("language:", languageHint)
	if active != nil {
		fmt.Println("remote:  ", active.Remote)
		fmt.Println("duration:", active.Duration().Round(time.Second))
	}
}
