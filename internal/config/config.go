// Package config loads go-vaani configuration from an optional YAML
// file with environment variable overrides. Provider API keys stay in
// the environment only; the file never holds credentials.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultGatewayURL = "ws://localhost:7060/call"
	DefaultLanguage   = "auto"
	DefaultWebAddr    = ":8085"
	DefaultLogLevel   = "info"
	DefaultBackoffMs  = 500
	DefaultHistoryMax = 20
)

// Config is the full process configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Gateway struct {
		URL  string `yaml:"url"`
		User string `yaml:"user"`
		Pass string `yaml:"pass"`
	} `yaml:"gateway"`

	// Language pins every call to one language track; "auto" detects
	// per utterance.
	Language string `yaml:"language"`

	// WhisperModel is the path to the whisper.cpp model file.
	WhisperModel string `yaml:"whisper_model"`

	// AudioDir stores synthesized audio artifacts. Empty means the
	// system temp directory.
	AudioDir string `yaml:"audio_dir"`

	// TurnBackoffMs is the pause after a failed conversation turn.
	TurnBackoffMs int `yaml:"turn_backoff_ms"`

	// HistoryMax caps conversation history length per call.
	HistoryMax int `yaml:"history_max"`

	Web struct {
		Addr string `yaml:"addr"`
	} `yaml:"web"`
}

// Load reads configuration: defaults, then the YAML file at path (if
// path is empty, ./vaani.yaml is tried; a missing file is fine), then
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel:      DefaultLogLevel,
		Language:      DefaultLanguage,
		TurnBackoffMs: DefaultBackoffMs,
		HistoryMax:    DefaultHistoryMax,
	}
	cfg.Gateway.URL = DefaultGatewayURL
	cfg.Web.Addr = DefaultWebAddr

	explicit := path != ""
	if path == "" {
		path = "vaani.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Optional file, defaults apply.
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv lets the environment override any file value.
func applyEnv(cfg *Config) {
	setEnv(&cfg.LogLevel, "VAANI_LOG_LEVEL")
	setEnv(&cfg.Gateway.URL, "VAANI_GATEWAY_URL")
	setEnv(&cfg.Gateway.User, "VAANI_GATEWAY_USER")
	setEnv(&cfg.Gateway.Pass, "VAANI_GATEWAY_PASS")
	setEnv(&cfg.Language, "VAANI_LANGUAGE")
	setEnv(&cfg.WhisperModel, "WHISPER_MODEL")
	setEnv(&cfg.AudioDir, "VAANI_AUDIO_DIR")
	setEnv(&cfg.Web.Addr, "VAANI_WEB_ADDR")

	if v := os.Getenv("VAANI_TURN_BACKOFF_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.TurnBackoffMs = n
		}
	}
	if v := os.Getenv("VAANI_HISTORY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryMax = n
		}
	}
}

func setEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
