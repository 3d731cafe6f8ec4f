// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// seeka.
//
// Configuration lives in TOML with sensible defaults, environment variable
// overrides, and validation. API keys additionally load from a dotenv file
// so they stay out of the main config.
//
// Locations (in order of precedence):
//   - environment variables (SEEKA_*, OPENAI_API_KEY)
//   - ~/.seeka/.env
//   - ~/.seeka/config.toml
//   - built-in defaults
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/seeka-ai/seeka-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete seeka configuration.
type Config struct {
	Version string `toml:"version"`

	// AI holds the generation parameters passed through to the chat
	// completion endpoint.
	AI AIConfig `toml:"ai"`

	// Endpoints are the external collaborators seeka proxies to.
	Endpoints EndpointsConfig `toml:"endpoints"`

	// Pipeline controls retry and timeout behavior of turn processing.
	Pipeline PipelineConfig `toml:"pipeline"`

	// UI holds terminal UI preferences.
	UI UIConfig `toml:"ui"`
}

// AIConfig contains model selection and sampling parameters.
type AIConfig struct {
	// Model is the chat completion model.
	Model string `toml:"model"`
	// VisionModel is forced for image turns regardless of Model.
	VisionModel string `toml:"vision_model"`
	// ClassifierModel is the tool-calling model used for mode detection.
	ClassifierModel string `toml:"classifier_model"`

	Temperature      float64 `toml:"temperature"`
	MaxTokens        int     `toml:"max_tokens"`
	TopP             float64 `toml:"top_p"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	PresencePenalty  float64 `toml:"presence_penalty"`

	// CustomPrompt, when set, is spliced in immediately before the final
	// user message of each turn.
	CustomPrompt string `toml:"custom_prompt"`
}

// EndpointsConfig contains the base URLs and credentials for the external
// services a turn may touch.
type EndpointsConfig struct {
	// LLMBaseURL is an OpenAI-compatible API base (chat completions and
	// tool calling).
	LLMBaseURL string `toml:"llm_base_url"`
	// LLMAPIKey authenticates against LLMBaseURL. Usually supplied via
	// OPENAI_API_KEY rather than the config file.
	LLMAPIKey string `toml:"llm_api_key"`

	SearchURL     string `toml:"search_url"`
	ScrapeURL     string `toml:"scrape_url"`
	WeatherURL    string `toml:"weather_url"`
	StockURL      string `toml:"stock_url"`
	DictionaryURL string `toml:"dictionary_url"`
}

// PipelineConfig contains retry and timeout settings for turn processing.
type PipelineConfig struct {
	// MaxAttempts bounds automatic retries per pipeline stage.
	MaxAttempts int `toml:"max_attempts"`
	// RetryDelayMs is the fixed delay between attempts.
	RetryDelayMs int `toml:"retry_delay_ms"`
	// StageTimeoutSecs bounds each pipeline stage. The synthesis stream is
	// exempt: it is bounded by user cancellation instead.
	StageTimeoutSecs int `toml:"stage_timeout_secs"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	// Theme selects the glamour style for rendered answers.
	Theme string `toml:"theme"`
	// ShowCitations toggles the numbered source list under search answers.
	ShowCitations bool `toml:"show_citations"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Version: "1",
		AI: AIConfig{
			Model:            "gpt-3.5-turbo",
			VisionModel:      "gpt-4o",
			ClassifierModel:  "gpt-3.5-turbo-0125",
			Temperature:      0.7,
			MaxTokens:        1024,
			TopP:             1.0,
			FrequencyPenalty: 0.0,
			PresencePenalty:  0.0,
		},
		Endpoints: EndpointsConfig{
			LLMBaseURL:    "https://api.openai.com/v1",
			SearchURL:     "https://api.seeka.app/search",
			ScrapeURL:     "https://api.seeka.app/scrape",
			WeatherURL:    "https://api.seeka.app/weather",
			StockURL:      "https://api.seeka.app/stock",
			DictionaryURL: "https://api.seeka.app/dictionary",
		},
		Pipeline: PipelineConfig{
			MaxAttempts:      3,
			RetryDelayMs:     1000,
			StageTimeoutSecs: 60,
		},
		UI: UIConfig{
			Theme:         "dark",
			ShowCitations: true,
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Dir returns the seeka data directory (~/.seeka), creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".seeka")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads configuration from the default location, applying the dotenv
// file and environment overrides on top. A missing config file is not an
// error: defaults apply.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Secrets live beside the config file in a dotenv file. godotenv.Load
	// never overrides variables already present in the environment.
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides maps environment variables onto config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Endpoints.LLMAPIKey = v
	}
	if v := os.Getenv("SEEKA_LLM_BASE_URL"); v != "" {
		cfg.Endpoints.LLMBaseURL = v
	}
	if v := os.Getenv("SEEKA_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("SEEKA_CUSTOM_PROMPT"); v != "" {
		cfg.AI.CustomPrompt = v
	}
	if v := os.Getenv("SEEKA_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AI.MaxTokens = n
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

var errInvalidConfig = errors.New("invalid configuration")

// Validate checks value ranges and URL shapes, clamping recoverable values
// and rejecting the rest.
func (c *Config) Validate() error {
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v out of range [0,2]", errInvalidConfig, c.AI.Temperature)
	}
	if c.AI.TopP < 0 || c.AI.TopP > 1 {
		return fmt.Errorf("%w: top_p %v out of range [0,1]", errInvalidConfig, c.AI.TopP)
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = DefaultConfig().AI.MaxTokens
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = 1
	}
	if c.Pipeline.RetryDelayMs < 0 {
		c.Pipeline.RetryDelayMs = 0
	}
	if c.Pipeline.StageTimeoutSecs <= 0 {
		c.Pipeline.StageTimeoutSecs = DefaultConfig().Pipeline.StageTimeoutSecs
	}

	for name, raw := range map[string]string{
		"llm_base_url":   c.Endpoints.LLMBaseURL,
		"search_url":     c.Endpoints.SearchURL,
		"scrape_url":     c.Endpoints.ScrapeURL,
		"weather_url":    c.Endpoints.WeatherURL,
		"stock_url":      c.Endpoints.StockURL,
		"dictionary_url": c.Endpoints.DictionaryURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute URL", errInvalidConfig, name, raw)
		}
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default location atomically.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to an explicit path atomically.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}
