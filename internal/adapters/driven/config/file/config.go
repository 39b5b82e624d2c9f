// Package file provides the TOML configuration layer. Configuration
// lives in ~/.ragchat/config.toml and covers providers, model
// deployments and pipeline tuning.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
)

// DefaultDirName is the configuration directory under $HOME.
const DefaultDirName = ".ragchat"

// configFileName is the file within the config directory.
const configFileName = "config.toml"

// Config is the full application configuration.
type Config struct {
	// DefaultModel is the alias used when a session names none.
	DefaultModel string `toml:"default_model"`

	Models     []ModelConfig    `toml:"models"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Generation GenerationConfig `toml:"generation"`
	Chat       ChatConfig       `toml:"chat"`
	Ingest     IngestConfig     `toml:"ingest"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// ModelConfig declares one model deployment.
type ModelConfig struct {
	Alias        string   `toml:"alias"`
	Handle       string   `toml:"handle"`
	Provider     string   `toml:"provider"`
	Capabilities []string `toml:"capabilities"`
	Capacity     int      `toml:"capacity"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama".
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	Dimensions int    `toml:"dimensions"`
}

// GenerationConfig tunes the generation backends.
type GenerationConfig struct {
	// OpenAIKey is the API key for the openai provider. The
	// OPENAI_API_KEY environment variable takes precedence.
	OpenAIKey     string `toml:"openai_key"`
	OpenAIBaseURL string `toml:"openai_base_url"`
	OllamaBaseURL string `toml:"ollama_base_url"`

	// TimeoutSeconds caps one streamed response.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// ChatConfig tunes the turn pipeline.
type ChatConfig struct {
	SystemInstructions string  `toml:"system_instructions"`
	ContextBudget      int     `toml:"context_budget"`
	TopK               int     `toml:"top_k"`
	MaxTokens          int     `toml:"max_tokens"`
	Temperature        float64 `toml:"temperature"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	ChunkSize     int `toml:"chunk_size"`
	ChunkOverlap  int `toml:"chunk_overlap"`
	Parallelism   int `toml:"parallelism"`
	RatePerSecond int `toml:"rate_per_second"`
}

// TelemetryConfig controls the local telemetry sink.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Defaults returns the configuration used when no file exists yet.
func Defaults() *Config {
	return &Config{
		DefaultModel: "gpt-4o-mini",
		Models: []ModelConfig{
			{
				Alias:        "gpt-4o-mini",
				Handle:       "gpt-4o-mini",
				Provider:     "openai",
				Capabilities: []string{domain.CapabilityChat, domain.CapabilityStreaming},
				Capacity:     8,
			},
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Generation: GenerationConfig{
			TimeoutSeconds: 120,
		},
		Chat: ChatConfig{
			ContextBudget: 12000,
			TopK:          4,
		},
		Ingest: IngestConfig{
			ChunkSize:     1000,
			ChunkOverlap:  200,
			Parallelism:   4,
			RatePerSecond: 10,
		},
	}
}

// Dir resolves the configuration directory, creating it if needed.
// An empty argument means ~/.ragchat.
func Dir(configDir string) (string, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, DefaultDirName)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return configDir, nil
}

// Path returns the config file path within the directory.
func Path(configDir string) string {
	return filepath.Join(configDir, configFileName)
}

// Load reads the configuration from configDir, merging it over the
// defaults. A missing file yields the defaults without error.
func Load(configDir string) (*Config, error) {
	dir, err := Dir(configDir)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to configDir atomically.
func Save(configDir string, cfg *Config) error {
	dir, err := Dir(configDir)
	if err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp := Path(dir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, Path(dir)); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := Defaults()
	if c.Chat.ContextBudget <= 0 {
		c.Chat.ContextBudget = d.Chat.ContextBudget
	}
	if c.Chat.TopK <= 0 {
		c.Chat.TopK = d.Chat.TopK
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = d.Ingest.ChunkSize
	}
	if c.Ingest.ChunkOverlap < 0 {
		c.Ingest.ChunkOverlap = d.Ingest.ChunkOverlap
	}
	if c.Ingest.Parallelism <= 0 {
		c.Ingest.Parallelism = d.Ingest.Parallelism
	}
	if c.Ingest.RatePerSecond <= 0 {
		c.Ingest.RatePerSecond = d.Ingest.RatePerSecond
	}
	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = d.Generation.TimeoutSeconds
	}
	if c.Embedding.Provider == "" {
		c.Embedding = d.Embedding
	}
	if len(c.Models) == 0 {
		c.Models = d.Models
		if c.DefaultModel == "" {
			c.DefaultModel = d.DefaultModel
		}
	}
}

// OpenAIKey returns the API key, preferring the environment.
func (c *Config) OpenAIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return c.Generation.OpenAIKey
}

// GenerationTimeout returns the configured stream timeout.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}

// Deployments converts the model declarations to domain deployments.
func (c *Config) Deployments() []domain.ModelDeployment {
	out := make([]domain.ModelDeployment, 0, len(c.Models))
	for _, m := range c.Models {
		caps := m.Capabilities
		if len(caps) == 0 {
			caps = []string{domain.CapabilityChat, domain.CapabilityStreaming}
		}
		out = append(out, domain.ModelDeployment{
			Alias:        m.Alias,
			Handle:       m.Handle,
			Provider:     m.Provider,
			Capabilities: caps,
			Capacity:     m.Capacity,
		})
	}
	return out
}
