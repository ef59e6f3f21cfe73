// Package config loads and validates process configuration, split by
// concern the way the teacher's internal/config/config.go composes one
// root Config from per-area sub-structs (ServerConfig, DatabaseConfig,
// LoggingConfig, ...). Loading follows the teacher's loader.go two-step
// pattern: build a defaults struct, then yaml.Unmarshal merge over it,
// simplified here to a single file (no $include directives — this
// module has no multi-file config story to justify one).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the planning core process.
type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	ToolExecutor ToolExecutorConfig `yaml:"tool_executor"`
	Compressor   CompressorConfig   `yaml:"compressor"`
	SSE          SSEConfig          `yaml:"sse"`
	Storage      StorageConfig      `yaml:"storage"`
	LLM          LLMConfig          `yaml:"llm"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// OrchestratorConfig configures the planner engine.
type OrchestratorConfig struct {
	MaxRecursionDepth int    `yaml:"max_recursion_depth"`
	SystemPrompt      string `yaml:"system_prompt"`
	MaxTokens         int    `yaml:"max_tokens"`
}

// ToolExecutorConfig configures parallel tool dispatch.
type ToolExecutorConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// CompressorConfig configures the background compaction worker.
type CompressorConfig struct {
	MaxMessages         int    `yaml:"max_messages"`
	MaxTokens           int    `yaml:"max_tokens"`
	PreserveRecentCount int    `yaml:"preserve_recent_count"`
	QueueDepth          int    `yaml:"queue_depth"`
	Model               string `yaml:"model"`
}

// SSEConfig configures the SSE stream handler.
type SSEConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	IncludeMetadata   bool          `yaml:"include_metadata"`
	BufferEvents      bool          `yaml:"buffer_events"`
	CoalesceChunks    int           `yaml:"coalesce_chunks"`
	CoalesceInterval  time.Duration `yaml:"coalesce_interval"`
}

// StorageConfig configures the SQLite persistence layer.
type StorageConfig struct {
	Path           string        `yaml:"path"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	BusyTimeout    time.Duration `yaml:"busy_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LLMConfig configures the Anthropic provider.
type LLMConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

// LoggingConfig configures the slog-based ambient logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"
}

// Default returns the baseline configuration before any file or
// environment overrides are applied.
func Default() Config {
	return Config{
		Orchestrator: OrchestratorConfig{
			MaxRecursionDepth: 5,
			SystemPrompt:      "You are a planning assistant. Use the available tools to help the user plan their project.",
			MaxTokens:         4096,
		},
		ToolExecutor: ToolExecutorConfig{
			MaxConcurrency: 5,
			DefaultTimeout: 30 * time.Second,
		},
		Compressor: CompressorConfig{
			MaxMessages:         50,
			MaxTokens:           8000,
			PreserveRecentCount: 5,
			QueueDepth:          64,
			Model:               "claude-sonnet-4-20250514",
		},
		SSE: SSEConfig{
			HeartbeatInterval: 30 * time.Second,
			IncludeMetadata:   false,
			BufferEvents:      false,
			CoalesceChunks:    8,
			CoalesceInterval:  100 * time.Millisecond,
		},
		Storage: StorageConfig{
			Path:           "gtplanner.db",
			MaxOpenConns:   1,
			BusyTimeout:    5 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			DefaultModel: "claude-sonnet-4-20250514",
			MaxRetries:   3,
			RetryDelay:   time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (if non-empty) as YAML over the defaults, then applies
// GTPLANNER_-prefixed environment overrides, matching the teacher's
// defaults-struct-then-yaml.Unmarshal-merge idiom.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override the handful of
// settings that commonly vary per-environment (API key, storage path,
// log level) without editing the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GTPLANNER_ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("GTPLANNER_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("GTPLANNER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GTPLANNER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("GTPLANNER_MAX_RECURSION_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxRecursionDepth = n
		}
	}
}

// Validate checks the loaded configuration for values that would make
// the process unable to start.
func Validate(cfg Config) error {
	var problems []string
	if cfg.Orchestrator.MaxRecursionDepth <= 0 {
		problems = append(problems, "orchestrator.max_recursion_depth must be positive")
	}
	if cfg.ToolExecutor.MaxConcurrency <= 0 {
		problems = append(problems, "tool_executor.max_concurrency must be positive")
	}
	if cfg.Storage.Path == "" {
		problems = append(problems, "storage.path must not be empty")
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		problems = append(problems, "llm.api_key must be set (GTPLANNER_ANTHROPIC_API_KEY)")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
