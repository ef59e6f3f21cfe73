// Command gtplanner is the CLI entry point for the planning core: a
// recursive LLM <-> tool orchestration engine with streaming event
// fan-out and compressible relational persistence. Modeled on the
// teacher's cmd/nexus root-command-plus-subcommands structure
// (buildRootCmd attaching buildServeCmd/buildStatusCmd/... via cobra),
// trimmed to this module's surface: serve, chat, sessions, version.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gtplanner/core/internal/config"
	"github.com/gtplanner/core/internal/llm"
	"github.com/gtplanner/core/internal/llm/anthropic"
	"github.com/gtplanner/core/internal/obslog"
	"github.com/gtplanner/core/internal/obsmetrics"
	"github.com/gtplanner/core/internal/planner"
	"github.com/gtplanner/core/internal/sessions"
	"github.com/gtplanner/core/internal/storage"
	"github.com/gtplanner/core/internal/storage/sqlite"
	"github.com/gtplanner/core/internal/toolexec"
	"github.com/gtplanner/core/internal/tools/planning"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to keep it testable without invoking os.Exit.
func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "gtplanner",
		Short:   "gtplanner-core - streaming LLM planning orchestrator",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Long: `gtplanner-core drives a ReAct-style orchestration loop that interleaves
streaming LLM responses with parallel tool invocations, emits a typed
event stream to terminal or SSE clients, and persists a durable,
compressible conversation record to SQLite.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")

	rootCmd.AddCommand(
		buildChatCmd(&configPath),
		buildServeCmd(&configPath),
		buildSessionsCmd(&configPath),
	)
	return rootCmd
}

// app bundles the wired-up components every command needs, built once
// per invocation from the loaded configuration.
type app struct {
	cfg      config.Config
	log      *obslog.Logger
	metrics  *obsmetrics.Metrics
	db       *sql.DB
	store    *storage.Store
	mgr      *sessions.Manager
	provider llm.Provider
	executor *toolexec.Executor
	orch     *planner.Orchestrator
	comp     *compressorHandle
}

// compressorHandle lets callers defer Close without importing the
// compressor package into every command file.
type compressorHandle struct {
	close func()
}

func (h *compressorHandle) Close() {
	if h != nil && h.close != nil {
		h.close()
	}
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger := obslog.New(obslog.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	metrics := obsmetrics.New()

	db, err := sqlite.Open(sqlite.Config{
		Path:           cfg.Storage.Path,
		MaxOpenConns:   cfg.Storage.MaxOpenConns,
		BusyTimeout:    cfg.Storage.BusyTimeout,
		ConnectTimeout: cfg.Storage.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store, err := storage.New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	provider, err := anthropic.New(anthropic.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.DefaultModel,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryDelay:   cfg.LLM.RetryDelay,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("construct LLM provider: %w", err)
	}

	executor := toolexec.New(planning.DefaultRegistry(), toolexec.Config{
		MaxConcurrency: cfg.ToolExecutor.MaxConcurrency,
		DefaultTimeout: cfg.ToolExecutor.DefaultTimeout,
	})

	orch := planner.New(provider, executor, planner.Config{
		MaxRecursionDepth: cfg.Orchestrator.MaxRecursionDepth,
		SystemPrompt:      cfg.Orchestrator.SystemPrompt,
		Model:             cfg.LLM.DefaultModel,
		MaxTokens:         cfg.Orchestrator.MaxTokens,
	})

	mgr := sessions.New(store, logger)

	return &app{
		cfg:      cfg,
		log:      logger,
		metrics:  metrics,
		db:       db,
		store:    store,
		mgr:      mgr,
		provider: provider,
		executor: executor,
		orch:     orch,
	}, nil
}

func (a *app) Close() {
	a.comp.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}
