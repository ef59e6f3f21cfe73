package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gtplanner/core/internal/compressor"
	"github.com/gtplanner/core/internal/streaming"
	"github.com/gtplanner/core/internal/streaming/terminal"
	"github.com/spf13/cobra"
)

// buildChatCmd creates the "chat" command: a terminal REPL driving one
// session's orchestrator cycles, rendering the typed event stream with
// the terminal handler.
func buildChatCmd(configPath *string) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive planning session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			a.comp = &compressorHandle{}
			comp := compressor.New(a.store, a.provider, compressor.Config{
				MaxMessages:         a.cfg.Compressor.MaxMessages,
				MaxTokens:           a.cfg.Compressor.MaxTokens,
				PreserveRecentCount: a.cfg.Compressor.PreserveRecentCount,
				QueueDepth:          a.cfg.Compressor.QueueDepth,
				Model:               a.cfg.Compressor.Model,
			}, slog.Default())
			a.comp.close = comp.Close

			session, err := a.mgr.CreateSession(ctx, title)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s started. Type a message, or 'exit' to quit.\n", session.ID)

			streamMgr := streaming.NewManager()
			defer streamMgr.CloseAll()

			stream := streamMgr.CreateSession(session.ID)
			stream.AddHandler(terminal.New(cmd.OutOrStdout(), terminal.Config{}))

			reader := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(cmd.OutOrStdout(), "> ")
				if !reader.Scan() {
					break
				}
				line := strings.TrimSpace(reader.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}

				if err := a.runTurn(ctx, stream, session.ID, line, comp); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "! %v\n", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title for the new session")
	return cmd
}

// runTurn builds the agent context from the active compressed record
// (still excluding the new user turn), runs one orchestration cycle —
// which folds userMessage into the LLM-facing history itself — then
// persists the user message together with the returned delta in one
// transaction, matching §2's "data flow per request" and §4.6's
// single-transaction requirement.
func (a *app) runTurn(ctx context.Context, stream *streaming.Session, sessionID, userMessage string, comp *compressor.Compressor) error {
	agentCtx, err := a.mgr.BuildAgentContext(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("build agent context: %w", err)
	}

	result := a.orch.Run(ctx, stream, *agentCtx, userMessage)

	if err := a.mgr.UpdateFromAgentResult(ctx, sessionID, userMessage, result); err != nil {
		return fmt.Errorf("persist orchestration result: %w", err)
	}

	if comp != nil {
		if err := comp.CompressIfNeeded(ctx, sessionID); err != nil {
			a.log.Warn(ctx, "compression scheduling failed", "error", err)
		}
	}

	if !result.Success {
		return fmt.Errorf("orchestration failed: %s", result.Error)
	}
	return nil
}
