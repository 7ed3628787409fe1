package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/claudex/internal/anthropic"
	"github.com/MikeSquared-Agency/claudex/internal/config"
	"github.com/MikeSquared-Agency/claudex/internal/importer"
	"github.com/MikeSquared-Agency/claudex/internal/indexer"
	"github.com/MikeSquared-Agency/claudex/internal/labeler"
	"github.com/MikeSquared-Agency/claudex/internal/parser"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

var (
	importIndex     bool
	importDryRun    bool
	importStatePath string
	importSince     string
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import every transcript file in a directory",
	Long: `Import transcript files (.txt, .md, .json, and Claude Code .jsonl session
logs) from a directory tree as documents.

Progress is kept in a state file so re-running only picks up new or
changed files.

Examples:
  claudex import ~/chats
  claudex import ~/.claude/projects --since 2026-01-01 --index`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importIndex, "index", false, "parse and label each imported document")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "list what would be imported without storing anything")
	importCmd.Flags().StringVar(&importStatePath, "state", importer.DefaultStatePath, "import state file")
	importCmd.Flags().StringVar(&importSince, "since", "", "only files modified on or after this date (YYYY-MM-DD)")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := setupLogging(cfg.LogLevel, cmd.ErrOrStderr())
	ctx := cmd.Context()

	icfg := importer.Config{
		Dir:       args[0],
		StatePath: importStatePath,
		DryRun:    importDryRun,
		Index:     importIndex,
	}
	if importSince != "" {
		since, err := time.Parse("2006-01-02", importSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		icfg.Since = since
	}

	repo, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	var ix importer.Indexer
	if importIndex {
		markers, err := config.LoadMarkers(cfg.MarkersFile)
		if err != nil {
			return err
		}
		client := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		lab := labeler.New(client, cfg.Labeler, logger)
		ix = indexer.New(repo, parser.New(markers), lab, logger)
	}

	sum, err := importer.New(icfg, repo, ix, logger).Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
