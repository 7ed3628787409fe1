package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/claudex/internal/anthropic"
	"github.com/MikeSquared-Agency/claudex/internal/config"
	"github.com/MikeSquared-Agency/claudex/internal/hermes"
	"github.com/MikeSquared-Agency/claudex/internal/indexer"
	"github.com/MikeSquared-Agency/claudex/internal/labeler"
	"github.com/MikeSquared-Agency/claudex/internal/parser"
	"github.com/MikeSquared-Agency/claudex/internal/progress"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

var indexRemote bool

var indexCmd = &cobra.Command{
	Use:   "index <document-id>",
	Short: "Parse and label one stored document",
	Long: `Parse a stored document into sessions and label each one, printing
progress as it goes.

With --remote the request is published over NATS instead and a running
claudex server does the work.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRemote, "remote", false, "ask a running server to index over NATS")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := setupLogging(cfg.LogLevel, cmd.ErrOrStderr())
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	if indexRemote {
		if cfg.NatsURL == "" {
			return errors.New("--remote requires NATS_URL")
		}
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, cfg.NatsPrefix, logger)
		if err != nil {
			return err
		}
		defer hc.Close()
		if err := hc.RequestIndex(id.String()); err != nil {
			return err
		}
		fmt.Fprintf(out, "Index requested for %s on %s\n", id, hc.IndexRequestSubject())
		return nil
	}

	repo, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	markers, err := config.LoadMarkers(cfg.MarkersFile)
	if err != nil {
		return err
	}
	client := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	ix := indexer.New(repo, parser.New(markers), labeler.New(client, cfg.Labeler, logger), logger)

	printer := progress.ReporterFunc(func(e progress.Event) {
		if e.Message != "" {
			fmt.Fprintln(out, e.Message)
		}
	})
	return ix.Index(ctx, id, printer)
}
