package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/claudex/internal/anthropic"
	"github.com/MikeSquared-Agency/claudex/internal/api"
	"github.com/MikeSquared-Agency/claudex/internal/config"
	"github.com/MikeSquared-Agency/claudex/internal/hermes"
	"github.com/MikeSquared-Agency/claudex/internal/indexer"
	"github.com/MikeSquared-Agency/claudex/internal/labeler"
	"github.com/MikeSquared-Agency/claudex/internal/parser"
	"github.com/MikeSquared-Agency/claudex/internal/progress"
	"github.com/MikeSquared-Agency/claudex/internal/slack"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the Claudex HTTP API.

Uploaded documents are indexed on request; progress streams back over
Server-Sent Events and, when NATS_URL is set, is also published to
<prefix>.document.<id>.progress. Index requests published to
<prefix>.document.index.requested are picked up as well. The prefix is
NATS_SUBJECT_PREFIX (default claudex).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := setupLogging(cfg.LogLevel, os.Stdout)
	ctx := cmd.Context()

	logger.Info("claudex starting", "port", cfg.Port)

	repo, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer repo.Close()
	logger.Info("database ready", "postgres", cfg.UsesPostgres())

	markers, err := config.LoadMarkers(cfg.MarkersFile)
	if err != nil {
		logger.Error("failed to load markers", "error", err)
		return err
	}
	p := parser.New(markers)

	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, indexing will fail at the labeling step")
	}
	client := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	lab := labeler.New(client, cfg.Labeler, logger)
	ix := indexer.New(repo, p, lab, logger)
	logger.Info("labeler ready", "model", client.Model(), "min_interval", cfg.Labeler.MinInterval)

	opts := []api.Option{api.WithAPIToken(cfg.APIToken)}
	var reporters []func(uuid.UUID) progress.Reporter
	events := func(id uuid.UUID) progress.Reporter {
		rs := make([]progress.Reporter, 0, len(reporters))
		for _, r := range reporters {
			rs = append(rs, r(id))
		}
		return progress.Multi(rs...)
	}

	if cfg.SlackEnabled() {
		poster := slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		reporters = append(reporters, func(id uuid.UUID) progress.Reporter {
			title := id.String()
			if doc, err := repo.GetDocument(ctx, id); err == nil {
				title = doc.DisplayTitle()
			}
			return poster.Reporter(context.WithoutCancel(ctx), title)
		})
		logger.Info("slack notifications enabled", "channel", cfg.SlackChannel)
	}

	if cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, cfg.NatsPrefix, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			return err
		}
		defer hc.Close()
		logger.Info("NATS connected", "url", cfg.NatsURL)

		reporters = append(reporters, func(id uuid.UUID) progress.Reporter {
			return hc.ProgressReporter(id.String())
		})

		err = hc.OnIndexRequested(func(documentID string) {
			id, err := uuid.Parse(documentID)
			if err != nil {
				logger.Warn("index request with invalid document id", "document_id", documentID)
				return
			}
			if _, err := ix.Start(id, events(id)); err != nil {
				logger.Warn("index request rejected", "document_id", id, "error", err)
			}
		})
		if err != nil {
			logger.Error("failed to subscribe to index requests", "error", err)
			return err
		}
	} else {
		logger.Warn("NATS_URL not set, progress events stay local")
	}
	if len(reporters) > 0 {
		opts = append(opts, api.WithEvents(events))
	}

	srv := api.NewServer(cfg.Port, repo, ix, p, logger, opts...)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("claudex ready", "port", cfg.Port)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("HTTP server error", "error", err)
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ix.Shutdown(shutdownCtx); err != nil {
		logger.Warn("index runs did not stop in time", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("claudex stopped")
	return nil
}
