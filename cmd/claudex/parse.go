package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/claudex/internal/anthropic"
	"github.com/MikeSquared-Agency/claudex/internal/config"
	"github.com/MikeSquared-Agency/claudex/internal/labeler"
	"github.com/MikeSquared-Agency/claudex/internal/parser"
)

var parseLabel bool

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Parse a transcript and print its sessions as JSON",
	Long: `Parse a chat transcript into question/answer sessions.

Reads the named file, or stdin when the argument is "-" or missing.
With --label every session is also labeled, which needs ANTHROPIC_API_KEY
and is spaced by LABEL_MIN_INTERVAL between calls.

Examples:
  claudex parse chat.txt
  pbpaste | claudex parse --label`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseLabel, "label", false, "label each session with the LLM")
}

type labeledTurn struct {
	parser.Turn
	Label string `json:"label,omitempty"`
}

type parseResult struct {
	Title    string        `json:"title,omitempty"`
	Platform string        `json:"platform"`
	Stage    string        `json:"stage"`
	Sessions []labeledTurn `json:"sessions"`
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := setupLogging(cfg.LogLevel, cmd.ErrOrStderr())

	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	markers, err := config.LoadMarkers(cfg.MarkersFile)
	if err != nil {
		return err
	}
	outcome := parser.New(markers).Parse(raw)
	if err := parser.Validate(outcome); err != nil {
		return errors.New(parser.UserMessage(err))
	}

	res := parseResult{
		Title:    outcome.Title,
		Platform: outcome.Platform,
		Stage:    outcome.Stage,
		Sessions: make([]labeledTurn, len(outcome.Turns)),
	}
	for i, t := range outcome.Turns {
		res.Sessions[i] = labeledTurn{Turn: t}
	}

	if parseLabel {
		client := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		lab := labeler.New(client, cfg.Labeler, logger)
		total := len(outcome.Turns)
		_, err := lab.LabelBatch(cmd.Context(), outcome.Turns, func(i int, label string) {
			res.Sessions[i].Label = label
			logger.Info("labeled session", "current", i+1, "total", total, "label", label)
		})
		if err != nil {
			return fmt.Errorf("label sessions: %w", err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(data), nil
}
