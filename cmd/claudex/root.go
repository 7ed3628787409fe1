package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "claudex",
	Short: "Turn pasted AI chat transcripts into a labeled index",
	Long: `Claudex parses chat transcripts (structured exports, role-marked text or
loosely formatted paste) into ordered question/answer sessions and gives
each session a short topic label using an LLM.

Configuration comes from the environment (optionally a .env file):
  DATABASE_URL        SQLite path (default ~/.claudex/claudex.db) or postgres:// URL
  ANTHROPIC_API_KEY   required for labeling
  NATS_URL            optional, publishes progress events`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(indexCmd)
}
