package main

import (
	"bufio"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/claudex/internal/config"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

var cleanupYes bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete every document except the most recent one",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupYes, "yes", "y", false, "skip the confirmation prompt")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel, cmd.ErrOrStderr())
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	repo, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	docs, err := repo.ListRecentDocuments(ctx, math.MaxInt32)
	if err != nil {
		return err
	}

	switch len(docs) {
	case 0:
		fmt.Fprintln(out, "No documents found in database.")
		return nil
	case 1:
		fmt.Fprintf(out, "Only 1 document exists: [%s] %s\nNothing to delete.\n", docs[0].ID, docs[0].DisplayTitle())
		return nil
	}

	latest := docs[0]
	fmt.Fprintf(out, "Total documents: %d\n\n", len(docs))
	fmt.Fprintf(out, "KEEPING (latest):\n  [%s] %s - %s\n\n", latest.ID, latest.DisplayTitle(), latest.UploadedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "DELETING (%d documents):\n", len(docs)-1)
	for _, d := range docs[1:] {
		fmt.Fprintf(out, "  [%s] %s - %s\n", d.ID, d.DisplayTitle(), d.UploadedAt.Format("2006-01-02 15:04"))
	}

	if !cleanupYes {
		fmt.Fprint(out, "\nProceed with deletion? (yes/no): ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
			fmt.Fprintln(out, "\nCancelled. No documents were deleted.")
			return nil
		}
	}

	n, err := repo.DeleteDocumentsExcept(ctx, latest.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nDeleted %d documents. Kept: [%s] %s\n", n, latest.ID, latest.DisplayTitle())
	return nil
}
