package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/content"
	"github.com/tndd/datadoggo-v3-rss/internal/webhook"
)

// newFetchContentCmd creates the 'fetch-content' subcommand. It fetches full
// article bodies for pending queue entries through the scrape service.
func newFetchContentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "fetch-content",
		Short: "Fetch article bodies for pending queue entries",
		Long: `Selects queue entries that have never been fetched or whose last
fetch failed, retrieves their bodies through the scrape service, and stores
the compressed content. Prints the run summary as JSON.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetchContentCommand(cmd, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", content.DefaultLimit, "maximum queue entries to process")
	return cmd
}

func runFetchContentCommand(cmd *cobra.Command, limit int) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	summary, err := appInstance.Fetcher.Run(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("run content fetch: %w", err)
	}

	appInstance.Notifier.NotifyFetchContent(cmd.Context(), webhook.SourceCLI, summary)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	appInstance.Logger.Info("content fetch finished",
		zap.Int("saved", summary.SavedCount),
		zap.Int("status_only", summary.StatusOnlyCount),
		zap.Int("errors", summary.ErrorCount))
	return nil
}
