package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/webhook"
)

// newFetchRssCmd creates the 'fetch-rss' subcommand. It runs one ingestion
// pass over the configured feed list and prints the run summary as JSON.
func newFetchRssCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-rss",
		Short: "Ingest the configured RSS feeds into the article queue",
		Long: `Fetches every feed in the links file concurrently, extracts article
links, and upserts the entries into the queue. Feeds that fail are reported
in the summary without aborting the run.`,

		RunE: runFetchRssCommand,
	}
}

func runFetchRssCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	summary, err := appInstance.Ingestor.Run(cmd.Context(), appInstance.Config.Feeds.LinksPath)
	if err != nil {
		return fmt.Errorf("run ingestion: %w", err)
	}

	appInstance.Notifier.NotifyFetchRss(cmd.Context(), webhook.SourceCLI, summary)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	appInstance.Logger.Info("ingestion finished",
		zap.Int("total_processed", summary.TotalProcessed),
		zap.Int("feeds", len(summary.Feeds)))
	return nil
}
