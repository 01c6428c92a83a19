package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/scheduler"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one full paginated
// crawl in the foreground.
func newCrawlCmd() *cobra.Command {
	var seeds []string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured listing seeds once",
		Long: `Walks every configured listing seed page by page, fetches each
discovered article and ingests it. Articles already stored under the same
source URL are skipped, so repeated crawls are safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if len(seeds) == 0 {
				seeds = appInstance.cfg.Crawler.Seeds
			}
			if len(seeds) == 0 {
				return errors.New("no seeds configured")
			}
			p, err := appInstance.buildPipeline(cmd.Context())
			if err != nil {
				return err
			}
			report, runErr := p.scheduler.RunFull(cmd.Context(), seeds)
			logReport(appInstance.logger, report)
			if err := writeReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVar(&seeds, "seed", nil, "listing URL to start from (repeatable); defaults to crawler.seeds")
	return cmd
}

// newCrawlURLCmd creates the 'crawl-url' subcommand for a single article.
func newCrawlURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-url <article-url>",
		Short: "Fetch and ingest a single article page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			p, err := appInstance.buildPipeline(cmd.Context())
			if err != nil {
				return err
			}
			report, runErr := p.scheduler.RunSingle(cmd.Context(), args[0])
			logReport(appInstance.logger, report)
			if err := writeReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if len(report.Outcomes) == 0 {
				return fmt.Errorf("%s was not crawled", args[0])
			}
			if out := report.Outcomes[0]; out.Status == crawler.OutcomeFailed {
				return fmt.Errorf("ingest %s: %s", out.SourceURL, out.Reason)
			}
			return nil
		},
	}
}

func logReport(logger *zap.Logger, report scheduler.Report) {
	c := report.Counters
	logger.Info("crawl finished",
		zap.String("mode", string(report.Mode)),
		zap.Int("listing_pages", c.ListingPages),
		zap.Int("article_pages", c.ArticlePages),
		zap.Int("created", c.Created),
		zap.Int("skipped", c.Skipped),
		zap.Int("failed", c.Failed),
		zap.Int("fetch_errors", c.FetchErrors),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
}

func writeReport(w io.Writer, report scheduler.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
