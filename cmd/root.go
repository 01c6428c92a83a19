// Package cmd defines and implements the CLI commands for the newscrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/config"
	"github.com/JakeFAU/newsroom-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to inject config.
var newApp = func(_ context.Context, cfgFile string) (*App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// newRootCmd creates and configures the root command. The returned func
// releases whatever the executed subcommand opened, whether or not it failed.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile  string
		instance *App
	)

	cmd := &cobra.Command{
		Use:   "newscrawler",
		Short: "Crawls news listings and ingests articles with their tags.",
		Long: `newscrawler walks paginated news listings, extracts each article's
title, body and tags, and stores them deduplicated by source URL. The serve
command exposes the stored articles and crawl runs over HTTP.`,
		SilenceUsage: true,

		// Builds the App once config is known and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			instance = appInstance
			zap.ReplaceGlobals(appInstance.logger)
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newCrawlURLCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd, func() {
		if instance != nil {
			instance.Close()
			instance = nil
		}
	}
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. It returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, closeApp := newRootCmd()
	err := root.ExecuteContext(ctx)
	closeApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "newscrawler: %v\n", err)
		return 1
	}
	return 0
}
