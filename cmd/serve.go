package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/api"
	queuememory "github.com/JakeFAU/newsroom-crawler/internal/queue/memory"
	memorystorage "github.com/JakeFAU/newsroom-crawler/internal/storage/memory"
	"github.com/JakeFAU/newsroom-crawler/internal/tasks"
)

// newServeCmd creates the 'serve' subcommand: the read API plus the crawl
// task runner.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the article API and run crawl tasks",
		Long: `Starts the HTTP API over the article store. Crawls submitted via
POST /v1/crawls are queued and executed by a fixed pool of workers. SIGINT or
SIGTERM stops accepting requests, cancels in-flight crawls and exits.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.cfg
	logger := appInstance.logger
	ctx := cmd.Context()

	p, err := appInstance.buildPipeline(ctx)
	if err != nil {
		return err
	}

	queue := queuememory.NewQueue(cfg.Crawler.QueueDepth)
	runner := tasks.New(
		queue,
		memorystorage.NewRunStore(),
		p.scheduler,
		p.ids,
		p.clock,
		tasks.Config{Seeds: cfg.Crawler.Seeds, Workers: cfg.Crawler.Workers},
		logger,
	)

	var pinger api.Pinger
	if pp, ok := p.repo.(api.Pinger); ok {
		pinger = pp
	}
	server := api.NewServer(p.repo, runner, pinger, api.Options{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", listenPort(cfg.Server.Port)),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runnerCtx, stopRunner := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("task runner started", zap.Int("workers", cfg.Crawler.Workers))
		runner.Run(runnerCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	stopRunner()
	wg.Wait()
	queue.Close()
	logger.Info("shutdown complete")
	return runErr
}

// listenPort honors PORT, which Cloud Run sets, over the configured port.
func listenPort(configured int) int {
	if raw := os.Getenv("PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 {
			return port
		}
	}
	return configured
}
