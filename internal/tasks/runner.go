// Package tasks runs crawls as cancellable background units of work with
// persisted status, so the HTTP service can start, watch and stop them.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/metrics"
	"github.com/JakeFAU/newsroom-crawler/internal/scheduler"
)

// Crawler is the scheduler surface a run needs.
type Crawler interface {
	RunFull(ctx context.Context, seeds []string) (scheduler.Report, error)
	RunSingle(ctx context.Context, articleURL string) (scheduler.Report, error)
}

// Queue buffers submitted runs.
type Queue interface {
	TryEnqueue(item crawler.QueueItem) error
	Dequeue(ctx context.Context) (crawler.QueueItem, error)
}

// Config controls the runner.
type Config struct {
	// Seeds are the listing URLs a full run starts from.
	Seeds   []string
	Workers int
}

// Runner executes queued crawl runs on a fixed pool of workers.
type Runner struct {
	queue   Queue
	runs    crawler.RunStore
	crawler Crawler
	ids     crawler.IDGenerator
	clock   crawler.Clock
	cfg     Config
	logger  *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New constructs a Runner.
func New(
	queue Queue,
	runs crawler.RunStore,
	c Crawler,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:   queue,
		runs:    runs,
		crawler: c,
		ids:     ids,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.Named("tasks"),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Submit queues a run. An empty articleURL queues a full crawl from the
// configured seeds; otherwise a single-article run.
func (r *Runner) Submit(ctx context.Context, articleURL string) (crawler.Run, error) {
	articleURL = strings.TrimSpace(articleURL)
	mode := crawler.RunModeFull
	seeds := append([]string(nil), r.cfg.Seeds...)
	if articleURL != "" {
		mode = crawler.RunModeSingle
		seeds = []string{articleURL}
	}
	if len(seeds) == 0 {
		return crawler.Run{}, errors.New("no seeds configured")
	}
	id, err := r.ids.NewID()
	if err != nil {
		return crawler.Run{}, fmt.Errorf("run id: %w", err)
	}
	run := crawler.Run{
		ID:      id,
		Mode:    mode,
		Seeds:   seeds,
		Status:  crawler.RunStatusQueued,
		Created: r.clock.Now(),
	}
	if err := r.runs.CreateRun(ctx, run); err != nil {
		return crawler.Run{}, fmt.Errorf("create run: %w", err)
	}
	if err := r.queue.TryEnqueue(crawler.QueueItem{RunID: id}); err != nil {
		if updateErr := r.runs.UpdateRunStatus(ctx, id, crawler.RunStatusFailed, err.Error(), crawler.RunCounters{}); updateErr != nil {
			r.logger.Error("fail run status update", zap.String("run_id", id), zap.Error(updateErr))
		}
		return crawler.Run{}, fmt.Errorf("enqueue run: %w", err)
	}
	r.logger.Info("run queued", zap.String("run_id", id), zap.String("mode", string(mode)))
	return run, nil
}

// Get returns a run and its recorded outcomes.
func (r *Runner) Get(ctx context.Context, runID string) (crawler.Run, []crawler.Outcome, error) {
	run, err := r.runs.GetRun(ctx, runID)
	if err != nil {
		return crawler.Run{}, nil, err
	}
	outcomes, err := r.runs.ListOutcomes(ctx, runID)
	if err != nil {
		return crawler.Run{}, nil, err
	}
	return run, outcomes, nil
}

// Cancel stops a running run or marks a queued one canceled so workers skip
// it.
func (r *Runner) Cancel(ctx context.Context, runID string) (crawler.Run, error) {
	run, err := r.runs.GetRun(ctx, runID)
	if err != nil {
		return crawler.Run{}, err
	}
	if run.Status.Terminal() {
		return run, crawler.ErrRunFinished
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, running := r.cancels[runID]; running {
		cancel()
		r.logger.Info("run cancel requested", zap.String("run_id", runID))
		return run, nil
	}
	if err := r.runs.UpdateRunStatus(ctx, runID, crawler.RunStatusCanceled, "canceled before start", run.Counters); err != nil {
		return crawler.Run{}, fmt.Errorf("cancel run: %w", err)
	}
	r.logger.Info("queued run canceled", zap.String("run_id", runID))
	return r.runs.GetRun(ctx, runID)
}

// Run starts the workers and blocks until ctx finishes and every worker has
// returned.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.work(ctx, worker)
		}(i)
	}
	<-ctx.Done()
	wg.Wait()
}

func (r *Runner) work(ctx context.Context, worker int) {
	logger := r.logger.With(zap.Int("worker", worker))
	for {
		item, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("queue dequeue failed", zap.Error(err))
			return
		}
		logger.Debug("dequeued run", zap.String("run_id", item.RunID))
		r.process(ctx, item.RunID)
	}
}

func (r *Runner) process(ctx context.Context, runID string) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run, ok := r.claim(ctx, runID, cancel)
	if !ok {
		return
	}
	defer func() {
		r.mu.Lock()
		delete(r.cancels, runID)
		r.mu.Unlock()
	}()

	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	var (
		report scheduler.Report
		err    error
	)
	if run.Mode == crawler.RunModeSingle {
		report, err = r.crawler.RunSingle(runCtx, run.Seeds[0])
	} else {
		report, err = r.crawler.RunFull(runCtx, run.Seeds)
	}

	// Final writes outlive cancellation so a stopped run still records its
	// state.
	persistCtx := context.WithoutCancel(ctx)
	for _, outcome := range report.Outcomes {
		if recErr := r.runs.RecordOutcome(persistCtx, runID, outcome); recErr != nil {
			r.logger.Error("record outcome failed", zap.String("run_id", runID), zap.Error(recErr))
		}
	}
	status, errText := deriveFinalStatus(report.Counters, err)
	if updateErr := r.runs.UpdateRunStatus(persistCtx, runID, status, errText, report.Counters); updateErr != nil {
		r.logger.Error("final run status update failed", zap.String("run_id", runID), zap.Error(updateErr))
	}
	metrics.ObserveRun(string(status))
	r.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int("created", report.Counters.Created),
		zap.Int("skipped", report.Counters.Skipped),
		zap.Int("failed", report.Counters.Failed),
	)
}

// claim moves a queued run to running and registers its cancel func. Runs
// canceled while queued are skipped.
func (r *Runner) claim(ctx context.Context, runID string, cancel context.CancelFunc) (crawler.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, err := r.runs.GetRun(ctx, runID)
	if err != nil {
		r.logger.Error("load run failed", zap.String("run_id", runID), zap.Error(err))
		return crawler.Run{}, false
	}
	if run.Status != crawler.RunStatusQueued {
		r.logger.Debug("skipping run", zap.String("run_id", runID), zap.String("status", string(run.Status)))
		return crawler.Run{}, false
	}
	if err := r.runs.UpdateRunStatus(ctx, runID, crawler.RunStatusRunning, "", crawler.RunCounters{}); err != nil {
		r.logger.Error("update run status failed", zap.String("run_id", runID), zap.Error(err))
		return crawler.Run{}, false
	}
	r.cancels[runID] = cancel
	return run, true
}

func deriveFinalStatus(counters crawler.RunCounters, err error) (crawler.RunStatus, string) {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return crawler.RunStatusCanceled, err.Error()
	case err != nil:
		return crawler.RunStatusFailed, err.Error()
	case counters.ListingPages == 0 && counters.ArticlePages == 0:
		return crawler.RunStatusFailed, "no pages were fetched"
	default:
		return crawler.RunStatusSucceeded, ""
	}
}
