package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partswatch/partswatch/internal/catalog"
	"github.com/partswatch/partswatch/internal/config"
	"github.com/partswatch/partswatch/internal/crawl"
	"github.com/partswatch/partswatch/internal/discover"
	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/logger"
	"github.com/partswatch/partswatch/internal/sites"
)

// Orchestrator errors.
var (
	ErrJobNotFound        = errors.New("job not found")
	ErrCategoriesRequired = errors.New("client requires an explicit category list")
)

// RunWriter persists the durable record of a run. Implemented by
// database.RunRepository.
type RunWriter interface {
	Create(ctx context.Context, run *domain.ScraperRun) error
	Update(ctx context.Context, run *domain.ScraperRun) error
}

// HistoryWriter persists fetch snapshots for explicit-category runs.
// Implemented by database.HistoryRepository. May be nil to disable
// snapshots.
type HistoryWriter interface {
	Save(ctx context.Context, h *domain.FetchHistory) error
}

// StartRequest carries the parameters for a new scrape job. MaxPages nil
// means the configured default; an explicit 0 means unlimited.
type StartRequest struct {
	Client        string   `json:"client"`
	SeedURL       string   `json:"seed_url,omitempty"`
	MaxPages      *int     `json:"max_pages,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	CategoryLimit int      `json:"category_limit,omitempty"`
}

// Orchestrator starts, tracks and cancels scrape jobs. Concurrency is
// bounded by a worker semaphore; submissions past capacity stay queued
// until a slot frees up.
type Orchestrator struct {
	cfg      config.CrawlerConfig
	registry *Registry
	adapters *sites.Registry
	factory  *fetch.Factory
	engine   *crawl.Engine
	stores   map[string]*catalog.Store
	runs     RunWriter
	history  HistoryWriter
	log      logger.Interface

	baseCtx context.Context
	stop    context.CancelFunc
	sem     chan struct{}
	wg      sync.WaitGroup

	cancelMu   sync.Mutex
	jobCancels map[string]context.CancelFunc
}

// NewOrchestrator wires an orchestrator. One catalog store is built per
// registered client so taxonomy caches persist across that client's runs.
func NewOrchestrator(
	cfg config.CrawlerConfig,
	adapters *sites.Registry,
	factory *fetch.Factory,
	taxonomy catalog.TaxonomyRepo,
	products catalog.ProductRepo,
	runs RunWriter,
	history HistoryWriter,
	log logger.Interface,
) *Orchestrator {
	workers := cfg.JobWorkers
	if workers <= 0 {
		workers = config.DefaultJobWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:        cfg,
		registry:   NewRegistry(),
		adapters:   adapters,
		factory:    factory,
		engine:     crawl.NewEngine(log),
		stores:     make(map[string]*catalog.Store),
		runs:       runs,
		history:    history,
		log:        log,
		baseCtx:    ctx,
		stop:       cancel,
		sem:        make(chan struct{}, workers),
		jobCancels: make(map[string]context.CancelFunc),
	}

	for _, name := range adapters.Names() {
		adapter, err := adapters.ForClient(name)
		if err != nil {
			continue
		}
		resolver := catalog.NewStockResolver(factory.Session(), cfg.StockCacheSize, log)
		o.stores[name] = catalog.NewStore(
			displayName(name), adapter.SeedURL(),
			taxonomy, products, resolver, log,
		)
	}
	return o
}

// Registry exposes the job registry for read-side consumers.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Start validates the request, registers a queued job and launches it in
// the background. The returned snapshot reflects the queued state.
func (o *Orchestrator) Start(req StartRequest) (domain.Job, error) {
	adapter, err := o.adapters.ForClient(req.Client)
	if err != nil {
		return domain.Job{}, err
	}
	if adapter.RequiresCategoryList() && len(req.Categories) == 0 {
		return domain.Job{}, fmt.Errorf("%s: %w", req.Client, ErrCategoriesRequired)
	}

	maxPages := o.cfg.MaxPages
	if req.MaxPages != nil && *req.MaxPages >= 0 {
		maxPages = *req.MaxPages
	}

	job := domain.Job{
		ID:     uuid.NewString(),
		Client: req.Client,
		Status: domain.JobStatusQueued,
		Config: domain.JobConfig{
			SeedURL:       req.SeedURL,
			MaxPages:      maxPages,
			Categories:    req.Categories,
			CategoryLimit: req.CategoryLimit,
		},
		StartedAt: time.Now().UTC(),
	}
	o.registry.Add(job)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(job.ID, adapter)
	}()

	o.log.WithClient(req.Client).WithJob(job.ID).Info("job queued",
		"max_pages", maxPages, "categories", len(req.Categories))
	return job, nil
}

// Status returns a job snapshot.
func (o *Orchestrator) Status(jobID string) (domain.Job, error) {
	job, ok := o.registry.Get(jobID)
	if !ok {
		return domain.Job{}, fmt.Errorf("%s: %w", jobID, ErrJobNotFound)
	}
	return job, nil
}

// Cancel requests cooperative cancellation. The crawl stops before the
// next page fetch; records already collected are still persisted.
// Cancelling a terminal job is a no-op.
func (o *Orchestrator) Cancel(jobID, reason string) error {
	if !o.registry.RequestCancel(jobID, reason) {
		return fmt.Errorf("%s: %w", jobID, ErrJobNotFound)
	}
	o.cancelMu.Lock()
	cancel, ok := o.jobCancels[jobID]
	o.cancelMu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (o *Orchestrator) registerJobContext(jobID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.cancelMu.Lock()
	o.jobCancels[jobID] = cancel
	o.cancelMu.Unlock()
	return ctx, func() {
		o.cancelMu.Lock()
		delete(o.jobCancels, jobID)
		o.cancelMu.Unlock()
		cancel()
	}
}

// Categories runs ad-hoc category discovery for a client without
// starting a job. Clients that only take explicit category lists get an
// empty result.
func (o *Orchestrator) Categories(ctx context.Context, client string) ([]domain.CategorySeed, error) {
	adapter, err := o.adapters.ForClient(client)
	if err != nil {
		return nil, err
	}
	if !adapter.SupportsDiscovery() {
		return nil, nil
	}
	seeds := discover.New(o.factory.Session(), o.log).Discover(ctx, adapter)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return seeds, nil
}

// Shutdown stops accepting progress and waits for running jobs to reach
// a boundary, or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run(jobID string, adapter sites.Adapter) {
	// Block until a job slot frees up; the job stays queued meanwhile.
	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-o.baseCtx.Done():
		o.finalize(jobID, nil, "orchestrator shutting down")
		return
	}

	job, ok := o.registry.Get(jobID)
	if !ok {
		return
	}
	if job.CancelRequested {
		o.finalize(jobID, nil, "")
		return
	}

	// Cancellation cuts in before the next page fetch, not just at the
	// next category batch.
	jobCtx, release := o.registerJobContext(jobID)
	defer release()

	log := o.log.WithClient(job.Client).WithJob(jobID)
	run := &domain.ScraperRun{
		Client:    job.Client,
		Status:    domain.RunStatusRunning,
		JobID:     &job.ID,
		StartedAt: time.Now().UTC(),
		Config: domain.JSONBMap{
			"seed_url":   job.Config.SeedURL,
			"max_pages":  job.Config.MaxPages,
			"categories": job.Config.Categories,
		},
	}
	if err := o.runs.Create(o.baseCtx, run); err != nil {
		log.Error("failed to record run start", "error", err)
	}
	o.registry.Update(jobID, func(j *domain.Job) {
		j.Status = domain.JobStatusRunning
		j.RunID = run.ID
	})

	sess := o.factory.Session()
	seeds := o.resolveSeeds(jobCtx, sess, adapter, job.Config)
	if len(seeds) == 0 {
		o.finalize(jobID, run, "no categories resolved for crawl")
		return
	}
	o.registry.Update(jobID, func(j *domain.Job) {
		j.TotalCategories = len(seeds)
	})

	mode, _ := o.planFor(adapter)

	seenSKUs := make(map[string]struct{})
	store := o.stores[job.Client]

	batchSize := o.cfg.FetchWorkers
	if batchSize <= 0 {
		batchSize = config.DefaultFetchWorkers
	}

	var totals domain.PersistSummary
	errorsCount := 0

	takeSnapshot := o.history != nil && adapter.RequiresCategoryList() && len(job.Config.Categories) > 0
	var snapshotItems []domain.FetchedItem

	for start := 0; start < len(seeds); start += batchSize {
		if snap, _ := o.registry.Get(jobID); snap.CancelRequested || jobCtx.Err() != nil {
			break
		}

		end := start + batchSize
		if end > len(seeds) {
			end = len(seeds)
		}
		batch := seeds[start:end]

		o.registry.Update(jobID, func(j *domain.Job) {
			j.CurrentCategory = batch[0].URL
		})

		results := o.engine.CrawlCategories(
			jobCtx, sess, adapter, batch, job.Config.MaxPages, mode, batchSize,
		)
		for _, res := range results {
			// Persist on the orchestrator context so records fetched
			// before a cancel still land in the catalog.
			summary := store.UpsertRecords(o.baseCtx, res.Seed, res.Records, seenSKUs)
			o.applyCategoryResult(jobID, res, summary)
			errorsCount += len(res.Errors) + len(summary.Errors)
			totals.Merge(summary)

			if takeSnapshot {
				for _, rec := range res.Records {
					snapshotItems = append(snapshotItems, domain.FetchedItem{
						URL:        rec.URL,
						Site:       job.Client,
						Title:      rec.Title,
						PriceValue: rec.Price,
						Currency:   rec.Currency,
						ImageURL:   rec.ImageURL,
					})
				}
			}
		}
	}

	run.TotalBrands = len(totals.BrandIDs)
	run.TotalCategories = len(totals.CategoryIDs)
	run.TotalModels = len(totals.ModelIDs)
	run.TotalProducts = totals.Saved
	run.ErrorsCount = errorsCount

	if takeSnapshot {
		o.saveFetchSnapshot(job, snapshotItems, store)
	}

	o.finalize(jobID, run, "")
}

// saveFetchSnapshot writes the legacy fetch_history record of an
// explicit-category run. Snapshot imports write around the store, so its
// taxonomy caches are dropped after each one.
func (o *Orchestrator) saveFetchSnapshot(job domain.Job, items []domain.FetchedItem, store *catalog.Store) {
	h := &domain.FetchHistory{
		ID:        job.ID,
		Timestamp: job.StartedAt,
		URLs:      domain.JSONBStrings(job.Config.Categories),
		Rules: domain.JSONBMap{
			"client":    job.Client,
			"max_pages": job.Config.MaxPages,
		},
		Items: items,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.history.Save(ctx, h); err != nil {
		o.log.WithClient(job.Client).WithJob(job.ID).Error("failed to save fetch snapshot", "error", err)
		return
	}
	store.InvalidateCaches()
}

// resolveSeeds turns a job config into category seeds: an explicit list
// wins, otherwise discovery narrowed by seed URL and capped.
func (o *Orchestrator) resolveSeeds(
	ctx context.Context,
	sess *fetch.Session,
	adapter sites.Adapter,
	cfg domain.JobConfig,
) []domain.CategorySeed {
	if len(cfg.Categories) > 0 {
		seeds := make([]domain.CategorySeed, 0, len(cfg.Categories))
		for _, u := range cfg.Categories {
			if strings.TrimSpace(u) == "" {
				continue
			}
			seeds = append(seeds, discover.SeedFromURL(u))
		}
		return seeds
	}

	found := discover.New(sess, o.log).Discover(ctx, adapter)
	if cfg.SeedURL != "" {
		found = discover.FilterBySeed(found, cfg.SeedURL)
	}

	limit := cfg.CategoryLimit
	if limit <= 0 {
		_, limit = o.planFor(adapter)
	}
	return discover.ApplyCap(found, limit, o.log)
}

// planFor decides a client's crawl shape. Whole-site clients sweep until
// two consecutive pages are empty under a tight category cap; targeted
// clients stop a category on its first empty page and allow the full
// discovery cap.
func (o *Orchestrator) planFor(adapter sites.Adapter) (crawl.Mode, int) {
	if adapter.Site() == sites.ClientMobileZone {
		return crawl.ModeSweep, o.cfg.SiteSweepCap
	}
	return crawl.ModeCapped, o.cfg.CategoryCap
}

func (o *Orchestrator) applyCategoryResult(jobID string, res domain.CategoryResult, summary domain.PersistSummary) {
	o.registry.Update(jobID, func(j *domain.Job) {
		j.PagesDone += res.PagesVisited
		j.ItemsFound += len(res.Records)
		j.CategoriesDone++
		j.CurrentCategory = res.Seed.URL
		j.NewProducts += summary.New
		j.UpdatedProducts += summary.Updated

		if res.BotChallenge {
			j.LastError = fmt.Sprintf("bot challenge at %s", res.Seed.URL)
		}
		for _, msg := range res.Errors {
			j.LastError = msg
		}
		for _, msg := range summary.Errors {
			j.LastError = msg
		}
	})
}

// finalize closes out the job and its run row. failure forces the error
// status regardless of counters.
func (o *Orchestrator) finalize(jobID string, run *domain.ScraperRun, failure string) {
	now := time.Now().UTC()

	job, ok := o.registry.Update(jobID, func(j *domain.Job) {
		switch {
		case failure != "":
			j.Status = domain.JobStatusError
			j.LastError = failure
			j.CompletedAt = &now
		case j.CancelRequested:
			j.Status = domain.JobStatusCancelled
			j.CancelledAt = &now
			j.CompletedAt = &now
		default:
			j.Status = domain.JobStatusDone
			j.CompletedAt = &now
		}
	})
	if !ok {
		return
	}

	log := o.log.WithClient(job.Client).WithJob(jobID)
	log.Info("job finished",
		"status", job.Status,
		"pages", job.PagesDone,
		"items", job.ItemsFound,
		"new", job.NewProducts,
		"updated", job.UpdatedProducts,
	)

	if run == nil {
		return
	}
	run.PagesDone = job.PagesDone
	run.ItemsFound = job.ItemsFound
	run.NewItems = job.NewProducts
	run.UpdatedItems = job.UpdatedProducts
	run.CompletedAt = &now
	if job.LastError != "" {
		lastErr := job.LastError
		run.LastError = &lastErr
	}
	switch job.Status {
	case domain.JobStatusCancelled:
		run.Status = domain.RunStatusStopped
	case domain.JobStatusError:
		run.Status = domain.RunStatusFailed
	default:
		run.Status = domain.RunStatusCompleted
	}

	// The run row must outlive shutdown, so write with a fresh context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.runs.Update(ctx, run); err != nil {
		log.Error("failed to record run completion", "error", err)
	}
}

// displayName renders a client key as a readable site label.
func displayName(client string) string {
	if client == "" {
		return ""
	}
	return strings.ToUpper(client[:1]) + client[1:]
}
