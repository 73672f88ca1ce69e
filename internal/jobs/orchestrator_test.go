package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partswatch/partswatch/internal/config"
	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/logger"
	"github.com/partswatch/partswatch/internal/sites"
)

type memTaxonomy struct {
	mu     sync.Mutex
	nextID int64
}

func (m *memTaxonomy) next() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

func (m *memTaxonomy) SaveBrand(_ context.Context, name, slug, url string) (domain.Brand, error) {
	return domain.Brand{ID: m.next(), Name: name, Slug: slug, URL: url}, nil
}

func (m *memTaxonomy) SaveCategory(_ context.Context, brandID int64, name, slug, url string) (domain.Category, error) {
	return domain.Category{ID: m.next(), BrandID: brandID, Name: name, Slug: slug, URL: url}, nil
}

func (m *memTaxonomy) SaveModel(_ context.Context, categoryID int64, name, slug, url string) (domain.Model, error) {
	return domain.Model{ID: m.next(), CategoryID: categoryID, Name: name, Slug: slug, URL: url}, nil
}

type memProducts struct {
	mu      sync.Mutex
	nextID  int64
	history int
	changes int
	bySKU   map[string]domain.Product
}

func newMemProducts() *memProducts {
	return &memProducts{bySKU: make(map[string]domain.Product)}
}

func (m *memProducts) FindBySKU(_ context.Context, sku string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.bySKU[sku]; ok {
		copied := p
		return &copied, nil
	}
	return nil, nil
}

func (m *memProducts) Insert(_ context.Context, p *domain.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *p
	stored.ID = m.nextID
	m.bySKU[p.SKU] = stored
	return m.nextID, nil
}

func (m *memProducts) Update(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySKU[p.SKU] = *p
	return nil
}

func (m *memProducts) AddPriceHistory(_ context.Context, _ domain.PriceHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history++
	return nil
}

func (m *memProducts) AddChange(_ context.Context, _ domain.ProductChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes++
	return nil
}

func (m *memProducts) AddBaseline(_ context.Context, _ domain.ProductBaseline) error { return nil }

func (m *memProducts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bySKU)
}

func (m *memProducts) historyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history
}

func (m *memProducts) changeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changes
}

type memRuns struct {
	mu      sync.Mutex
	created []domain.ScraperRun
	updated []domain.ScraperRun
}

func (m *memRuns) Create(_ context.Context, run *domain.ScraperRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *run)
	return nil
}

func (m *memRuns) Update(_ context.Context, run *domain.ScraperRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, *run)
	return nil
}

func (m *memRuns) lastUpdate() (domain.ScraperRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.updated) == 0 {
		return domain.ScraperRun{}, false
	}
	return m.updated[len(m.updated)-1], true
}

func listingHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body>
			<ul>
				<li class="product-card">
					<a href="/parts/screen-a"><h3 class="product-title">Screen A</h3></a>
					<span class="price">$19.99</span>
					<span class="stock-status">In stock</span>
				</li>
				<li class="product-card">
					<a href="/parts/screen-b"><h3 class="product-title">Screen B</h3></a>
					<span class="price">$24.99</span>
					<span class="stock-status">Out of stock</span>
				</li>
			</ul>
		</body></html>`)
	}
}

func intPtr(n int) *int { return &n }

// pagedListingHandler serves pages 1..pages with one distinct product
// each, then empty pages. Pagination works through the ?page parameter.
func pagedListingHandler(t *testing.T, pages int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		_, _ = fmt.Fprint(w, "<html><body><ul>")
		if page <= pages {
			_, _ = fmt.Fprintf(w, `<li class="product-card">
				<a href="/parts/item-%d"><h3 class="product-title">Item %d</h3></a>
				<span class="price">$9.99</span>
				<span class="stock-status">In stock</span>
			</li>`, page, page)
		}
		_, _ = fmt.Fprint(w, "</ul></body></html>")
	}
}

type memHistory struct {
	mu    sync.Mutex
	saved []domain.FetchHistory
}

func (m *memHistory) Save(_ context.Context, h *domain.FetchHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, *h)
	return nil
}

func (m *memHistory) snapshots() []domain.FetchHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FetchHistory(nil), m.saved...)
}

func newTestOrchestrator(products *memProducts, runs *memRuns) *Orchestrator {
	return newTestOrchestratorWithHistory(products, runs, &memHistory{})
}

func newTestOrchestratorWithHistory(products *memProducts, runs *memRuns, history HistoryWriter) *Orchestrator {
	cfg := config.CrawlerConfig{
		MaxPages:       3,
		JobWorkers:     2,
		FetchWorkers:   2,
		CategoryCap:    150,
		SiteSweepCap:   5,
		StockCacheSize: 16,
	}
	factory := fetch.NewFactory(fetch.Config{MaxRetries: 1}, logger.NewNoOp())
	return NewOrchestrator(
		cfg, sites.NewRegistry(), factory,
		&memTaxonomy{}, products, runs, history, logger.NewNoOp(),
	)
}

func awaitTerminal(t *testing.T, o *Orchestrator, jobID string) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = o.Status(jobID)
		return err == nil && job.Terminal()
	}, 15*time.Second, 50*time.Millisecond)
	return job
}

func TestOrchestratorRunsExplicitCategoryJob(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(listingHandler(t))
	defer srv.Close()

	products := newMemProducts()
	runs := &memRuns{}
	o := newTestOrchestrator(products, runs)

	job, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		Categories: []string{srv.URL + "/category/screens"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, job.Status)

	done := awaitTerminal(t, o, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	assert.Equal(t, 1, done.TotalCategories)
	assert.Equal(t, 1, done.CategoriesDone)
	assert.Equal(t, 2, done.ItemsFound)
	assert.Equal(t, 2, done.NewProducts)
	assert.Equal(t, 2, products.count())

	run, ok := runs.lastUpdate()
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.ItemsFound)
	assert.Equal(t, 1, run.TotalBrands)
	assert.Equal(t, 1, run.TotalCategories)
	assert.Equal(t, 1, run.TotalModels)
	assert.Equal(t, 2, run.TotalProducts)
	assert.Zero(t, run.ErrorsCount)
	require.NotNil(t, run.CompletedAt)
}

func TestOrchestratorWritesFetchSnapshotForExplicitRuns(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(listingHandler(t))
	defer srv.Close()

	history := &memHistory{}
	o := newTestOrchestratorWithHistory(newMemProducts(), &memRuns{}, history)

	catURL := srv.URL + "/category/screens"
	job, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		Categories: []string{catURL},
	})
	require.NoError(t, err)
	awaitTerminal(t, o, job.ID)

	snaps := history.snapshots()
	require.Len(t, snaps, 1)
	snap := snaps[0]
	assert.Equal(t, job.ID, snap.ID)
	assert.Equal(t, domain.JSONBStrings{catURL}, snap.URLs)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Screen A", snap.Items[0].Title)
	assert.Equal(t, sites.ClientTechParts, snap.Items[0].Site)
}

func TestOrchestratorRejectsUnknownClient(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(newMemProducts(), &memRuns{})
	_, err := o.Start(StartRequest{Client: "nope"})
	assert.ErrorIs(t, err, sites.ErrUnknownClient)
}

func TestOrchestratorRequiresCategoriesForTechparts(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(newMemProducts(), &memRuns{})
	_, err := o.Start(StartRequest{Client: sites.ClientTechParts})
	assert.ErrorIs(t, err, ErrCategoriesRequired)
}

func TestOrchestratorStatusUnknownJob(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(newMemProducts(), &memRuns{})
	_, err := o.Status("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestOrchestratorCancelBeforeStart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(listingHandler(t))
	defer srv.Close()

	// One job slot: the first job occupies it while the second waits.
	cfg := config.CrawlerConfig{MaxPages: 2, JobWorkers: 1, FetchWorkers: 1, StockCacheSize: 16}
	factory := fetch.NewFactory(fetch.Config{MaxRetries: 1}, logger.NewNoOp())
	o := NewOrchestrator(
		cfg, sites.NewRegistry(), factory,
		&memTaxonomy{}, newMemProducts(), &memRuns{}, nil, logger.NewNoOp(),
	)

	blocker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		listingHandler(t)(w, r)
	}))
	defer blocker.Close()

	_, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		Categories: []string{blocker.URL + "/category/slot"},
	})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	queued, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		Categories: []string{srv.URL + "/category/screens"},
	})
	require.NoError(t, err)
	require.NoError(t, o.Cancel(queued.ID, "changed my mind"))

	job := awaitTerminal(t, o, queued.ID)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	assert.Equal(t, "changed my mind", job.CancelReason)
	assert.Zero(t, job.ItemsFound)
}

func TestOrchestratorCancelUnknownJob(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(newMemProducts(), &memRuns{})
	assert.ErrorIs(t, o.Cancel("missing", ""), ErrJobNotFound)
}

func TestOrchestratorShutdownWaitsForJobs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(listingHandler(t))
	defer srv.Close()

	o := newTestOrchestrator(newMemProducts(), &memRuns{})
	job, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		Categories: []string{srv.URL + "/category/screens"},
	})
	require.NoError(t, err)
	awaitTerminal(t, o, job.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, o.Shutdown(ctx))
}

var errBoom = errors.New("boom")

type failingProducts struct{ *memProducts }

func (f failingProducts) Insert(_ context.Context, _ *domain.Product) (int64, error) {
	return 0, errBoom
}

func TestOrchestratorSurfacesPersistErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(listingHandler(t))
	defer srv.Close()

	cfg := config.CrawlerConfig{MaxPages: 2, JobWorkers: 1, FetchWorkers: 1, StockCacheSize: 16}
	factory := fetch.NewFactory(fetch.Config{MaxRetries: 1}, logger.NewNoOp())
	o := NewOrchestrator(
		cfg, sites.NewRegistry(), factory,
		&memTaxonomy{}, failingProducts{newMemProducts()}, &memRuns{}, nil, logger.NewNoOp(),
	)

	job, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		Categories: []string{srv.URL + "/category/screens"},
	})
	require.NoError(t, err)

	done := awaitTerminal(t, o, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	assert.NotEmpty(t, done.LastError)
	assert.Zero(t, done.NewProducts)
}

func TestOrchestratorDefaultMaxPagesCapsWalk(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(pagedListingHandler(t, 5))
	defer srv.Close()

	products := newMemProducts()
	o := newTestOrchestrator(products, &memRuns{}) // configured default is 3 pages

	job, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		Categories: []string{srv.URL + "/category/all"},
	})
	require.NoError(t, err)

	done := awaitTerminal(t, o, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	assert.Equal(t, 3, done.PagesDone)
	assert.Equal(t, 3, done.ItemsFound)
}

func TestOrchestratorMaxPagesZeroMeansUnlimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(pagedListingHandler(t, 5))
	defer srv.Close()

	products := newMemProducts()
	o := newTestOrchestrator(products, &memRuns{})

	job, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		MaxPages:   intPtr(0),
		Categories: []string{srv.URL + "/category/all"},
	})
	require.NoError(t, err)

	done := awaitTerminal(t, o, job.ID)
	assert.Equal(t, domain.JobStatusDone, done.Status)
	// All five content pages plus the empty page that ends the walk.
	assert.Equal(t, 6, done.PagesDone)
	assert.Equal(t, 5, done.ItemsFound)
	assert.Equal(t, 5, products.count())
}

func TestOrchestratorCancelMidRunStopsAtNextPage(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := fetches.Add(1)
		time.Sleep(30 * time.Millisecond)
		_, _ = fmt.Fprintf(w, `<html><body><ul><li class="product-card">
			<a href="/parts/item-%d"><h3 class="product-title">Item %d</h3></a>
			<span class="price">$5.00</span>
			<span class="stock-status">In stock</span>
		</li></ul></body></html>`, n, n)
	}))
	defer srv.Close()

	products := newMemProducts()
	runs := &memRuns{}
	cfg := config.CrawlerConfig{JobWorkers: 1, FetchWorkers: 1, StockCacheSize: 16}
	factory := fetch.NewFactory(fetch.Config{MaxRetries: 1}, logger.NewNoOp())
	o := NewOrchestrator(
		cfg, sites.NewRegistry(), factory,
		&memTaxonomy{}, products, runs, nil, logger.NewNoOp(),
	)

	// Every page yields a fresh product, so the walk never ends on its own.
	job, err := o.Start(StartRequest{
		Client:     sites.ClientTechParts,
		MaxPages:   intPtr(0),
		Categories: []string{srv.URL + "/category/endless"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fetches.Load() >= 3 },
		10*time.Second, 10*time.Millisecond)
	require.NoError(t, o.Cancel(job.ID, "enough"))

	done := awaitTerminal(t, o, job.ID)
	assert.Equal(t, domain.JobStatusCancelled, done.Status)
	assert.Empty(t, done.LastError)
	assert.GreaterOrEqual(t, done.PagesDone, 2)
	assert.Less(t, done.PagesDone, 20)

	// Pages fetched before the cancel are still persisted.
	assert.Equal(t, done.PagesDone, products.count())

	run, ok := runs.lastUpdate()
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusStopped, run.Status)
}
